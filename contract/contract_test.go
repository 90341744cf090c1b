package contract

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
)

type statusError struct{ code int }

func (e *statusError) Error() string { return http.StatusText(e.code) }

func NewHTTPError(code int, _ ...any) error { return &statusError{code: code} }

func deleteFile(id string) error {
	if id == "" {
		return NewHTTPError(400)
	}
	if id == "locked" {
		return NewHTTPError(http.StatusConflict, "locked")
	}
	return fiber.ErrNotFound
}

var forbidden = func() error {
	return NewHTTPError((http.StatusForbidden))
}

// 叶子函数的入口位于函数体内
func leafNotFound() (string, error) {
	return "", fiber.ErrNotFound
}

func leafForbidden(locked bool) error {
	if locked {
		return fiber.ErrForbidden
	}
	return nil
}

func okOnly() error {
	_ = http.StatusCreated
	return nil
}

type fileBody struct {
	Name string   `json:"name" validate:"required"`
	Tags []string `json:"tags"`
}

type fileInfo struct {
	Id   string `json:"id"`
	Size int    `json:"size"`
}

type fileInput struct {
	FileId string `path:"file_id"`
	Page   int    `query:"page" default:"1"`
	Token  string `header:"x-token" validate:"required"`
	Body   *fileBody
}

type table struct {
	title  string
	routes []*meta.Route
	mounts []*meta.Mount
}

func (t *table) Title() string             { return t.title }
func (t *table) Version() string           { return "v1.2.3" }
func (t *table) Description() string       { return "files service" }
func (t *table) RouteTable() []*meta.Route { return t.routes }
func (t *table) Mounts() []*meta.Mount     { return t.mounts }
func (t *table) RawRoutes() []*meta.Route  { return nil }

func newTable(t *testing.T) *table {
	params, err := meta.ScanInput(reflect.TypeOf(fileInput{}))
	require.NoError(t, err)

	sub := &table{
		title: "sub",
		routes: []*meta.Route{
			{Name: "hello", Methods: []string{"GET"}, Path: "/files/hello", Prefix: "/files", Type: meta.APIRoute,
				Output: reflect.TypeOf("")},
		},
	}
	return &table{
		title: "Files",
		routes: []*meta.Route{
			{Name: "file_id__info", Methods: []string{"GET"}, Path: "/files/{file_id}/info", Prefix: "/files",
				Class: "RoutesFiles", Type: meta.APIRoute, Input: reflect.TypeOf(fileInput{}), Params: params,
				Output: reflect.TypeOf(&fileInfo{}), Source: deleteFile},
			{Name: "ping", Methods: []string{"GET"}, Path: "/ping", Type: meta.APIRoute, Output: reflect.TypeOf(""),
				Source: okOnly},
			{Name: "info", Methods: []string{"GET"}, Path: "/config/info", Prefix: "/config", Type: meta.APIRoute,
				Default: true, Output: reflect.TypeOf(map[string]any{})},
			{Name: "static", Methods: []string{"GET"}, Path: "/static", Type: meta.Static},
		},
		mounts: []*meta.Mount{{Prefix: "/sub", Table: sub}},
	}
}

func TestScanErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		want []int
	}{
		{name: "func-decl", fn: deleteFile, want: []int{400, 404, 409}},
		{name: "func-lit", fn: forbidden, want: []int{403}},
		{name: "leaf-func", fn: leafNotFound, want: []int{404}},
		{name: "leaf-func-branch", fn: leafForbidden, want: []int{403}},
		{name: "success-status-ignored", fn: okOnly, want: []int{}},
		{name: "not-a-func", fn: 12, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanErrorCodes(tt.fn))
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	sc, err := NewExtractor(newTable(t)).Extract()
	require.NoError(t, err)

	assert.Equal(t, "Files", sc.ServiceName)
	assert.Equal(t, "v1.2.3", sc.Version)

	names := make([]string, 0)
	for _, m := range sc.Modules {
		names = append(names, m.ModuleName)
	}
	assert.Equal(t, []string{"files", "ping", "sub_files"}, names)
	require.Len(t, sc.Endpoints, 3)

	files := sc.Module("files")
	require.NotNil(t, files)
	assert.Equal(t, "/files", files.PathPrefix)
	assert.Equal(t, []string{"RoutesFiles"}, files.RouteClasses)

	ep := sc.Endpoint("file_id__info")
	require.NotNil(t, ep)
	assert.Equal(t, "GET", ep.Method)
	assert.Equal(t, "/files/{file_id}/info", ep.PathPattern)
	assert.Equal(t, "files", ep.RouteModule)
	require.Len(t, ep.PathParams, 1)
	assert.Equal(t, "file_id", ep.PathParams[0].Name)
	assert.Equal(t, "str", ep.PathParams[0].PyType)
	assert.True(t, ep.PathParams[0].Required)
	require.Len(t, ep.QueryParams, 1)
	assert.Equal(t, "int", ep.QueryParams[0].PyType)
	assert.False(t, ep.QueryParams[0].Required)
	require.Len(t, ep.HeaderParams, 1)
	assert.Equal(t, "x-token", ep.HeaderParams[0].Name)
	assert.True(t, ep.HeaderParams[0].Required)

	require.NotNil(t, ep.RequestSchema)
	assert.Equal(t, "fileBody", ep.RequestSchema.Ref)
	assert.False(t, ep.RequestRequired)
	require.NotNil(t, ep.ResponseSchema)
	assert.Equal(t, "fileInfo", ep.ResponseSchema.Ref)
	assert.Equal(t, []int{400, 404, 409, 422}, ep.ErrorCodes)
	assert.Contains(t, sc.Schemas, "fileBody")
	assert.Contains(t, sc.Schemas, "fileInfo")

	ping := sc.Endpoint("ping")
	require.NotNil(t, ping)
	assert.Equal(t, godantic.StringType, ping.ResponseSchema.Type)
	assert.Equal(t, []int{}, ping.ErrorCodes)

	hello := sc.Endpoint("hello")
	require.NotNil(t, hello)
	assert.Equal(t, "/sub/files/hello", hello.PathPattern)
	assert.Equal(t, "sub_files", hello.RouteModule)
}

func TestExtractor_IncludeDefault(t *testing.T) {
	e := NewExtractor(newTable(t))
	e.IncludeDefault = true
	sc, err := e.Extract()
	require.NoError(t, err)

	cfg := sc.Module("config")
	require.NotNil(t, cfg)
	require.Len(t, cfg.Endpoints, 1)
	assert.True(t, cfg.Endpoints[0].IsDefault)
	assert.Equal(t, "dict[str, Any]", cfg.Endpoints[0].ResponseSchema.PyType())
}

func TestExtractor_OperationIDs(t *testing.T) {
	tb := &table{routes: []*meta.Route{
		{Name: "items", Methods: []string{"GET", "POST"}, Path: "/items", Type: meta.APIRoute},
	}}
	sc, err := NewExtractor(tb).Extract()
	require.NoError(t, err)
	require.Len(t, sc.Endpoints, 2)
	assert.NotNil(t, sc.Endpoint("items"))
	assert.NotNil(t, sc.Endpoint("items_2"))
	assert.Nil(t, sc.Endpoints[0].ResponseSchema)

	_, err = NewExtractor(nil).Extract()
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestExtractor_TypeSafe(t *testing.T) {
	class := typesafe.NewClass("Note",
		typesafe.StringField("title"),
		typesafe.IntField("stars").Opt(),
	)
	params, err := meta.ScanInput(reflect.TypeOf(&typesafe.Object{}))
	require.NoError(t, err)

	tb := &table{routes: []*meta.Route{
		{Name: "add_note", Methods: []string{"POST"}, Path: "/notes/add-note", Prefix: "/notes", Type: meta.APIRoute,
			Input: reflect.TypeOf(&typesafe.Object{}), Params: params, BodyClass: class, OutputClass: class,
			Output: reflect.TypeOf(&typesafe.Object{})},
	}}
	sc, err := NewExtractor(tb).Extract()
	require.NoError(t, err)

	ep := sc.Endpoint("add_note")
	require.NotNil(t, ep)
	assert.Equal(t, "Note", ep.RequestSchema.Ref)
	assert.True(t, ep.RequestRequired)
	assert.Equal(t, "Note", ep.ResponseSchema.PyType())
	assert.Equal(t, []int{422}, ep.ErrorCodes)
	assert.Contains(t, sc.Schemas, "Note")
}

func TestTypeRef_PyType(t *testing.T) {
	tests := []struct {
		name string
		ref  *TypeRef
		want string
	}{
		{name: "nil", ref: nil, want: "Any"},
		{name: "int", ref: &TypeRef{Type: godantic.IntegerType}, want: "int"},
		{name: "list", ref: &TypeRef{Type: godantic.ArrayType, Items: &TypeRef{Type: godantic.StringType}}, want: "list[str]"},
		{name: "model", ref: &TypeRef{Type: godantic.ObjectType, Ref: "User"}, want: "User"},
		{name: "dict", ref: &TypeRef{Type: godantic.ObjectType}, want: "dict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.PyType())
		})
	}
}

func TestModuleName(t *testing.T) {
	assert.Equal(t, "api_user_files", moduleName("/api/user-files"))
	assert.Equal(t, RootModuleName, moduleName("/"))
	assert.Equal(t, "/users", firstSegment("/users/{id}"))
	assert.Equal(t, "", firstSegment("/{id}"))
}
