package fastapi

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
)

type userInput struct {
	UserId string `path:"user_id"`
	Tab    string `path:"tab"`
}

func user__user_id__tab(c *Context, in *userInput) (string, error) { return in.Tab, nil }

func files_list(c *Context) ([]string, error) { return nil, nil }

func noError(c *Context) string { return "" }

func TestNewRoutes(t *testing.T) {
	tests := []struct {
		tag    string
		prefix string
		class  string
	}{
		{tag: "files", prefix: "/files", class: "RoutesFiles"},
		{tag: "user-files", prefix: "/user-files", class: "RoutesUserFiles"},
		{tag: "", prefix: "", class: "Routes"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			r := NewRoutes(tt.tag)
			assert.Equal(t, tt.prefix, r.Prefix())
			assert.Equal(t, tt.class, r.Class())
			assert.Equal(t, tt.tag, r.Tag())
		})
	}
}

func TestRoutes_AddRoute(t *testing.T) {
	tests := []struct {
		name    string
		routes  *Routes
		handler any
		opts    []RouteOption
		path    string
		routeNm string
	}{
		{name: "literal", routes: NewRoutes("files"), handler: files_list, path: "/files/files-list", routeNm: "files_list"},
		{name: "params", routes: NewRoutes("api"), handler: user__user_id__tab, path: "/api/user/{user_id}/{tab}",
			routeNm: "user__user_id__tab"},
		{name: "with-path", routes: NewRoutes("api"), handler: user__user_id__tab,
			opts: []RouteOption{WithPath("/u/{tab}/{user_id}")}, path: "/api/u/{tab}/{user_id}", routeNm: "user__user_id__tab"},
		{name: "with-name", routes: NewRoutes("files"), handler: files_list, opts: []RouteOption{WithName("all_files")},
			path: "/files/all-files", routeNm: "all_files"},
		{name: "schema", routes: NewRoutes("files").SetPathSchema(pathschema.LowerCaseBackslash), handler: files_list,
			path: "/files/files/list", routeNm: "files_list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.routes.AddRouteGet(tt.handler, tt.opts...)
			require.Len(t, tt.routes.Routes(), 1)
			route := tt.routes.Routes()[0]
			assert.Equal(t, tt.path, route.Path)
			assert.Equal(t, tt.routeNm, route.Name)
			assert.Equal(t, []string{http.MethodGet}, route.Methods)
			assert.Equal(t, meta.APIRoute, route.Type)
			assert.Equal(t, tt.routes.Class(), route.Class)
		})
	}
}

func TestRoutes_Options(t *testing.T) {
	r := NewRoutes("files").AddRouteDelete(files_list,
		WithSummary("list"),
		WithDescription("all files"),
		WithTags("storage"),
		WithErrors(http.StatusNotFound, http.StatusConflict),
	)
	route := r.Routes()[0]
	assert.Equal(t, []string{http.MethodDelete}, route.Methods)
	assert.Equal(t, "list", route.Summary)
	assert.Equal(t, "all files", route.Description)
	assert.Equal(t, []string{"files", "storage"}, route.Tags)
	assert.Equal(t, []int{http.StatusNotFound, http.StatusConflict}, route.ErrorCodes)
	assert.False(t, route.Default)
}

func TestRoutes_InvalidHandler(t *testing.T) {
	tests := []struct {
		name    string
		handler any
		opts    []RouteOption
	}{
		{name: "not-func", handler: 1},
		{name: "no-context", handler: func(s string) (string, error) { return s, nil }},
		{name: "no-error", handler: noError},
		{name: "undeclared-path-param", handler: files_list, opts: []RouteOption{WithPath("/{id}")}},
		{name: "unplaced-path-param", handler: user__user_id__tab, opts: []RouteOption{WithPath("/{user_id}")}},
		{name: "object-without-class", handler: add_note},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRoute(http.MethodGet, tt.handler, tt.handler, "", "", "", pathschema.Default(), tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidHandler)
		})
	}
}

func TestInspectHandler(t *testing.T) {
	in, out, err := inspectHandler(user__user_id__tab)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(&userInput{}), in)
	assert.Equal(t, reflect.TypeOf(""), out)

	in, _, err = inspectHandler(files_list)
	require.NoError(t, err)
	assert.Nil(t, in)

	_, _, err = inspectHandler(func(c *Context, in **userInput) (string, error) { return "", nil })
	assert.ErrorIs(t, err, ErrInvalidHandler)
}
