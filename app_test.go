package fastapi

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/contract"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/extract"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/logger"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

type fileBody struct {
	Name string `json:"name" validate:"required"`
}

type fileInfo struct {
	Id    string `json:"id"`
	Page  int    `json:"page"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

type fileInput struct {
	FileId string `path:"file_id"`
	Page   int    `query:"page" default:"1" validate:"gte=1"`
	Token  string `header:"x-token" validate:"required"`
	Body   *fileBody
}

func file_id__info(c *Context, in *fileInput) (*fileInfo, error) {
	info := &fileInfo{Id: in.FileId, Page: in.Page, Token: in.Token}
	if in.Body != nil {
		info.Name = in.Body.Name
	}
	return info, nil
}

func ping(c *Context) (string, error) { return "pong", nil }

func missing(c *Context) (*fileInfo, error) {
	return nil, NewHTTPError(http.StatusNotFound, "file not found")
}

func broken(c *Context) (*fileInfo, error) { return nil, errors.New("disk failure") }

func empty(c *Context) (*fileInfo, error) { return nil, nil }

func created(c *Context) (map[string]int, error) {
	c.Status(http.StatusCreated).SetHeader("X-Trace", "1")
	return map[string]int{"n": 1}, nil
}

func add_note(c *Context, note *typesafe.Object) (*typesafe.Object, error) { return note, nil }

var noteClass = typesafe.NewClass("Note",
	typesafe.StringField("title"),
	typesafe.IntField("stars").Opt(),
)

func newTestApp(t *testing.T, c ...Config) *Wrapper {
	conf := Config{Title: "Files", Version: "v1.0.0", Logger: logger.NewDiscardLogger()}
	if len(c) > 0 {
		conf = c[0]
		conf.Logger = logger.NewDiscardLogger()
	}
	app := Create(conf)
	app.IncludeRoutes(
		NewRoutes("files").AddRoutePost(file_id__info, WithSummary("file info")),
		NewRoutes("").AddRouteGet(ping).AddRouteGet(missing).AddRouteGet(broken).AddRouteGet(empty).AddRoutePost(created),
		NewRoutes("notes").AddRoutePost(add_note, WithTypeSafeBody(noteClass), WithTypeSafeResponse(noteClass)),
	)
	require.NoError(t, app.Setup())
	return app
}

func do(t *testing.T, app *Wrapper, method, target, body string, headers ...string) (*http.Response, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(data)
}

func decode[T any](t *testing.T, body string) T {
	var v T
	require.NoError(t, utils.JsonUnmarshal([]byte(body), &v), body)
	return v
}

func TestWrapper_Dispatch(t *testing.T) {
	app := newTestApp(t)

	t.Run("bind", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/files/a%20b/info?page=2", `{"name":"report"}`, "x-token", "t0")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Equal(t, fileInfo{Id: "a b", Page: 2, Token: "t0", Name: "report"}, decode[fileInfo](t, body))
		assert.NotEmpty(t, resp.Header.Get(RequestIdHeader))
	})

	t.Run("default-and-optional-body", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/files/x/info", "", "x-token", "t0")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Equal(t, fileInfo{Id: "x", Page: 1, Token: "t0"}, decode[fileInfo](t, body))
	})

	t.Run("string", func(t *testing.T) {
		resp, body := do(t, app, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `"pong"`, body)
	})

	t.Run("nil", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/empty", "")
		assert.Equal(t, "null", body)
	})

	t.Run("status", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/created", "")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("X-Trace"))
		assert.Equal(t, map[string]int{"n": 1}, decode[map[string]int](t, body))
	})

	t.Run("typesafe", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/notes/add-note", `{"title":"hello","stars":3}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		note := decode[map[string]any](t, body)
		assert.Equal(t, "hello", note["title"])
		assert.Equal(t, float64(3), note["stars"])
	})
}

func TestWrapper_ValidationErrors(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name    string
		target  string
		body    string
		headers []string
		loc     []string
		errType string
	}{
		{name: "header-missing", target: "/files/x/info", loc: []string{"header", "x-token"}, errType: "value_error.missing"},
		{name: "query-type", target: "/files/x/info?page=abc", headers: []string{"x-token", "t"},
			loc: []string{"query", "page"}, errType: "type_error.int"},
		{name: "query-constraint", target: "/files/x/info?page=0", headers: []string{"x-token", "t"},
			loc: []string{"query", "page"}, errType: "value_error.gte"},
		{name: "body-field", target: "/files/x/info", body: `{}`, headers: []string{"x-token", "t"},
			loc: []string{"body", "name"}, errType: "value_error.missing"},
		{name: "body-json", target: "/files/x/info", body: `{"name":`, headers: []string{"x-token", "t"},
			loc: []string{"body"}, errType: "value_error.jsondecode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, tt.target, tt.body, tt.headers...)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)

			detail := decode[struct {
				Detail []struct {
					Loc  []string `json:"loc"`
					Type string   `json:"type"`
				} `json:"detail"`
			}](t, body).Detail
			require.NotEmpty(t, detail)
			assert.Equal(t, tt.loc, detail[0].Loc)
			assert.Equal(t, tt.errType, detail[0].Type)
		})
	}

	t.Run("typesafe-body", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/notes/add-note", `{"stars":1}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)

		resp, _ = do(t, app, http.MethodPost, "/notes/add-note", "")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestWrapper_Errors(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, map[string]string{"detail": "file not found"}, decode[map[string]string](t, body))

	resp, body = do(t, app, http.MethodGet, "/broken", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]string{"detail": "Internal Server Error"}, decode[map[string]string](t, body))

	resp, _ = do(t, app, http.MethodGet, "/not-registered", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	debug := newTestApp(t, Config{Title: "Files", Debug: true})
	_, body = do(t, debug, http.MethodGet, "/broken", "")
	assert.Equal(t, map[string]string{"detail": "disk failure"}, decode[map[string]string](t, body))
}

func TestWrapper_APIKey(t *testing.T) {
	app := newTestApp(t, Config{Title: "Files", EnableAPIKey: true, APIKeyName: "X-API-Key", APIKeyValue: "secret"})

	tests := []struct {
		name    string
		target  string
		headers []string
		want    int
	}{
		{name: "missing", target: "/ping", want: http.StatusUnauthorized},
		{name: "invalid", target: "/ping", headers: []string{"X-API-Key", "wrong"}, want: http.StatusUnauthorized},
		{name: "valid", target: "/ping", headers: []string{"X-API-Key", "secret"}, want: http.StatusOK},
		{name: "cookie", target: "/ping", headers: []string{"Cookie", "X-API-Key=secret"}, want: http.StatusOK},
		{name: "docs-excluded", target: DocsUrl, want: http.StatusOK},
		{name: "openapi-excluded", target: OpenapiUrl, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodGet, tt.target, "", tt.headers...)
			assert.Equal(t, tt.want, resp.StatusCode, body)
		})
	}

	_, body := do(t, app, http.MethodGet, OpenapiUrl, "")
	assert.Contains(t, body, `"securitySchemes"`)

	err := Create(Config{EnableAPIKey: true, APIKeyName: "X-API-Key", Logger: logger.NewDiscardLogger()}).Setup()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWrapper_CORS(t *testing.T) {
	app := newTestApp(t, Config{Title: "Files", EnableCORS: true, AllowOrigins: "http://example.com"})

	resp, _ := do(t, app, http.MethodOptions, "/ping", "",
		"Origin", "http://example.com", "Access-Control-Request-Method", http.MethodGet)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = do(t, app, http.MethodGet, "/ping", "", "Origin", "http://example.com")
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), RequestIdHeader)

	plain := newTestApp(t)
	resp, _ = do(t, plain, http.MethodGet, "/ping", "", "Origin", "http://example.com")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWrapper_DefaultRoutes(t *testing.T) {
	app := newTestApp(t)

	t.Run("status", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/config/status", "")
		assert.Equal(t, AppStatus{Status: "ok"}, decode[AppStatus](t, body))
	})

	t.Run("version", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/config/version", "")
		assert.Equal(t, "v1.0.0", decode[AppVersion](t, body).Version)
	})

	t.Run("info", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/config/info", "")
		info := decode[AppInfo](t, body)
		assert.Equal(t, "Files", info.Title)
		assert.Equal(t, len(app.Routes()), info.Routes)
	})

	t.Run("routes-json", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/config/routes/json", "")
		collection := decode[extract.RoutesCollection](t, body)
		assert.Equal(t, len(collection.Routes), collection.TotalRoutes)
		assert.Contains(t, collection.Paths(), "/files/{file_id}/info")
		assert.Contains(t, collection.Paths(), "/config/status")
	})

	t.Run("routes-html", func(t *testing.T) {
		resp, body := do(t, app, http.MethodGet, "/config/routes/html", "")
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMETextHTML)
		assert.Contains(t, body, "<td>/files/{file_id}/info</td>")
	})

	t.Run("contract", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/config/contract", "")
		sc, err := contract.Load([]byte(body), contract.JSON)
		require.NoError(t, err)
		assert.Equal(t, "Files", sc.ServiceName)
		assert.Equal(t, "http://example.com", sc.BaseURL)
		assert.NotNil(t, sc.Endpoint("ping"))
		assert.Nil(t, sc.Endpoint("status"))

		ep := sc.Endpoint("file_id__info")
		require.NotNil(t, ep)
		assert.Equal(t, "files", ep.RouteModule)
		assert.Equal(t, []int{422}, ep.ErrorCodes)
		assert.Equal(t, []int{404}, sc.Endpoint("missing").ErrorCodes)

		resp, body := do(t, app, http.MethodGet, "/config/contract?format=yaml", "")
		assert.Equal(t, contract.YAML.ContentType(), resp.Header.Get(fiber.HeaderContentType))
		_, err = contract.Load([]byte(body), contract.YAML)
		assert.NoError(t, err)

		resp, _ = do(t, app, http.MethodGet, "/config/contract?format=xml", "")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("client", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/config/client?client_name=files_client", "")
		files := decode[map[string]string](t, body)
		assert.Contains(t, files, "__init__.py")
		assert.Contains(t, files, "files_client.py")
		assert.Contains(t, files["files.py"], "def file_id__info(")
	})

	t.Run("http-events", func(t *testing.T) {
		_, body := do(t, app, http.MethodGet, "/config/http-events", "")
		events := decode[[]*HttpEvent](t, body)
		require.NotEmpty(t, events)
		assert.NotEmpty(t, events[0].RequestId)
	})

	disabled := newTestApp(t, Config{Title: "Files", DefaultRoutesDisabled: true})
	resp, _ := do(t, disabled, http.MethodGet, "/config/status", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWrapper_Docs(t *testing.T) {
	app := newTestApp(t)

	resp, _ := do(t, app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, DocsUrl, resp.Header.Get(fiber.HeaderLocation))

	resp, body := do(t, app, http.MethodGet, DocsUrl, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "url: '"+OpenapiUrl+"'")

	_, body = do(t, app, http.MethodGet, RedocUrl, "")
	assert.Contains(t, body, `spec-url="`+OpenapiUrl+`"`)

	resp, body = do(t, app, http.MethodGet, OpenapiUrl, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[map[string]any](t, body)
	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/files/{file_id}/info")
	assert.Contains(t, paths, "/ping")
	assert.NotContains(t, paths, "/config/status")

	disabled := newTestApp(t, Config{Title: "Files", DocsDisabled: true})
	resp, _ = do(t, disabled, http.MethodGet, DocsUrl, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWrapper_Mount(t *testing.T) {
	sub := Create(Config{Title: "Sub", Logger: logger.NewDiscardLogger(), DocsDisabled: true, DefaultRoutesDisabled: true})
	sub.IncludeRoutes(NewRoutes("hello").AddRouteGet(ping))

	app := Create(Config{Title: "Main", Logger: logger.NewDiscardLogger()})
	app.IncludeRoutes(NewRoutes("").AddRouteGet(ping))
	app.Mount("/sub", sub)

	resp, body := do(t, app, http.MethodGet, "/sub/hello/ping", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"pong"`, body)
	assert.Contains(t, app.RoutesPaths(), "/sub/hello/ping")

	_, body = do(t, app, http.MethodGet, "/config/contract", "")
	sc, err := contract.Load([]byte(body), contract.JSON)
	require.NoError(t, err)
	require.NotNil(t, sc.Module("sub_hello"))
	assert.Equal(t, "/sub/hello/ping", sc.Module("sub_hello").Endpoints[0].PathPattern)
}

func TestWrapper_RawRoutes(t *testing.T) {
	app := newTestApp(t)
	app.App().Get("/raw/:id", func(c *fiber.Ctx) error { return c.SendString("raw " + c.Params("id")) })
	app.App().Post("/raw/:id", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusAccepted) })

	raw := app.RawRoutes()
	require.Len(t, raw, 1)
	assert.Equal(t, "/raw/{id}", raw[0].Path)
	assert.Equal(t, []string{http.MethodGet, http.MethodPost}, raw[0].Methods)
	assert.Equal(t, meta.Raw, raw[0].Type)

	_, body := do(t, app, http.MethodGet, "/raw/1", "")
	assert.Equal(t, "raw 1", body)
	assert.Contains(t, app.RoutesPaths(), "/raw/{id}")
}

func TestWrapper_Events(t *testing.T) {
	app := newTestApp(t)
	started := 0
	app.OnEvent(StartupEvent, func() { started++ })
	app.OnEvent(ShutdownEvent, func() { started-- })
	assert.Len(t, app.events, 2)

	app.Shutdown()
	assert.Equal(t, -1, started)
}

func TestWrapper_Setup(t *testing.T) {
	app := newTestApp(t)
	before := len(app.RouteTable())
	require.NoError(t, app.Setup())
	assert.Equal(t, before, len(app.RouteTable()))

	assert.Panics(t, func() {
		NewRoutes("bad").AddRouteGet(func(c *Context, id int) (int, error) { return id, nil })
	})
}

func TestWrapper_HttpEventsDisabled(t *testing.T) {
	tests := []struct {
		name     string
		disabled bool
		recorded int
	}{
		{name: "enabled", disabled: false, recorded: 1},
		{name: "disabled", disabled: true, recorded: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, Config{Title: "Files", HttpEventsDisabled: tt.disabled})

			resp, _ := do(t, app, http.MethodGet, "/ping", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get(RequestIdHeader))

			assert.Len(t, app.Events().Events(), tt.recorded)
			assert.Equal(t, uint64(1), app.Events().Total())
		})
	}
}
