package fastapi

import (
	"bytes"
	"html/template"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/clientgen"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/contract"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/extract"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/openapi"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
)

const (
	DocsUrl    = "/docs"
	RedocUrl   = "/redoc"
	OpenapiUrl = "/openapi.json"
)

// ConfigPrefix 默认路由的前缀
const ConfigPrefix = "/config"

var startedAt = time.Now()

// AppInfo /config/info 的返回值
type AppInfo struct {
	Title       string `json:"title" description:"APP标题"`
	Version     string `json:"version" description:"APP版本号"`
	Description string `json:"description" description:"APP描述"`
	BasePath    string `json:"base_path,omitempty" description:"服务的根路径"`
	GoVersion   string `json:"go_version" description:"Go 版本"`
	Debug       bool   `json:"debug" description:"调试模式"`
	APIKey      bool   `json:"api_key" description:"是否启用 API Key 认证"`
	Routes      int    `json:"routes" description:"API 路由数量"`
	Uptime      string `json:"uptime" description:"运行时长"`
}

// AppStatus /config/status 的返回值
type AppStatus struct {
	Status string `json:"status" description:"服务状态"`
}

// AppVersion /config/version 的返回值
type AppVersion struct {
	Version string `json:"version" description:"APP版本号"`
}

// ContractQuery /config/contract 的查询参数
type ContractQuery struct {
	Format string `query:"format" default:"json" validate:"oneof=json yaml yml msgpack mp" description:"序列化格式"`
}

// ClientQuery /config/client 的查询参数
type ClientQuery struct {
	ClientName string `query:"client_name" description:"客户端包名, 默认由APP标题推导"`
}

var routesHtml = template.Must(template.New("routes").Funcs(template.FuncMap{"join": strings.Join}).Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8"/>
	<title>{{.Title}} - Routes</title>
</head>
<body>
<h2>{{.Title}} {{.Version}}</h2>
<table border="1" cellpadding="4" cellspacing="0">
	<tr><th>Methods</th><th>Path</th><th>Name</th><th>Type</th><th>Class</th><th>Source</th></tr>
	{{- range .Routes}}
	<tr><td>{{join .HTTPMethods ", "}}</td><td>{{.HTTPPath}}</td><td>{{.MethodName}}</td><td>{{.RouteType}}</td><td>{{.RouteClass}}</td><td>{{.Source}}</td></tr>
	{{- end}}
</table>
<p>total: {{.Total}}</p>
</body>
</html>`))

// 应用自身的请求地址, 包括挂载前缀, 用于契约和文档中的 base_url
func (f *Wrapper) baseURL(c *Context, path string) string {
	prefix := strings.TrimSuffix(c.Fiber().Path(), path)
	return strings.TrimRight(c.Fiber().BaseURL()+pathschema.JoinPath(prefix, f.conf.BasePath), pathschema.PathSeparator)
}

// Contract 提取服务契约, 不包含默认路由
func (f *Wrapper) Contract(baseURL string) (*contract.ServiceContract, error) {
	e := contract.NewExtractor(f)
	e.BaseURL = baseURL
	return e.Extract()
}

// 框架默认路由, 前缀为 /config
func (f *Wrapper) defaultRoutes() *Routes {
	routes := NewRoutes("config").SetClass("RoutesConfig").SetPrefix(ConfigPrefix)

	routes.AddRouteGet(func(c *Context) (*AppInfo, error) {
		return &AppInfo{
			Title:       f.conf.Title,
			Version:     f.conf.Version,
			Description: f.conf.Description,
			BasePath:    f.conf.BasePath,
			GoVersion:   runtime.Version(),
			Debug:       f.conf.Debug,
			APIKey:      f.conf.EnableAPIKey,
			Routes:      len(f.Routes()),
			Uptime:      time.Since(startedAt).Round(time.Second).String(),
		}, nil
	}, WithName("info"), WithPath("info"), WithSummary("应用信息"), withDefault())

	routes.AddRouteGet(func(c *Context) (*AppStatus, error) {
		return &AppStatus{Status: "ok"}, nil
	}, WithName("status"), WithPath("status"), WithSummary("健康检查"), withDefault())

	routes.AddRouteGet(func(c *Context) (*AppVersion, error) {
		return &AppVersion{Version: f.conf.Version}, nil
	}, WithName("version"), WithPath("version"), WithSummary("应用版本号"), withDefault())

	routes.AddRouteGet(func(c *Context) (*extract.RoutesCollection, error) {
		return extract.NewExtractor().Extract(f), nil
	}, WithName("routes__json"), WithPath("routes/json"), WithSummary("路由列表"), withDefault())

	routes.AddRouteGet(func(c *Context) (HTMLResponse, error) {
		collection := extract.NewExtractor().Extract(f)
		var buf bytes.Buffer
		err := routesHtml.Execute(&buf, map[string]any{
			"Title":   f.conf.Title,
			"Version": f.conf.Version,
			"Routes":  collection.Routes,
			"Total":   collection.TotalRoutes,
		})
		if err != nil {
			return "", err
		}
		return HTMLResponse(buf.String()), nil
	}, WithName("routes__html"), WithPath("routes/html"), WithSummary("路由列表页面"), withDefault())

	routes.AddRouteGet(func(c *Context, q *ContractQuery) (*RawResponse, error) {
		format, err := contract.ParseFormat(q.Format)
		if err != nil {
			return nil, NewHTTPError(fiber.StatusBadRequest, err.Error())
		}
		sc, err := f.Contract(f.baseURL(c, ConfigPrefix+"/contract"))
		if err != nil {
			return nil, err
		}
		data, err := contract.Marshal(sc, format)
		if err != nil {
			return nil, err
		}
		return &RawResponse{ContentType: format.ContentType(), Body: data}, nil
	}, WithName("contract"), WithPath("contract"), WithSummary("服务契约"), withDefault())

	routes.AddRouteGet(func(c *Context, q *ClientQuery) (map[string]string, error) {
		sc, err := f.Contract(f.baseURL(c, ConfigPrefix+"/client"))
		if err != nil {
			return nil, err
		}
		files, err := clientgen.NewGenerator(q.ClientName).Generate(sc)
		if err != nil {
			return nil, NewHTTPError(fiber.StatusBadRequest, err.Error())
		}
		return files, nil
	}, WithName("client"), WithPath("client"), WithSummary("python 客户端源码"), withDefault())

	routes.AddRouteGet(func(c *Context) ([]*HttpEvent, error) {
		return f.httpEvents.Events(), nil
	}, WithName("http_events"), WithPath("http-events"), WithSummary("最近的请求记录"), withDefault())

	return routes
}

// 文档路由: / 重定向到 /docs, swagger, redoc 及 openapi.json
func (f *Wrapper) docsRoutes() *Routes {
	routes := NewRoutes("").SetClass("RoutesDocs")

	routes.AddRouteGet(func(c *Context) (RedirectResponse, error) {
		return RedirectResponse(strings.TrimSuffix(c.Fiber().Path(), pathschema.PathSeparator) + DocsUrl), nil
	}, WithName("root"), WithPath(pathschema.PathSeparator), withDefault())

	routes.AddRouteGet(func(c *Context) (HTMLResponse, error) {
		openapiUrl := strings.TrimSuffix(c.Fiber().Path(), DocsUrl) + OpenapiUrl
		return HTMLResponse(openapi.SwaggerUi{Title: f.conf.Title, OpenapiUrl: openapiUrl}.Html()), nil
	}, WithName("docs"), WithPath(DocsUrl), withDefault())

	routes.AddRouteGet(func(c *Context) (HTMLResponse, error) {
		return HTMLResponse(openapi.Oauth2RedirectHtml()), nil
	}, WithName("docs__oauth2_redirect"), WithPath(openapi.OAuth2RedirectUrl), withDefault())

	routes.AddRouteGet(func(c *Context) (HTMLResponse, error) {
		openapiUrl := strings.TrimSuffix(c.Fiber().Path(), RedocUrl) + OpenapiUrl
		return HTMLResponse(openapi.RedocUi{Title: f.conf.Title, OpenapiUrl: openapiUrl}.Html()), nil
	}, WithName("redoc"), WithPath(RedocUrl), withDefault())

	routes.AddRouteGet(func(c *Context) (*RawResponse, error) {
		sc, err := f.Contract(f.baseURL(c, OpenapiUrl))
		if err != nil {
			return nil, err
		}
		opts := make([]openapi.Option, 0)
		if f.conf.EnableAPIKey {
			opts = append(opts, openapi.WithAPIKey(f.conf.APIKeyName))
		}
		return &RawResponse{
			ContentType: openapi.MIMEApplicationJSON,
			Body:        openapi.Build(sc, opts...).Schema(),
		}, nil
	}, WithName("openapi"), WithPath(OpenapiUrl), withDefault())

	return routes
}
