package openapi

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
)

//go:embed templates/*.html
var pageFS embed.FS

// 页面内容均来自服务自身的配置, 无需转义
var pages = template.Must(template.ParseFS(pageFS, "templates/swagger.html", "templates/redoc.html"))

var oauth2RedirectHtml = func() string {
	data, err := pageFS.ReadFile("templates/oauth2-redirect.html")
	if err != nil {
		panic(err)
	}
	return string(data)
}()

// SwaggerUiParameters SwaggerUIBundle 的默认参数, 值为 js 表达式
var SwaggerUiParameters = map[string]string{
	"dom_id":               `"#swagger-ui"`,
	"deepLinking":          "true",
	"showExtensions":       "true",
	"showCommonExtensions": "true",
}

// SwaggerUi swagger 页面
type SwaggerUi struct {
	Title             string            `description:"页面标题"`
	OpenapiUrl        string            `description:"openapi.json 的绝对路径"`
	OAuth2RedirectUrl string            `description:"oauth2 回调页面的绝对路径, 为空则与 OpenapiUrl 同级"`
	JsUrl             string            `description:"为空则使用 SwaggerJsUrl"`
	CssUrl            string            `description:"为空则使用 SwaggerCssUrl"`
	FaviconUrl        string            `description:"为空则使用 SwaggerFaviconUrl"`
	Parameters        map[string]string `description:"为空则使用 SwaggerUiParameters"`
}

// Html 渲染页面
func (u SwaggerUi) Html() string {
	if u.OAuth2RedirectUrl == "" {
		u.OAuth2RedirectUrl = basePath(u.OpenapiUrl) + OAuth2RedirectUrl
	}
	u.JsUrl = orDefault(u.JsUrl, SwaggerJsUrl)
	u.CssUrl = orDefault(u.CssUrl, SwaggerCssUrl)
	u.FaviconUrl = orDefault(u.FaviconUrl, SwaggerFaviconUrl)
	if len(u.Parameters) == 0 {
		u.Parameters = SwaggerUiParameters
	}
	return render("swagger.html", u)
}

// RedocUi redoc 页面
type RedocUi struct {
	Title      string
	OpenapiUrl string
	JsUrl      string `description:"为空则使用 RedocJsUrl"`
	FaviconUrl string `description:"为空则使用 SwaggerFaviconUrl"`
}

// Html 渲染页面
func (u RedocUi) Html() string {
	u.JsUrl = orDefault(u.JsUrl, RedocJsUrl)
	u.FaviconUrl = orDefault(u.FaviconUrl, SwaggerFaviconUrl)
	return render("redoc.html", u)
}

// Oauth2RedirectHtml swagger 的 oauth2 回调页面, 取自 swagger-ui v4.14.0 dist/oauth2-redirect.html
func Oauth2RedirectHtml() string { return oauth2RedirectHtml }

func render(name string, data any) string {
	var buf bytes.Buffer
	// 模板和数据结构均固定, 只有编码错误会导致失败
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		panic(err)
	}
	return buf.String()
}

// /api/openapi.json => /api
func basePath(openapiUrl string) string {
	if i := strings.LastIndex(openapiUrl, "/"); i > 0 {
		return openapiUrl[:i]
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
