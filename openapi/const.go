package openapi

const ApiVersion = "3.1.0"

// 用于swagger的一些静态文件，来自FastApi
const (
	SwaggerCssName    = "swagger-ui.css"
	FaviconName       = "favicon.png"
	SwaggerJsName     = "swagger-ui-bundle.js"
	RedocJsName       = "redoc.standalone.js"
	SwaggerFaviconUrl = "https://fastapi.tiangolo.com/img/" + FaviconName
	SwaggerCssUrl     = "https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/" + SwaggerCssName
	SwaggerJsUrl      = "https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/" + SwaggerJsName
	RedocJsUrl        = "https://cdn.jsdelivr.net/npm/redoc@next/bundles/" + RedocJsName
)

const (
	MIMETextHTML        string = "text/html"
	MIMETextPlain       string = "text/plain"
	MIMEApplicationJSON string = "application/json"
)

// SecuritySchemeName 请求头 API Key 鉴权方案的名称
const SecuritySchemeName = "APIKeyHeader"

// OAuth2RedirectUrl swagger oauth2 回调页面的路径
const OAuth2RedirectUrl = "/docs/oauth2-redirect"
