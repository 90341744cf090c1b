package openapi

import (
	"sync"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// Contact 联系方式, 显示在 info 字段内部
type Contact struct {
	Name  string `json:"name,omitempty" description:"姓名/名称"`
	Url   string `json:"url,omitempty" description:"链接"`
	Email string `json:"email,omitempty" description:"联系方式"`
}

// License 权利证书, 显示在 info 字段内部
type License struct {
	Name string `json:"name" description:"名称"`
	Url  string `json:"url,omitempty" description:"链接"`
}

// Info 文档说明信息
type Info struct {
	Title          string   `json:"title" description:"显示在文档顶部的标题"`
	Version        string   `json:"version" description:"显示在标题右上角的程序版本号"`
	Description    string   `json:"description,omitempty" description:"显示在标题下方的说明"`
	Contact        *Contact `json:"contact,omitempty" description:"联系方式"`
	License        *License `json:"license,omitempty" description:"许可证"`
	TermsOfService string   `json:"termsOfService,omitempty" description:"服务条款(不常用)"`
}

// Server 服务地址
type Server struct {
	Url         string `json:"url" description:"根地址"`
	Description string `json:"description,omitempty"`
}

// SecurityScheme 鉴权方案, 仅支持 apiKey
type SecurityScheme struct {
	Type string `json:"type" description:"方案类型"`
	In   string `json:"in" description:"header/cookie/query"`
	Name string `json:"name" description:"请求头名称"`
}

// Components openapi 的模型部分
type Components struct {
	Schemas         map[string]map[string]any  `json:"schemas" description:"模型文档"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty" description:"鉴权方案"`
}

type ParameterInType string

const (
	InQuery  ParameterInType = "query"
	InHeader ParameterInType = "header"
	InPath   ParameterInType = "path"
)

// Parameter 路径参数, 查询参数或请求头
type Parameter struct {
	Name        string          `json:"name" description:"名称"`
	Description string          `json:"description,omitempty" description:"说明"`
	In          ParameterInType `json:"in" description:"参数位置"`
	Required    bool            `json:"required" description:"是否必须"`
	Schema      map[string]any  `json:"schema" description:"字段模型"`
}

// MediaType 请求体或响应体的模型
type MediaType struct {
	Schema map[string]any `json:"schema" description:"模型引用文档"`
}

// RequestBody 路由 请求体模型文档
type RequestBody struct {
	Content  map[string]*MediaType `json:"content" description:"请求体模型"`
	Required bool                  `json:"required" description:"是否必须"`
}

// Response 路由返回体, 键为状态码
type Response struct {
	Description string                `json:"description" description:"说明"`
	Content     map[string]*MediaType `json:"content,omitempty" description:"返回值模型"`
}

// Operation 路由HTTP方法: Get/Post/Patch/Delete 等操作方法
type Operation struct {
	Tags        []string              `json:"tags,omitempty" description:"路由标签"`
	Summary     string                `json:"summary,omitempty" description:"摘要描述"`
	Description string                `json:"description,omitempty" description:"说明"`
	OperationId string                `json:"operationId" description:"唯一ID"`
	Parameters  []*Parameter          `json:"parameters,omitempty" description:"路径参数,查询参数和请求头"`
	RequestBody *RequestBody          `json:"requestBody,omitempty" description:"请求体"`
	Responses   map[string]*Response  `json:"responses" description:"响应体"`
	Security    []map[string][]string `json:"security,omitempty" description:"鉴权要求"`
}

// PathItem 同一路由的不同操作方法, 键为小写的方法名
type PathItem map[string]*Operation

// OpenApi 文档模型, 移除 FastApi 中不常用的属性
type OpenApi struct {
	Version    string              `json:"openapi" description:"Open API版本号"`
	Info       *Info               `json:"info" description:"联系信息"`
	Servers    []*Server           `json:"servers,omitempty" description:"服务地址"`
	Paths      map[string]PathItem `json:"paths" description:"路由列表,同一路由存在多个方法文档"`
	Components *Components         `json:"components" description:"模型文档"`
	mu         sync.Mutex
	cache      []byte
}

// Operation 查询路由操作
func (o *OpenApi) Operation(path, method string) *Operation {
	item, ok := o.Paths[path]
	if !ok {
		return nil
	}
	return item[method]
}

// RecreateDocs 重建文档缓存
func (o *OpenApi) RecreateDocs() error {
	bs, err := utils.JsonMarshal(o)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.cache = bs
	o.mu.Unlock()
	return nil
}

// Schema 序列化后的文档, 首次调用时生成
func (o *OpenApi) Schema() []byte {
	o.mu.Lock()
	cache := o.cache
	o.mu.Unlock()
	if cache != nil {
		return cache
	}

	if err := o.RecreateDocs(); err != nil {
		return []byte("{}")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cache
}
