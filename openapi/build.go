// Package openapi 由服务契约生成 openapi 文档及 swagger/redoc 页面
package openapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/contract"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
)

// Option 文档构建选项
type Option func(o *OpenApi)

// WithAPIKey 声明请求头 API Key 鉴权, 全部路由均需要
func WithAPIKey(header string) Option {
	return func(o *OpenApi) {
		if header == "" {
			return
		}
		o.Components.SecuritySchemes = map[string]*SecurityScheme{
			SecuritySchemeName: {Type: "apiKey", In: "header", Name: header},
		}
		for _, item := range o.Paths {
			for _, op := range item {
				op.Security = []map[string][]string{{SecuritySchemeName: {}}}
			}
		}
	}
}

// WithContact 设置联系方式
func WithContact(contact Contact) Option {
	return func(o *OpenApi) { o.Info.Contact = &contact }
}

// WithLicense 设置许可证
func WithLicense(license License) Option {
	return func(o *OpenApi) { o.Info.License = &license }
}

// Build 由服务契约构建文档
func Build(sc *contract.ServiceContract, opts ...Option) *OpenApi {
	o := &OpenApi{
		Version: ApiVersion,
		Info: &Info{
			Title:       sc.ServiceName,
			Version:     sc.Version,
			Description: sc.Description,
		},
		Paths: make(map[string]PathItem),
		Components: &Components{
			Schemas: make(map[string]map[string]any, len(sc.Schemas)+2),
		},
	}
	if sc.BaseURL != "" {
		o.Servers = []*Server{{Url: sc.BaseURL}}
	}

	for name, schema := range sc.Schemas {
		o.Components.Schemas[name] = schema
	}
	// 内置错误类型
	o.Components.Schemas[godantic.ValidationErrorName] = (&godantic.ValidationError{}).Schema()
	o.Components.Schemas[godantic.HttpValidationErrorName] = (&godantic.HTTPValidationError{}).Schema()

	for _, ep := range sc.Endpoints {
		item, ok := o.Paths[ep.PathPattern]
		if !ok {
			item = make(PathItem)
			o.Paths[ep.PathPattern] = item
		}
		item[strings.ToLower(ep.Method)] = operationOf(ep)
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

func operationOf(ep *contract.EndpointContract) *Operation {
	op := &Operation{
		Tags:        ep.Tags,
		Summary:     ep.Summary,
		Description: ep.Description,
		OperationId: ep.OperationID,
		Parameters:  make([]*Parameter, 0),
		Responses:   make(map[string]*Response),
	}
	if len(op.Tags) == 0 {
		op.Tags = []string{ep.RouteModule}
	}
	if op.Summary == "" {
		op.Summary = strings.ReplaceAll(ep.OperationID, "_", " ")
	}

	for _, p := range ep.Params() {
		op.Parameters = append(op.Parameters, &Parameter{
			Name:        p.Name,
			Description: p.Description,
			In:          ParameterInType(p.Location),
			Required:    p.Required || p.Location == contract.PathParam,
			Schema:      paramSchema(p),
		})
	}

	if ep.HasBody() {
		op.RequestBody = &RequestBody{
			Required: ep.RequestRequired,
			Content:  map[string]*MediaType{MIMEApplicationJSON: {Schema: SchemaOf(ep.RequestSchema)}},
		}
	}

	ok := &Response{Description: "Successful Response"}
	if ep.ResponseSchema != nil {
		ok.Content = map[string]*MediaType{MIMEApplicationJSON: {Schema: SchemaOf(ep.ResponseSchema)}}
	}
	op.Responses[strconv.Itoa(http.StatusOK)] = ok

	for _, code := range ep.ErrorCodes {
		resp := &Response{Description: http.StatusText(code)}
		if code == contract.ValidationErrorCode {
			resp.Description = "Validation Error"
			resp.Content = map[string]*MediaType{MIMEApplicationJSON: {
				Schema: map[string]any{godantic.RefName: godantic.RefPrefix + godantic.HttpValidationErrorName},
			}}
		}
		op.Responses[strconv.Itoa(code)] = resp
	}

	return op
}

func paramSchema(p *contract.EndpointParam) map[string]any {
	schema := SchemaOf(p.Type)
	schema["title"] = p.Name
	if p.Default != nil {
		schema["default"] = p.Default
	}
	return schema
}

// SchemaOf 将类型引用转换为 json schema 片段
func SchemaOf(ref *contract.TypeRef) map[string]any {
	if ref == nil || ref.Type == godantic.AnyType {
		return map[string]any{}
	}
	if ref.Ref != "" {
		return map[string]any{godantic.RefName: godantic.RefPrefix + ref.Ref}
	}

	schema := map[string]any{"type": ref.Type}
	if ref.Items != nil {
		switch ref.Type {
		case godantic.ArrayType:
			schema["items"] = SchemaOf(ref.Items)
		case godantic.ObjectType:
			schema["additionalProperties"] = SchemaOf(ref.Items)
		}
	}
	return schema
}
