// Package contract 从路由表提取服务契约, 用于生成客户端代码和文档
package contract

import (
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
)

// ParamLocation 参数位置
type ParamLocation = meta.ParamIn

const (
	PathParam   = meta.InPath
	QueryParam  = meta.InQuery
	HeaderParam = meta.InHeader
	BodyParam   = meta.InBody
)

// TypeRef 类型引用, 对象类型通过 Ref 关联到 ServiceContract.Schemas
type TypeRef struct {
	Type  godantic.OpenApiDataType `json:"type" yaml:"type" description:"openapi 数据类型, 为空表示任意类型"`
	Ref   string                   `json:"ref,omitempty" yaml:"ref,omitempty" description:"模型名称"`
	Items *TypeRef                 `json:"items,omitempty" yaml:"items,omitempty" description:"数组元素或字典值类型"`
}

// PyType 对应的 python 类型注解
func (t *TypeRef) PyType() string {
	if t == nil {
		return "Any"
	}
	switch t.Type {
	case godantic.ArrayType:
		if t.Items != nil {
			return "list[" + t.Items.PyType() + "]"
		}
		return "list"
	case godantic.ObjectType:
		if t.Ref != "" {
			return t.Ref
		}
		if t.Items != nil {
			return "dict[str, " + t.Items.PyType() + "]"
		}
		return "dict"
	}
	return PyType(t.Type)
}

// PyType 基本数据类型对应的 python 类型
func PyType(dt godantic.OpenApiDataType) string {
	switch dt {
	case godantic.IntegerType:
		return "int"
	case godantic.NumberType:
		return "float"
	case godantic.StringType:
		return "str"
	case godantic.BoolType:
		return "bool"
	case godantic.ArrayType:
		return "list"
	case godantic.ObjectType:
		return "dict"
	}
	return "Any"
}

// EndpointParam 路由参数
type EndpointParam struct {
	Name        string        `json:"name" yaml:"name"`
	Location    ParamLocation `json:"location" yaml:"location"`
	Type        *TypeRef      `json:"type" yaml:"type"`
	PyType      string        `json:"py_type" yaml:"py_type"`
	Required    bool          `json:"required" yaml:"required"`
	Default     any           `json:"default,omitempty" yaml:"default,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// EndpointContract 单个路由的契约
type EndpointContract struct {
	OperationID     string           `json:"operation_id" yaml:"operation_id" description:"全局唯一的操作ID"`
	Method          string           `json:"method" yaml:"method"`
	PathPattern     string           `json:"path_pattern" yaml:"path_pattern" description:"路由模板, 包含挂载前缀"`
	RouteMethod     string           `json:"route_method" yaml:"route_method" description:"处理函数名或方法名"`
	RouteModule     string           `json:"route_module" yaml:"route_module" description:"所属模块"`
	RouteClass      string           `json:"route_class,omitempty" yaml:"route_class,omitempty"`
	Summary         string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description     string           `json:"description,omitempty" yaml:"description,omitempty"`
	Tags            []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	PathParams      []*EndpointParam `json:"path_params" yaml:"path_params"`
	QueryParams     []*EndpointParam `json:"query_params" yaml:"query_params"`
	HeaderParams    []*EndpointParam `json:"header_params" yaml:"header_params"`
	RequestSchema   *TypeRef         `json:"request_schema,omitempty" yaml:"request_schema,omitempty"`
	RequestRequired bool             `json:"request_required,omitempty" yaml:"request_required,omitempty"`
	ResponseSchema  *TypeRef         `json:"response_schema,omitempty" yaml:"response_schema,omitempty" description:"为空表示原始响应"`
	ErrorCodes      []int            `json:"error_codes" yaml:"error_codes"`
	IsDefault       bool             `json:"is_default,omitempty" yaml:"is_default,omitempty"`
}

// HasBody 是否存在请求体
func (e *EndpointContract) HasBody() bool { return e.RequestSchema != nil }

// Params 全部非请求体参数, 依次为路径参数,查询参数,请求头
func (e *EndpointContract) Params() []*EndpointParam {
	ps := make([]*EndpointParam, 0, len(e.PathParams)+len(e.QueryParams)+len(e.HeaderParams))
	ps = append(ps, e.PathParams...)
	ps = append(ps, e.QueryParams...)
	return append(ps, e.HeaderParams...)
}

// ModuleContract 一组具有相同路由前缀的路由
type ModuleContract struct {
	ModuleName   string              `json:"module_name" yaml:"module_name"`
	PathPrefix   string              `json:"path_prefix" yaml:"path_prefix"`
	RouteClasses []string            `json:"route_classes" yaml:"route_classes"`
	Endpoints    []*EndpointContract `json:"endpoints" yaml:"endpoints"`
}

// ServiceContract 整个服务的契约
type ServiceContract struct {
	ServiceName string                    `json:"service_name" yaml:"service_name"`
	Version     string                    `json:"version" yaml:"version"`
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL     string                    `json:"base_url" yaml:"base_url"`
	Modules     []*ModuleContract         `json:"modules" yaml:"modules"`
	Endpoints   []*EndpointContract       `json:"endpoints" yaml:"endpoints"`
	Schemas     map[string]map[string]any `json:"schemas" yaml:"schemas" description:"模型名: json schema"`
}

// Module 按名称查找模块
func (s *ServiceContract) Module(name string) *ModuleContract {
	for _, m := range s.Modules {
		if m.ModuleName == name {
			return m
		}
	}
	return nil
}

// Endpoint 按操作ID查找路由
func (s *ServiceContract) Endpoint(operationID string) *EndpointContract {
	for _, e := range s.Endpoints {
		if e.OperationID == operationID {
			return e
		}
	}
	return nil
}
