package fastapi

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

const (
	FirstInParamName = "Context" // 第一个入参名称
	LastOutParamName = "error"   // 最后一个出参名称
	OutParamNum      = 2
)

var (
	contextType = reflect.TypeOf((*Context)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	objectType  = reflect.TypeOf((*typesafe.Object)(nil))
)

// IllegalParamKinds 入参和返回值均不支持的类型
var IllegalParamKinds = []reflect.Kind{
	reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128,
}

// RouteOption 路由选项, 作用等同于路由函数的装饰器
type RouteOption func(r *meta.Route)

// WithPath 显式指定相对路由, 不再从函数名推断, 路径参数形如 {id}
func WithPath(path string) RouteOption {
	return func(r *meta.Route) { r.Path = path }
}

// WithName 指定路由名称, 同时作为推断路由的函数名
func WithName(name string) RouteOption {
	return func(r *meta.Route) { r.Name = name }
}

func WithSummary(summary string) RouteOption {
	return func(r *meta.Route) { r.Summary = summary }
}

func WithDescription(description string) RouteOption {
	return func(r *meta.Route) { r.Description = description }
}

// WithTags 追加文档标签
func WithTags(tags ...string) RouteOption {
	return func(r *meta.Route) { r.Tags = append(r.Tags, tags...) }
}

// WithErrors 声明路由可能返回的错误码
func WithErrors(codes ...int) RouteOption {
	return func(r *meta.Route) { r.ErrorCodes = append(r.ErrorCodes, codes...) }
}

// WithTypeSafeBody 请求体按类解析, 路由函数的入参必须为 *typesafe.Object
func WithTypeSafeBody(class *typesafe.Class) RouteOption {
	return func(r *meta.Route) { r.BodyClass = class }
}

// WithTypeSafeResponse 声明返回值 *typesafe.Object 的类, 用于文档和客户端
func WithTypeSafeResponse(class *typesafe.Class) RouteOption {
	return func(r *meta.Route) { r.OutputClass = class }
}

// 框架默认路由
func withDefault() RouteOption {
	return func(r *meta.Route) { r.Default = true }
}

// Routes 路由集合, 路由地址由 前缀 + 函数名推断 得到
//
//	routes := fastapi.NewRoutes("files")
//	routes.AddRouteGet(file_id__info)	// GET /files/{file_id}/info
type Routes struct {
	tag    string                     `description:"文档标签"`
	prefix string                     `description:"路由前缀"`
	class  string                     `description:"路由集合名称"`
	schema pathschema.RoutePathSchema `description:"字面量路由段的格式化方案"`
	routes []*meta.Route
}

// NewRoutes 创建路由集合, 路由前缀默认为 /tag
func NewRoutes(tag string) *Routes {
	r := &Routes{
		tag:    tag,
		prefix: pathschema.JoinPath("", tag),
		class:  "Routes" + utils.CamelCase(strings.ReplaceAll(tag, "-", "_")),
		schema: pathschema.Default(),
		routes: make([]*meta.Route, 0),
	}
	if tag == "" {
		r.prefix = ""
	}
	return r
}

func (r *Routes) Tag() string { return r.tag }

func (r *Routes) Prefix() string { return r.prefix }

func (r *Routes) Class() string { return r.class }

// SetPrefix 修改路由前缀, 必须在添加路由之前调用
func (r *Routes) SetPrefix(prefix string) *Routes {
	r.prefix = prefix
	return r
}

// SetClass 修改路由集合名称, 客户端以此名称对路由进行分组
func (r *Routes) SetClass(class string) *Routes {
	r.class = class
	return r
}

// SetPathSchema 修改字面量路由段的格式化方案
func (r *Routes) SetPathSchema(schema pathschema.RoutePathSchema) *Routes {
	r.schema = schema
	return r
}

// Routes 已添加的路由
func (r *Routes) Routes() []*meta.Route { return r.routes }

// AddRoute 添加一个路由, 若路由函数不符合要求则panic
//
// 路由函数签名为 func(*Context) (R, error) 或 func(*Context, In) (R, error),
// In 为结构体或结构体指针, 其字段规则见 meta.ScanInput.
func (r *Routes) AddRoute(method string, handler any, opts ...RouteOption) *Routes {
	route, err := newRoute(method, handler, handler, "", "", r.prefix, r.schema, opts...)
	if err != nil {
		panic(fmt.Errorf("routes '%s': %w", r.class, err))
	}
	route.Class = r.class
	if r.tag != "" {
		route.Tags = append([]string{r.tag}, route.Tags...)
	}
	r.routes = append(r.routes, route)
	return r
}

func (r *Routes) AddRouteGet(handler any, opts ...RouteOption) *Routes {
	return r.AddRoute(http.MethodGet, handler, opts...)
}

func (r *Routes) AddRoutePost(handler any, opts ...RouteOption) *Routes {
	return r.AddRoute(http.MethodPost, handler, opts...)
}

func (r *Routes) AddRoutePut(handler any, opts ...RouteOption) *Routes {
	return r.AddRoute(http.MethodPut, handler, opts...)
}

func (r *Routes) AddRoutePatch(handler any, opts ...RouteOption) *Routes {
	return r.AddRoute(http.MethodPatch, handler, opts...)
}

func (r *Routes) AddRouteDelete(handler any, opts ...RouteOption) *Routes {
	return r.AddRoute(http.MethodDelete, handler, opts...)
}

// 构建路由元信息
//
//	@param	method	string	HTTP方法
//	@param	handler	any		路由函数
//	@param	source	any		用于定位源码的函数
//	@param	name	string	路由名称, 为空则采用函数名
//	@param	pathName	string	用于推断路由的名称, 为空则采用路由名称
//	@param	prefix	string	路由前缀
func newRoute(method string, handler any, source any, name, pathName string, prefix string,
	schema pathschema.RoutePathSchema, opts ...RouteOption) (*meta.Route, error) {
	in, out, err := inspectHandler(handler)
	if err != nil {
		return nil, err
	}

	route := &meta.Route{
		Name:    name,
		Methods: []string{strings.ToUpper(method)},
		Type:    meta.APIRoute,
		Prefix:  prefix,
		Input:   in,
		Output:  out,
		Handler: handler,
		Source:  source,
	}
	if route.Name == "" {
		route.Name = utils.ReflectFuncName(handler)
	}
	for _, opt := range opts {
		opt(route)
	}

	switch {
	case in == objectType && route.BodyClass == nil:
		return nil, fmt.Errorf("%w: '%s' takes *typesafe.Object but has no body class", ErrInvalidHandler, route.Name)
	case route.BodyClass != nil && in != objectType:
		return nil, fmt.Errorf("%w: '%s' has a body class but does not take *typesafe.Object", ErrInvalidHandler, route.Name)
	}

	route.Params, err = meta.ScanInput(in)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", ErrInvalidHandler, route.Name, err)
	}

	declared := make([]string, 0)
	for _, p := range route.ParamsIn(meta.InPath) {
		declared = append(declared, p.Name)
	}

	relative := route.Path
	if relative == "" {
		relative = pathschema.ParseWithSchema(utils.Ternary(pathName != "", pathName, route.Name), declared, schema)
	}
	route.Path = pathschema.JoinPath(prefix, relative)

	// 路由模板中的参数与声明的路径参数必须一致
	inPath := pathschema.PathParams(route.Path)
	for _, p := range inPath {
		if !utils.Has(declared, p) {
			return nil, fmt.Errorf("%w: '%s' path param '{%s}' is not declared", ErrInvalidHandler, route.Path, p)
		}
	}
	for _, p := range declared {
		if !utils.Has(inPath, p) {
			return nil, fmt.Errorf("%w: path param '%s' not found in '%s', use WithPath to place it", ErrInvalidHandler, p, route.Path)
		}
	}

	return route, nil
}

// 检查路由函数签名, 返回入参类型(可能为nil)和返回值类型
func inspectHandler(handler any) (in reflect.Type, out reflect.Type, err error) {
	rt := reflect.TypeOf(handler)
	if rt == nil || rt.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("%w: %T is not a function", ErrInvalidHandler, handler)
	}
	if rt.NumIn() < 1 || rt.NumIn() > 2 || rt.In(0) != contextType {
		return nil, nil, fmt.Errorf("%w: %s, the first param must be *%s", ErrInvalidHandler, rt, FirstInParamName)
	}
	if rt.NumOut() != OutParamNum || rt.Out(1) != errorType {
		return nil, nil, fmt.Errorf("%w: %s, must return (R, %s)", ErrInvalidHandler, rt, LastOutParamName)
	}

	out = rt.Out(0)
	if !legalType(out) {
		return nil, nil, fmt.Errorf("%w: %s, illegal response type %s", ErrInvalidHandler, rt, out)
	}
	if rt.NumIn() == 2 {
		in = rt.In(1)
		if !legalType(in) {
			return nil, nil, fmt.Errorf("%w: %s, illegal input type %s", ErrInvalidHandler, rt, in)
		}
	}
	return in, out, nil
}

// 不支持指针的指针
func legalType(rt reflect.Type) bool {
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
		if rt.Kind() == reflect.Ptr {
			return false
		}
	}
	return !utils.Has(IllegalParamKinds, rt.Kind())
}
