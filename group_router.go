package fastapi

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
)

const HttpMethodMinimumLength = len(http.MethodGet)

var HttpMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPatch,
	http.MethodPut,
	http.MethodDelete,
	http.MethodOptions,
}

// GroupRouter 结构体路由组定义
// 用法：首先实现此接口，然后通过调用 Wrapper.IncludeRouter 方法进行注册绑定
type GroupRouter interface {
	// Prefix 路由组前缀，无需考虑是否以/开头或结尾
	Prefix() string
	// Tags 标签，如果为空则设为结构体名称
	Tags() []string
	// PathSchema 路由解析规则, 作用于由方法名推断得到的字面量路由段
	PathSchema() pathschema.RoutePathSchema
	// Summary 允许对单个方法路由的文档摘要信息进行定义
	// 方法名:摘要信息
	Summary() map[string]string
	// Description 方法名:描述信息
	Description() map[string]string
	// Path 允许对方法的路由进行重载, 方法名:相对路由
	// 路径参数形如 {id}, 且必须在入参结构体中以 path 标签声明
	Path() map[string]string
}

// BaseRouter (面向对象式)路由组基类
// 需实现 GroupRouter 接口
//
// 其中以 Get,Post,Delete,Patch,Put 字符串(不区分大小写)开头或结尾并以 (XXX, error)形式为返回值的方法会被作为路由处理
// 其url由去除HTTP方法后的方法名, 按 pathschema.ParseWithSchema 进行推断.
//
// 对于作为路由的方法签名有如下要求：
//
//	1：参数：
//
//		第一个参数必须为 *Context
//		第二个参数可选, 必须为结构体或结构体指针, 其字段通过 path/query/header 标签声明参数位置,
//		名为 Body 的字段作为请求体; 若没有任何标签, 则整个结构体作为请求体
//
//	2：返回值
//
//		有且仅有2个返回值 (XXX, error)
//		其中XXX会作为响应体模型，若error!=nil则返回错误
//
//	对于上述参数和返回值XXX，其数据类型不能是 函数，通道，指针的指针
type BaseRouter struct {
	// 基类实现不能包含任何路由方法
}

func (g *BaseRouter) Prefix() string { return "" }

func (g *BaseRouter) Tags() []string { return []string{} }

func (g *BaseRouter) PathSchema() pathschema.RoutePathSchema {
	return pathschema.Default()
}

func (g *BaseRouter) Path() map[string]string {
	return map[string]string{}
}

func (g *BaseRouter) Summary() map[string]string {
	return map[string]string{}
}

func (g *BaseRouter) Description() map[string]string {
	return map[string]string{}
}

// GroupRouterMeta 反射构建路由组的元信息
type GroupRouterMeta struct {
	router GroupRouter
	routes []*meta.Route
	pkg    string // 包名.结构体名
	name   string // 结构体名
	tags   []string
}

// NewGroupRouteMeta 构建一个路由组的主入口
func NewGroupRouteMeta(router GroupRouter) *GroupRouterMeta {
	return &GroupRouterMeta{router: router}
}

func (r *GroupRouterMeta) Id() string { return r.pkg }

func (r *GroupRouterMeta) Routes() []*meta.Route { return r.routes }

// Init 扫描路由组的全部方法
func (r *GroupRouterMeta) Init() (err error) {
	obj := reflect.TypeOf(r.router)

	// 路由组必须是结构体实现
	if obj.Kind() != reflect.Pointer || obj.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("router: '%s' not a struct pointer", obj.String())
	}

	r.pkg = obj.Elem().String()
	r.name = obj.Elem().Name()
	r.routes = make([]*meta.Route, 0)
	r.scanTags()

	return r.scanMethod()
}

// 扫描tags, 由于接口方法允许留空，此处需处理默认值
func (r *GroupRouterMeta) scanTags() {
	tags := r.router.Tags()
	if len(tags) == 0 {
		tags = append(tags, r.name)
	}
	r.tags = tags
}

// 反射方法
func (r *GroupRouterMeta) scanMethod() error {
	obj := reflect.TypeOf(r.router) // 由于必须是指针接收器，因此obj应为指针类型
	value := reflect.ValueOf(r.router)

	schema := r.router.PathSchema()
	if schema == nil {
		schema = pathschema.Default()
	}
	paths := r.router.Path()
	summaries := r.router.Summary()
	descriptions := r.router.Description()

	for i := 0; i < obj.NumMethod(); i++ {
		method := obj.Method(i)
		httpMethod, relative, isRoute := r.isRouteMethod(method)
		if !isRoute {
			continue
		}
		// 方法签名不符合要求的不作为路由
		handler := value.Method(i).Interface()
		if _, _, err := inspectHandler(handler); err != nil {
			continue
		}

		opts := []RouteOption{WithTags(r.tags...)}
		if p, ok := paths[method.Name]; ok {
			opts = append(opts, WithPath(p))
		}
		if s, ok := summaries[method.Name]; ok {
			opts = append(opts, WithSummary(s))
		}
		if d, ok := descriptions[method.Name]; ok {
			opts = append(opts, WithDescription(d))
		}

		route, err := newRoute(httpMethod, handler, method.Func.Interface(), method.Name, relative,
			r.router.Prefix(), schema, opts...)
		if err != nil {
			return fmt.Errorf("group-router '%s': %w", r.pkg, err)
		}
		route.Class = r.name
		r.routes = append(r.routes, route)
	}

	return nil
}

// 判断一个方法是不是路由方法, 并返回HTTP方法和去除HTTP方法后的相对名称
func (r *GroupRouterMeta) isRouteMethod(method reflect.Method) (httpMethod string, relative string, ok bool) {
	if len(method.Name) <= HttpMethodMinimumLength {
		// 长度不够
		return "", "", false
	}

	if unicode.IsLower([]rune(method.Name)[0]) {
		// 非导出方法
		return "", "", false
	}

	methodNameLength := len(method.Name)
	// 依次判断是哪一种方法
	for _, hm := range HttpMethods {
		offset := len(hm)
		if methodNameLength <= offset {
			continue // 长度不匹配
		}
		if strings.ToUpper(method.Name[:offset]) == hm {
			// 方法在前，截取后半部分为路由
			return hm, method.Name[offset:], true
		}
		if strings.ToUpper(method.Name[methodNameLength-offset:]) == hm {
			return hm, method.Name[:methodNameLength-offset], true
		}
	}

	return "", "", false
}
