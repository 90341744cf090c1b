// Package meta 路由表的元信息, 由 fastapi 生成, 被 extract / contract / openapi 读取
package meta

import (
	"reflect"
	"sort"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
)

// RouteType 路由类别
type RouteType string

const (
	APIRoute  RouteType = "api_route"
	APIMount  RouteType = "api_mount"
	WebSocket RouteType = "websocket"
	Static    RouteType = "static"
	Raw       RouteType = "raw" // 直接注册到底层路由器的路由
)

// Route 一个路由的全部元信息
type Route struct {
	Name        string          `json:"name" description:"处理函数名或方法名"`
	Methods     []string        `json:"methods" description:"HTTP方法"`
	Path        string          `json:"path" description:"路由模板, 路径参数形如 {id}"`
	Type        RouteType       `json:"type" description:"路由类别"`
	Class       string          `json:"class,omitempty" description:"所属路由组名称"`
	Prefix      string          `json:"prefix,omitempty" description:"所属路由组前缀"`
	Tags        []string        `json:"tags,omitempty" description:"文档标签"`
	Summary     string          `json:"summary,omitempty" description:"摘要"`
	Description string          `json:"description,omitempty" description:"描述"`
	Default     bool            `json:"default" description:"是否为框架默认路由"`
	Input       reflect.Type    `json:"-" description:"入参结构体类型, nil 表示无入参"`
	Params      []*Param        `json:"-" description:"入参解析结果"`
	BodyClass   *typesafe.Class `json:"-" description:"请求体为实例时的类"`
	Output      reflect.Type    `json:"-" description:"响应体类型"`
	OutputClass *typesafe.Class `json:"-" description:"响应体为实例时的类"`
	ErrorCodes  []int           `json:"error_codes,omitempty" description:"已声明的错误码"`
	Handler     any             `json:"-" description:"处理函数"`
	Source      any             `json:"-" description:"用于定位源码的函数, 通常与 Handler 相同"`
	StaticDir   string          `json:"static_dir,omitempty" description:"静态文件目录"`
}

// ID 路由的唯一标识
func (r *Route) ID() string {
	id := r.Path
	for _, m := range r.Methods {
		id = m + " " + id
	}
	return id
}

// HasInput 是否存在任何入参
func (r *Route) HasInput() bool { return len(r.Params) > 0 }

// ParamsIn 获取指定位置的入参
func (r *Route) ParamsIn(in ParamIn) []*Param {
	ps := make([]*Param, 0)
	for _, p := range r.Params {
		if p.In == in {
			ps = append(ps, p)
		}
	}
	return ps
}

// Body 请求体参数, 不存在则返回nil
func (r *Route) Body() *Param {
	for _, p := range r.Params {
		if p.In == InBody {
			return p
		}
	}
	return nil
}

// Mount 挂载的子应用
type Mount struct {
	Prefix string `json:"prefix"`
	Table  Table  `json:"-"`
}

// Table 可被遍历的路由表, 通常是 *fastapi.Wrapper
type Table interface {
	Title() string
	Version() string
	Description() string
	// RouteTable 通过应用注册的全部路由, 包括默认路由, 静态目录和 websocket
	RouteTable() []*Route
	// Mounts 挂载的子应用
	Mounts() []*Mount
	// RawRoutes 绕过应用直接注册到底层路由器的路由
	RawRoutes() []*Route
}

// SortRoutes 按路由模板排序, 模板相同时按第一个HTTP方法排序
func SortRoutes(routes []*Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return firstMethod(routes[i]) < firstMethod(routes[j])
	})
}

func firstMethod(r *Route) string {
	if len(r.Methods) == 0 {
		return ""
	}
	return r.Methods[0]
}
