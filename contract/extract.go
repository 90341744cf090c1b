package contract

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/armon/go-radix"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/convert"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// RootModuleName 无法确定模块的路由, 如 "/"
const RootModuleName = "root"

var ErrEmptyTable = errors.New("contract: route table is nil")

var objectType = reflect.TypeOf((*typesafe.Object)(nil))

// Extractor 服务契约提取器
type Extractor struct {
	table          meta.Table
	IncludeDefault bool   `description:"是否包含 /config/* 及文档等默认路由"`
	ScanErrors     bool   `description:"是否扫描处理函数源码以识别错误码"`
	BaseURL        string `description:"服务的根地址"`
}

// NewExtractor 默认不包含默认路由, 并扫描源码
func NewExtractor(table meta.Table) *Extractor {
	return &Extractor{table: table, ScanErrors: true}
}

// 路由及其所在的挂载前缀
type mountedRoute struct {
	route  *meta.Route
	prefix string
}

// Extract 提取服务契约
func (e *Extractor) Extract() (*ServiceContract, error) {
	if e.table == nil {
		return nil, ErrEmptyTable
	}

	routes := make([]mountedRoute, 0)
	e.collect(e.table, "", &routes)

	// 以路由组前缀建立前缀树, 路由归属于最长匹配的前缀
	tree := radix.New()
	for _, mr := range routes {
		if mr.route.Prefix == "" || mr.route.Prefix == pathschema.PathSeparator {
			continue
		}
		prefix := pathschema.JoinPath(mr.prefix, mr.route.Prefix)
		tree.Insert(prefix+pathschema.PathSeparator, prefix)
	}

	sc := &ServiceContract{
		ServiceName: e.table.Title(),
		Version:     e.table.Version(),
		Description: e.table.Description(),
		BaseURL:     e.BaseURL,
		Modules:     make([]*ModuleContract, 0),
		Endpoints:   make([]*EndpointContract, 0),
		Schemas:     make(map[string]map[string]any),
	}
	modules := make(map[string]*ModuleContract)
	operations := make(map[string]int)

	for _, mr := range routes {
		for _, method := range mr.route.Methods {
			ep := e.endpoint(sc, mr, method)

			prefix := ""
			if _, v, ok := tree.LongestPrefix(ep.PathPattern + pathschema.PathSeparator); ok {
				prefix = v.(string)
			} else {
				prefix = firstSegment(ep.PathPattern)
			}
			ep.RouteModule = moduleName(prefix)

			// 同名函数注册为多个方法或多个路由时, 操作ID追加序号
			operations[ep.OperationID]++
			if n := operations[ep.OperationID]; n > 1 {
				ep.OperationID = fmt.Sprintf("%s_%d", ep.OperationID, n)
			}

			m, ok := modules[ep.RouteModule]
			if !ok {
				m = &ModuleContract{
					ModuleName:   ep.RouteModule,
					PathPrefix:   prefix,
					RouteClasses: make([]string, 0),
					Endpoints:    make([]*EndpointContract, 0),
				}
				modules[ep.RouteModule] = m
			}
			if ep.RouteClass != "" && !utils.Has(m.RouteClasses, ep.RouteClass) {
				m.RouteClasses = append(m.RouteClasses, ep.RouteClass)
			}
			m.Endpoints = append(m.Endpoints, ep)
			sc.Endpoints = append(sc.Endpoints, ep)
		}
	}

	for _, name := range utils.SortedKeys(modules) {
		m := modules[name]
		sort.Strings(m.RouteClasses)
		sortEndpoints(m.Endpoints)
		sc.Modules = append(sc.Modules, m)
	}
	sortEndpoints(sc.Endpoints)

	return sc, nil
}

// 递归收集 API 路由, 包括子应用
func (e *Extractor) collect(table meta.Table, prefix string, routes *[]mountedRoute) {
	for _, r := range table.RouteTable() {
		if r.Type != meta.APIRoute || (r.Default && !e.IncludeDefault) {
			continue
		}
		*routes = append(*routes, mountedRoute{route: r, prefix: prefix})
	}
	for _, m := range table.Mounts() {
		e.collect(m.Table, pathschema.JoinPath(prefix, m.Prefix), routes)
	}
}

func (e *Extractor) endpoint(sc *ServiceContract, mr mountedRoute, method string) *EndpointContract {
	r := mr.route
	ep := &EndpointContract{
		OperationID:  utils.SnakeCase(r.Name),
		Method:       method,
		PathPattern:  pathschema.JoinPath(mr.prefix, r.Path),
		RouteMethod:  r.Name,
		RouteClass:   r.Class,
		Summary:      r.Summary,
		Description:  r.Description,
		Tags:         append([]string{}, r.Tags...),
		PathParams:   make([]*EndpointParam, 0),
		QueryParams:  make([]*EndpointParam, 0),
		HeaderParams: make([]*EndpointParam, 0),
		IsDefault:    r.Default,
	}
	if ep.OperationID == "" {
		ep.OperationID = strings.ToLower(method) + "_" + strings.Trim(strings.ReplaceAll(ep.PathPattern, "/", "_"), "_")
	}

	for _, p := range r.Params {
		switch p.In {
		case meta.InBody:
			ep.RequestSchema = bodyRef(sc, r, p)
			ep.RequestRequired = p.Required
		default:
			ref := typeRef(sc, p.Type)
			param := &EndpointParam{
				Name:        p.Name,
				Location:    p.In,
				Type:        ref,
				PyType:      ref.PyType(),
				Required:    p.Required,
				Default:     p.Default,
				Description: p.Description,
			}
			switch p.In {
			case meta.InPath:
				ep.PathParams = append(ep.PathParams, param)
			case meta.InQuery:
				ep.QueryParams = append(ep.QueryParams, param)
			case meta.InHeader:
				ep.HeaderParams = append(ep.HeaderParams, param)
			}
		}
	}

	ep.ResponseSchema = responseRef(sc, r)

	codes := append([]int{}, r.ErrorCodes...)
	if e.ScanErrors && r.Source != nil {
		codes = append(codes, ScanErrorCodes(r.Source)...)
	}
	if r.HasInput() {
		codes = append(codes, ValidationErrorCode)
	}
	ep.ErrorCodes = normalizeCodes(codes)

	return ep
}

func bodyRef(sc *ServiceContract, r *meta.Route, p *meta.Param) *TypeRef {
	if r.BodyClass != nil {
		return classRef(sc, r.BodyClass)
	}
	return typeRef(sc, p.Type)
}

// 响应体类型引用, 原始响应返回nil
func responseRef(sc *ServiceContract, r *meta.Route) *TypeRef {
	if r.OutputClass != nil {
		return classRef(sc, r.OutputClass)
	}
	if r.Output == nil || isRawResponse(r.Output) {
		return nil
	}
	if r.Output == objectType {
		return &TypeRef{Type: godantic.ObjectType}
	}
	return typeRef(sc, r.Output)
}

// 实现了 Send 方法的返回值自行写入响应
func isRawResponse(rt reflect.Type) bool {
	if _, ok := rt.MethodByName("Send"); ok {
		return true
	}
	if rt.Kind() != reflect.Ptr {
		_, ok := reflect.PointerTo(rt).MethodByName("Send")
		return ok
	}
	return false
}

// 类的类型引用, 类无法转换为结构体时作为普通对象
func classRef(sc *ServiceContract, class *typesafe.Class) *TypeRef {
	model, err := convert.TypeSafeToModel(class)
	if err != nil {
		return &TypeRef{Type: godantic.ObjectType}
	}
	return typeRef(sc, model)
}

// 将类型转换为类型引用, 并登记其关联的全部模型
func typeRef(sc *ServiceContract, rt reflect.Type) *TypeRef {
	if rt == nil {
		return &TypeRef{Type: godantic.AnyType}
	}
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}

	switch rt.Kind() {
	case reflect.Struct:
		md := godantic.StructReflect(rt)
		for _, dep := range md.Dependencies() {
			sc.Schemas[dep.SchemaName(true)] = dep.Schema()
		}
		return &TypeRef{Type: godantic.ObjectType, Ref: md.SchemaName(true)}
	case reflect.Slice, reflect.Array:
		if rt.Elem().Kind() == reflect.Uint8 {
			return &TypeRef{Type: godantic.StringType}
		}
		return &TypeRef{Type: godantic.ArrayType, Items: typeRef(sc, rt.Elem())}
	case reflect.Map:
		return &TypeRef{Type: godantic.ObjectType, Items: typeRef(sc, rt.Elem())}
	}
	return &TypeRef{Type: godantic.ReflectKindToOType(rt.Kind())}
}

// 路由的第一段作为前缀, 路径参数除外
func firstSegment(path string) string {
	for _, s := range strings.Split(path, pathschema.PathSeparator) {
		if s == "" || strings.HasPrefix(s, "{") {
			continue
		}
		return pathschema.PathSeparator + s
	}
	return ""
}

// 由前缀生成模块名: /api/user-files => api_user_files
func moduleName(prefix string) string {
	spans := make([]string, 0)
	for _, s := range strings.Split(prefix, pathschema.PathSeparator) {
		if s == "" || strings.HasPrefix(s, "{") {
			continue
		}
		s = strings.NewReplacer("-", "_", ".", "_").Replace(s)
		spans = append(spans, utils.SnakeCase(s))
	}
	if len(spans) == 0 {
		return RootModuleName
	}
	return strings.Join(spans, "_")
}

// 按路由模板及方法排序
func sortEndpoints(eps []*EndpointContract) {
	sort.SliceStable(eps, func(i, j int) bool {
		if eps[i].PathPattern != eps[j].PathPattern {
			return eps[i].PathPattern < eps[j].PathPattern
		}
		return eps[i].Method < eps[j].Method
	})
}
