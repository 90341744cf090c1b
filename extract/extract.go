// Package extract 遍历应用的路由表, 生成可序列化的路由描述
package extract

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// RouteDescriptor 单个路由的结构化描述
type RouteDescriptor struct {
	MethodName  string         `json:"method_name" yaml:"method_name" description:"处理函数名或方法名"`
	HTTPPath    string         `json:"http_path" yaml:"http_path" description:"路由模板"`
	HTTPMethods []string       `json:"http_methods" yaml:"http_methods"`
	RouteType   meta.RouteType `json:"route_type" yaml:"route_type"`
	RouteClass  string         `json:"route_class,omitempty" yaml:"route_class,omitempty" description:"所属路由组"`
	RouteTags   []string       `json:"route_tags,omitempty" yaml:"route_tags,omitempty"`
	IsDefault   bool           `json:"is_default" yaml:"is_default" description:"是否为框架默认路由"`
	IsMount     bool           `json:"is_mount,omitempty" yaml:"is_mount,omitempty" description:"是否来自挂载的子应用"`
	MountPath   string         `json:"mount_path,omitempty" yaml:"mount_path,omitempty"`
	Source      string         `json:"source,omitempty" yaml:"source,omitempty" description:"源码位置 file:line"`
}

// ID 形如 "GET /path"
func (d *RouteDescriptor) ID() string {
	m := ""
	if len(d.HTTPMethods) > 0 {
		m = d.HTTPMethods[0]
	}
	return m + " " + d.HTTPPath
}

// RoutesCollection 全部路由描述
type RoutesCollection struct {
	Routes        []*RouteDescriptor `json:"routes" yaml:"routes"`
	TotalRoutes   int                `json:"total_routes" yaml:"total_routes"`
	HasMounts     bool               `json:"has_mounts" yaml:"has_mounts"`
	HasWebSockets bool               `json:"has_websockets" yaml:"has_websockets"`
	HasStatic     bool               `json:"has_static" yaml:"has_static"`
}

// Paths 全部路由模板, 已去重
func (c *RoutesCollection) Paths() []string {
	paths := make([]string, 0, len(c.Routes))
	for _, r := range c.Routes {
		paths = append(paths, r.HTTPPath)
	}
	return utils.Unique(paths)
}

// Filter 按类别过滤
func (c *RoutesCollection) Filter(types ...meta.RouteType) []*RouteDescriptor {
	return utils.SliceFilter(c.Routes, func(r *RouteDescriptor) bool { return utils.Has(types, r.RouteType) })
}

// Extractor 路由提取器
type Extractor struct {
	IncludeDefault bool `description:"是否包含 /config/* 等默认路由"`
	ExpandMounts   bool `description:"是否展开子应用的路由, 否则每个子应用仅生成一个 api_mount 描述"`
}

// NewExtractor 默认包含默认路由并展开子应用
func NewExtractor() *Extractor {
	return &Extractor{IncludeDefault: true, ExpandMounts: true}
}

// Extract 提取路由表
func (e *Extractor) Extract(table meta.Table) *RoutesCollection {
	c := &RoutesCollection{Routes: make([]*RouteDescriptor, 0)}
	e.walk(c, table, "", false)
	sortDescriptors(c.Routes)
	c.TotalRoutes = len(c.Routes)
	return c
}

func (e *Extractor) walk(c *RoutesCollection, table meta.Table, prefix string, mounted bool) {
	for _, r := range table.RouteTable() {
		if r.Default && !e.IncludeDefault {
			continue
		}
		d := e.describe(r, prefix, mounted)
		switch r.Type {
		case meta.WebSocket:
			c.HasWebSockets = true
		case meta.Static:
			c.HasStatic = true
		}
		c.Routes = append(c.Routes, d)
	}

	for _, r := range table.RawRoutes() {
		c.Routes = append(c.Routes, e.describe(r, prefix, mounted))
	}

	for _, m := range table.Mounts() {
		c.HasMounts = true
		mountPath := pathschema.JoinPath(prefix, m.Prefix)
		if e.ExpandMounts {
			e.walk(c, m.Table, mountPath, true)
			continue
		}
		c.Routes = append(c.Routes, &RouteDescriptor{
			MethodName:  m.Table.Title(),
			HTTPPath:    mountPath,
			HTTPMethods: []string{},
			RouteType:   meta.APIMount,
			IsMount:     true,
			MountPath:   mountPath,
		})
	}
}

func (e *Extractor) describe(r *meta.Route, prefix string, mounted bool) *RouteDescriptor {
	d := &RouteDescriptor{
		MethodName:  r.Name,
		HTTPPath:    pathschema.JoinPath(prefix, r.Path),
		HTTPMethods: append([]string{}, r.Methods...),
		RouteType:   r.Type,
		RouteClass:  r.Class,
		RouteTags:   append([]string{}, r.Tags...),
		IsDefault:   r.Default,
		IsMount:     mounted,
		Source:      Source(r.Source),
	}
	if mounted {
		d.MountPath = prefix
	}
	sort.Strings(d.HTTPMethods)
	return d
}

// Source 函数定义的位置, 形如 file.go:12
func Source(fn any) string {
	file, line := utils.ReflectFuncSource(fn)
	if file == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// 按路由模板排序, 模板相同时按HTTP方法排序
func sortDescriptors(ds []*RouteDescriptor) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].HTTPPath != ds[j].HTTPPath {
			return ds[i].HTTPPath < ds[j].HTTPPath
		}
		return ds[i].ID() < ds[j].ID()
	})
}
