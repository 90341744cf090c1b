package godantic

import (
	"reflect"
	"sort"
	"sync"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

type dict = map[string]any

// Describer 模型可实现此接口以提供文档注释
type Describer interface {
	SchemaDesc() string
}

// 缓存全部的结构体元信息，以减少上层反射次数
var metaCache = &MetaCache{data: make(map[reflect.Type]*Metadata), names: make(map[reflect.Type]string)}

// MetaField 结构体字段元信息
type MetaField struct {
	RType       reflect.Type    `description:"反射字段类型"`
	Name        string          `json:"name" description:"字段名"`
	JsonName    string          `json:"json_name" description:"json名称"`
	Index       int             `json:"index" description:"当前字段所处的序号"`
	DataType    OpenApiDataType `json:"type" description:"openapi 数据类型"`
	Required    bool            `json:"required" description:"是否必须"`
	Optional    bool            `json:"optional" description:"是否允许为空: 指针,接口或 omitempty"`
	HasDefault  bool            `json:"has_default"`
	Default     any             `json:"default,omitempty" description:"默认值"`
	Description string          `json:"description,omitempty" description:"说明"`
	Tag         reflect.StructTag
	Elem        *MetaField `description:"子元素类型, 仅数组和字典有效"`
	Inner       *Metadata  `description:"关联模型, 仅结构体有效"`
}

// Schema 生成字段的详细描述信息
//
//	// 字段为结构体类型
//	"position": {"title": "position", "$ref": "#/components/schemas/PositionGeo"}
//
//	// 字段为数组类型, 数组元素为基本类型
//	"timeslot": {"title": "timeslot", "type": "array", "items": {"type": "integer"}}
func (f *MetaField) Schema() map[string]any {
	m := f.typeSchema()
	if f.Name != "" {
		m["title"] = f.JsonName
	}
	if f.Description != "" && f.Description != f.Name {
		m["description"] = f.Description
	}
	if f.HasDefault {
		m["default"] = f.Default
	}
	for k, v := range constraintsOf(f.Tag, f.DataType) {
		m[k] = v
	}
	return m
}

func (f *MetaField) typeSchema() map[string]any {
	switch f.DataType {
	case ArrayType:
		m := dict{"type": ArrayType}
		if f.Elem != nil {
			m["items"] = f.Elem.typeSchema()
		}
		return m
	case ObjectType:
		if f.Inner != nil {
			return dict{RefName: RefPrefix + f.Inner.SchemaName(true)}
		}
		m := dict{"type": ObjectType}
		if f.Elem != nil {
			m["additionalProperties"] = f.Elem.typeSchema()
		}
		return m
	case AnyType:
		return dict{}
	default:
		return dict{"type": f.DataType}
	}
}

// Metadata 数据模型的元信息
type Metadata struct {
	rType       reflect.Type `description:"结构体元数据"`
	description string       `description:"模型描述"`
	names       [2]string    `description:"结构体名称,包名.结构体名称"`
	fields      []*MetaField `description:"结构体字段"`
}

func (m *Metadata) ReflectType() reflect.Type { return m.rType }

// Name 获取结构体名称
func (m *Metadata) Name() string { return m.names[0] }

// String 结构体唯一标识：包名+结构体名称
func (m *Metadata) String() string { return m.names[1] }

// Fields 结构体字段
func (m *Metadata) Fields() []*MetaField { return m.fields }

// Field 按json名称查找字段
func (m *Metadata) Field(jsonName string) *MetaField {
	for _, f := range m.fields {
		if f.JsonName == jsonName {
			return f
		}
	}
	return nil
}

// SchemaName 获取结构体的名称,默认包含包名
func (m *Metadata) SchemaName(exclude ...bool) string {
	if len(exclude) > 0 && exclude[0] {
		return m.names[0]
	}
	return m.names[1]
}

// SchemaDesc 结构体文档注释
func (m *Metadata) SchemaDesc() string { return m.description }

// SchemaType 模型类型
func (m *Metadata) SchemaType() OpenApiDataType { return ObjectType }

// Schema 输出为OpenAPI文档模型,字典格式
//
//	{
//		"title": "MyTimeslot",
//		"type": "object"
//		"required": ["superframe_count"],
//		"properties": {
//			"superframe_count": {"title": "superframe_count", "type": "integer"},
//		},
//	}
func (m *Metadata) Schema() map[string]any {
	schema := dict{
		"title": m.SchemaName(true),
		"type":  ObjectType,
	}
	if m.description != "" {
		schema["description"] = m.description
	}

	required := make([]string, 0, len(m.fields))
	properties := make(map[string]any, len(m.fields))
	for _, field := range m.fields {
		properties[field.JsonName] = field.Schema()
		if field.Required {
			required = append(required, field.JsonName)
		}
	}
	schema["required"], schema["properties"] = required, properties

	return schema
}

// Dependencies 递归获取全部关联模型(包含自身), 按名称排序
func (m *Metadata) Dependencies() []*Metadata {
	seen := map[*Metadata]struct{}{}
	var walk func(md *Metadata)
	var walkField func(f *MetaField)
	walkField = func(f *MetaField) {
		if f == nil {
			return
		}
		if f.Inner != nil {
			walk(f.Inner)
		}
		walkField(f.Elem)
	}
	walk = func(md *Metadata) {
		if _, ok := seen[md]; ok {
			return
		}
		seen[md] = struct{}{}
		for _, f := range md.fields {
			walkField(f)
		}
	}
	walk(m)

	deps := make([]*Metadata, 0, len(seen))
	for md := range seen {
		deps = append(deps, md)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })
	return deps
}

// StructReflect 反射结构体的元信息, 非结构体返回nil, 结果被缓存
func StructReflect(rt reflect.Type) *Metadata {
	if rt == nil {
		return nil
	}
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil
	}

	metaCache.mu.Lock()
	defer metaCache.mu.Unlock()

	return metaCache.reflect(rt)
}

// SetModelName 为结构体(通常是动态创建的匿名结构体)设置模型名称, 需在 StructReflect 之前调用
func SetModelName(rt reflect.Type, name string) {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	metaCache.mu.Lock()
	defer metaCache.mu.Unlock()

	metaCache.names[rt] = name
	delete(metaCache.data, rt)
}

// ModelName 获取结构体的模型名称
func ModelName(rt reflect.Type) string {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	metaCache.mu.Lock()
	defer metaCache.mu.Unlock()

	return metaCache.nameOf(rt)[0]
}

// MetaCache Metadata 缓存
type MetaCache struct {
	mu    sync.Mutex
	data  map[reflect.Type]*Metadata
	names map[reflect.Type]string
}

func (c *MetaCache) nameOf(rt reflect.Type) [2]string {
	if name, ok := c.names[rt]; ok {
		return [2]string{name, name}
	}
	if rt.Name() == "" {
		return [2]string{"Model", "Model"}
	}
	return [2]string{rt.Name(), rt.String()}
}

// 调用方需持有锁, 先写入缓存再解析字段以支持自引用结构体
func (c *MetaCache) reflect(rt reflect.Type) *Metadata {
	if md, ok := c.data[rt]; ok {
		return md
	}

	meta := &Metadata{rType: rt, names: c.nameOf(rt), fields: make([]*MetaField, 0)}
	if d, ok := reflect.New(rt).Interface().(Describer); ok {
		meta.description = d.SchemaDesc()
	}
	c.data[rt] = meta

	c.extractFields(meta, rt)
	return meta
}

// 提取结构体字段信息, 嵌入的结构体字段被展开
func (c *MetaCache) extractFields(meta *Metadata, rt reflect.Type) {
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		if field.Anonymous && jsonTag == "" {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				c.extractFields(meta, ft)
				continue
			}
		}

		mf := c.typeToField(field.Type)
		mf.Name = field.Name
		mf.JsonName = utils.QueryJsonName(field.Tag, field.Name)
		mf.Index = i
		mf.Tag = field.Tag
		mf.Description = utils.QueryFieldTag(field.Tag, descriptionTag, "")
		mf.Required = IsFieldRequired(field.Tag)
		mf.Optional = mf.Optional || IsFieldOmitempty(field.Tag)
		mf.Default, mf.HasDefault = GetDefaultV(field.Tag, mf.DataType)

		meta.fields = append(meta.fields, mf)
	}
}

// 将字段类型转换为元信息, 指针类型标记为可选
func (c *MetaCache) typeToField(ft reflect.Type) *MetaField {
	mf := &MetaField{RType: ft}
	for ft.Kind() == reflect.Ptr {
		mf.Optional = true
		ft = ft.Elem()
	}
	mf.DataType = ReflectKindToOType(ft.Kind())

	switch ft.Kind() {
	case reflect.Interface:
		mf.Optional = true
	case reflect.Slice, reflect.Array:
		if ft.Elem().Kind() == reflect.Uint8 { // []byte 按base64字符串处理
			mf.DataType = StringType
			break
		}
		mf.Elem = c.typeToField(ft.Elem())
	case reflect.Map:
		mf.Elem = c.typeToField(ft.Elem())
	case reflect.Struct:
		mf.Inner = c.reflect(ft)
	}

	return mf
}
