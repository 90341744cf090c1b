package typesafe

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// Field 类属性定义
type Field struct {
	Name        string `json:"name" description:"属性名"`
	Kind        Kind   `json:"kind" description:"值类型"`
	Elem        *Field `json:"elem,omitempty" description:"子元素类型, 仅 List 和 Dict 有效, nil 表示 Any"`
	Class       *Class `json:"-" description:"关联类, 仅 Object 有效"`
	Optional    bool   `json:"optional" description:"是否允许为 nil"`
	Default     any    `json:"default,omitempty" description:"默认值"`
	HasDefault  bool   `json:"has_default"`
	Description string `json:"description,omitempty"`
}

func newField(name string, kind Kind) *Field { return &Field{Name: name, Kind: kind} }

func StringField(name string) *Field { return newField(name, String) }
func IntField(name string) *Field    { return newField(name, Int) }
func FloatField(name string) *Field  { return newField(name, Float) }
func BoolField(name string) *Field   { return newField(name, Bool) }
func AnyField(name string) *Field    { return newField(name, Any) }

// ListField 列表属性, elem 为 nil 时元素类型为 Any
func ListField(name string, elem *Field) *Field {
	f := newField(name, List)
	f.Elem = elem
	return f
}

// DictField 字典属性, 键始终为字符串
func DictField(name string, elem *Field) *Field {
	f := newField(name, Dict)
	f.Elem = elem
	return f
}

// ObjectField 嵌套类属性
func ObjectField(name string, class *Class) *Field {
	f := newField(name, ObjectKind)
	f.Class = class
	return f
}

// Opt 标记为可选属性
func (f *Field) Opt() *Field {
	f.Optional = true
	return f
}

// WithDefault 设置默认值
func (f *Field) WithDefault(v any) *Field {
	f.Default, f.HasDefault = v, true
	return f
}

// Describe 设置属性说明
func (f *Field) Describe(desc string) *Field {
	f.Description = desc
	return f
}

// TypeName 类型的可读名称, 如 list[str], dict[str, User]
func (f *Field) TypeName() string {
	if f == nil {
		return Any.String()
	}
	switch f.Kind {
	case List:
		return "list[" + f.Elem.TypeName() + "]"
	case Dict:
		return "dict[str, " + f.Elem.TypeName() + "]"
	case ObjectKind:
		if f.Class != nil {
			return f.Class.Name
		}
	}
	return f.Kind.String()
}

// Class 类型安全的类定义
type Class struct {
	Name   string   `json:"name"`
	Fields []*Field `json:"fields"`
	index  map[string]int
}

// NewClass 创建类定义, 属性名不可重复
func NewClass(name string, fields ...*Field) *Class {
	c := &Class{Name: name}
	c.Add(fields...)
	return c
}

// Add 添加属性, 同名属性被替换
func (c *Class) Add(fields ...*Field) *Class {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	for _, f := range fields {
		if i, ok := c.index[f.Name]; ok {
			c.Fields[i] = f
			continue
		}
		c.index[f.Name] = len(c.Fields)
		c.Fields = append(c.Fields, f)
	}
	return c
}

// Field 按名称查找属性
func (c *Class) Field(name string) *Field {
	if c.index == nil {
		c.Add()
	}
	if i, ok := c.index[name]; ok {
		return c.Fields[i]
	}
	return nil
}

// New 创建实例, 缺失的属性依次采用默认值, 零值(可选属性为nil)
func (c *Class) New(values map[string]any) (*Object, error) {
	return c.build(values, nil)
}

// parents 为正在以零值构造的外层类, 用于发现无法终止的自引用
func (c *Class) build(values map[string]any, parents []*Class) (*Object, error) {
	obj := &Object{class: c, values: make(map[string]any, len(c.Fields))}
	parents = append(parents, c)

	for _, name := range utils.SortedKeys(values) {
		if c.Field(name) == nil {
			return nil, &TypeError{Class: c.Name, Field: name}
		}
	}

	for _, f := range c.Fields {
		v, ok := values[f.Name]
		if !ok {
			dv, err := c.defaultValue(f, parents)
			if err != nil {
				return nil, err
			}
			obj.values[f.Name] = dv
			continue
		}
		cv, err := c.coerce(f, v)
		if err != nil {
			return nil, err
		}
		obj.values[f.Name] = cv
	}
	return obj, nil
}

// Zero 创建全部属性为默认值的实例
func (c *Class) Zero() *Object {
	obj, err := c.New(nil)
	if err != nil {
		return &Object{class: c, values: make(map[string]any)}
	}
	return obj
}

// Decode 从json字节流创建实例
func (c *Class) Decode(data []byte) (*Object, error) {
	values := make(map[string]any)
	if err := utils.JsonUnmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("typesafe: decode %s: %w", c.Name, err)
	}
	return c.New(values)
}

// FieldNames 全部属性名, 按定义顺序
func (c *Class) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

func (c *Class) defaultValue(f *Field, parents []*Class) (any, error) {
	if f.HasDefault {
		return c.coerce(f, f.Default)
	}
	if f.Optional {
		return nil, nil
	}
	if f.Kind == ObjectKind && f.Class != nil {
		// 必须的自引用属性没有有限的零值
		if slices.Contains(parents, f.Class) {
			return nil, &TypeError{Class: c.Name, Field: f.Name, Want: f.TypeName(), Got: typeName(nil)}
		}
		return f.Class.build(nil, parents)
	}
	return zeroOf(f), nil
}

func zeroOf(f *Field) any {
	switch f.Kind {
	case String:
		return ""
	case Int:
		return int64(0)
	case Float:
		return float64(0)
	case Bool:
		return false
	case List:
		return []any{}
	case Dict:
		return map[string]any{}
	}
	return nil
}

var errMismatch = errors.New("type mismatch")

func (c *Class) coerce(f *Field, v any) (any, error) {
	out, err := coerceValue(f, v)
	if err != nil {
		var te *TypeError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TypeError{Class: c.Name, Field: f.Name, Want: f.TypeName(), Got: typeName(v)}
	}
	return out, nil
}

// 按属性定义转换并检查值, 嵌套的字典被转换为实例, 任意切片被转换为 []any
func coerceValue(f *Field, v any) (any, error) {
	if f == nil || f.Kind == Any {
		return v, nil
	}
	if v == nil {
		if f.Optional {
			return nil, nil
		}
		return nil, errMismatch
	}

	rv := reflect.ValueOf(v)
	switch f.Kind {
	case String:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case Bool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case Int:
		switch {
		case rv.CanInt():
			return rv.Int(), nil
		case rv.CanUint():
			if rv.Uint() <= math.MaxInt64 {
				return int64(rv.Uint()), nil
			}
		case rv.CanFloat():
			fv := rv.Float()
			// float64(math.MaxInt64) 等于 2^63, 已超出 int64 范围
			if fv == math.Trunc(fv) && fv >= math.MinInt64 && fv < math.MaxInt64 {
				return int64(fv), nil
			}
		}
	case Float:
		switch {
		case rv.CanFloat():
			return rv.Float(), nil
		case rv.CanInt():
			return float64(rv.Int()), nil
		case rv.CanUint():
			return float64(rv.Uint()), nil
		}
	case List:
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if rv.Kind() == reflect.Slice && rv.IsNil() && f.Optional {
				return nil, nil
			}
			out := make([]any, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				item, err := coerceValue(elemOf(f), rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out[i] = item
			}
			return out, nil
		}
	case Dict:
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				item, err := coerceValue(elemOf(f), iter.Value().Interface())
				if err != nil {
					return nil, err
				}
				out[iter.Key().String()] = item
			}
			return out, nil
		}
	case ObjectKind:
		switch o := v.(type) {
		case *Object:
			if o == nil {
				return nil, utils.Ternary(f.Optional, nil, errMismatch)
			}
			if f.Class == nil || o.class == f.Class || o.class.Name == f.Class.Name {
				return o, nil
			}
		case map[string]any:
			if f.Class != nil {
				return f.Class.New(o)
			}
		}
	}
	return nil, errMismatch
}

func elemOf(f *Field) *Field { return f.Elem }

func typeName(v any) string {
	switch o := v.(type) {
	case nil:
		return "None"
	case *Object:
		return o.class.Name
	case string:
		return String.String()
	case bool:
		return Bool.String()
	case map[string]any:
		return Dict.String()
	case []any:
		return List.String()
	}
	return reflect.TypeOf(v).String()
}

// Registry 按名称登记的类集合
type Registry struct {
	classes map[string]*Class
}

func NewRegistry() *Registry { return &Registry{classes: make(map[string]*Class)} }

// Register 登记类及其全部嵌套类
func (r *Registry) Register(c *Class) {
	if c == nil {
		return
	}
	if _, ok := r.classes[c.Name]; ok {
		return
	}
	r.classes[c.Name] = c
	for _, f := range c.Fields {
		for e := f; e != nil; e = e.Elem {
			r.Register(e.Class)
		}
	}
}

func (r *Registry) Get(name string) *Class { return r.classes[name] }

// Classes 全部类, 按名称排序
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.classes))
	for _, name := range utils.SortedKeys(r.classes) {
		out = append(out, r.classes[name])
	}
	return out
}
