package convert

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// Mode 结构体的表现形式
type Mode int

const (
	// ModeModel 校验模型: 标量属性均为指针, 必须属性带有 validate:"required"
	ModeModel Mode = iota
	// ModeRecord 普通结构体: 必须属性为值类型, 可选属性为指针
	ModeRecord
)

func (m Mode) String() string { return utils.Ternary(m == ModeModel, "model", "record") }

var ErrUnsupportedType = errors.New("convert: unsupported type")

var (
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
	stringType  = reflect.TypeOf("")
	int64Type   = reflect.TypeOf(int64(0))
	float64Type = reflect.TypeOf(float64(0))
	boolType    = reflect.TypeOf(false)

	classMarkType    = reflect.TypeOf(struct{}{})
	classMarkPkgPath = reflect.TypeOf((*cache)(nil)).Elem().PkgPath()
)

// 类与结构体类型的双向缓存, 同一个类总是转换为同一个类型, 反之亦然
type cache struct {
	mu      sync.Mutex
	types   [2]map[*typesafe.Class]reflect.Type
	classes [2]map[reflect.Type]*typesafe.Class
	seq     int // 不随 ResetCache 清零, 保证每个类的标记唯一
}

var defaultCache = newCache()

func newCache() *cache {
	return &cache{
		types:   [2]map[*typesafe.Class]reflect.Type{{}, {}},
		classes: [2]map[reflect.Type]*typesafe.Class{{}, {}},
	}
}

// ResetCache 清空转换缓存, 用于测试
func ResetCache() {
	defaultCache.mu.Lock()
	defer defaultCache.mu.Unlock()
	defaultCache.types = [2]map[*typesafe.Class]reflect.Type{{}, {}}
	defaultCache.classes = [2]map[reflect.Type]*typesafe.Class{{}, {}}
}

// TypeSafeToModel 将类转换为校验模型结构体类型
func TypeSafeToModel(class *typesafe.Class) (reflect.Type, error) {
	return classToType(class, ModeModel)
}

// TypeSafeToRecord 将类转换为普通结构体类型
func TypeSafeToRecord(class *typesafe.Class) (reflect.Type, error) {
	return classToType(class, ModeRecord)
}

// ModelToTypeSafe 从校验模型结构体类型创建类, 未标记 required 的属性为可选
func ModelToTypeSafe(rt reflect.Type) (*typesafe.Class, error) {
	return typeToClass(rt, ModeModel)
}

// RecordToTypeSafe 从普通结构体类型创建类, 指针或 omitempty 属性为可选
func RecordToTypeSafe(rt reflect.Type) (*typesafe.Class, error) {
	return typeToClass(rt, ModeRecord)
}

// RecordToModel 普通结构体类型转换为校验模型类型
func RecordToModel(rt reflect.Type) (reflect.Type, error) {
	class, err := RecordToTypeSafe(rt)
	if err != nil {
		return nil, err
	}
	return TypeSafeToModel(class)
}

// ModelToRecord 校验模型类型转换为普通结构体类型
func ModelToRecord(rt reflect.Type) (reflect.Type, error) {
	class, err := ModelToTypeSafe(rt)
	if err != nil {
		return nil, err
	}
	return TypeSafeToRecord(class)
}

func classToType(class *typesafe.Class, mode Mode) (reflect.Type, error) {
	if class == nil {
		return nil, fmt.Errorf("%w: nil class", ErrUnsupportedType)
	}
	defaultCache.mu.Lock()
	defer defaultCache.mu.Unlock()

	return defaultCache.classToType(class, mode, map[*typesafe.Class]bool{})
}

func typeToClass(rt reflect.Type, mode Mode) (*typesafe.Class, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrUnsupportedType, rt)
	}
	defaultCache.mu.Lock()
	defer defaultCache.mu.Unlock()

	return defaultCache.typeToClass(rt, mode)
}

// 调用方需持有锁; visiting 用于发现 reflect.StructOf 无法表达的自引用类
func (c *cache) classToType(class *typesafe.Class, mode Mode, visiting map[*typesafe.Class]bool) (reflect.Type, error) {
	if rt, ok := c.types[mode][class]; ok {
		return rt, nil
	}
	if visiting[class] {
		return nil, fmt.Errorf("%w: recursive class %s", ErrUnsupportedType, class.Name)
	}
	visiting[class] = true
	defer delete(visiting, class)

	// reflect.StructOf 对相同的属性列表返回同一个类型, 以不导出的标记属性区分不同的类
	c.seq++
	fields := make([]reflect.StructField, 0, len(class.Fields)+1)
	fields = append(fields, reflect.StructField{
		Name:    "_",
		PkgPath: classMarkPkgPath,
		Type:    classMarkType,
		Tag:     reflect.StructTag(`class:` + strconv.Quote(class.Name+"#"+strconv.Itoa(c.seq))),
	})
	for _, f := range class.Fields {
		goName := utils.CamelCase(f.Name)
		if !token.IsIdentifier(goName) || !token.IsExported(goName) {
			return nil, fmt.Errorf("%w: %s.%s is not a valid field name", ErrUnsupportedType, class.Name, f.Name)
		}
		ft, err := c.fieldType(f, mode, true, visiting)
		if err != nil {
			return nil, err
		}
		fields = append(fields, reflect.StructField{
			Name: goName,
			Type: ft,
			Tag:  fieldTag(f, mode),
		})
	}

	rt := reflect.StructOf(fields)
	c.types[mode][class] = rt
	c.classes[mode][rt] = class
	godantic.SetModelName(rt, class.Name)

	return rt, nil
}

// 属性类型; top 表示结构体的直接属性, 此时可选性体现为指针
func (c *cache) fieldType(f *typesafe.Field, mode Mode, top bool, visiting map[*typesafe.Class]bool) (reflect.Type, error) {
	if f == nil {
		return anyType, nil
	}
	pointer := top && (f.Optional || mode == ModeModel)

	var base reflect.Type
	switch f.Kind {
	case typesafe.Any:
		return anyType, nil
	case typesafe.String:
		base = stringType
	case typesafe.Int:
		base = int64Type
	case typesafe.Float:
		base = float64Type
	case typesafe.Bool:
		base = boolType
	case typesafe.List, typesafe.Dict:
		elem, err := c.fieldType(f.Elem, mode, false, visiting)
		if err != nil {
			return nil, err
		}
		if f.Kind == typesafe.List {
			return reflect.SliceOf(elem), nil
		}
		return reflect.MapOf(stringType, elem), nil
	case typesafe.ObjectKind:
		if f.Class == nil {
			return reflect.MapOf(stringType, anyType), nil
		}
		nested, err := c.classToType(f.Class, mode, visiting)
		if err != nil {
			return nil, err
		}
		// 嵌套实例在模型及列表中均以指针表示
		if pointer || !top || mode == ModeModel {
			return reflect.PointerTo(nested), nil
		}
		return nested, nil
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedType, f.Kind)
	}

	if pointer {
		return reflect.PointerTo(base), nil
	}
	return base, nil
}

func fieldTag(f *typesafe.Field, mode Mode) reflect.StructTag {
	var b strings.Builder
	b.WriteString(`json:"` + f.Name)
	if f.Optional {
		b.WriteString(",omitempty")
	}
	b.WriteString(`"`)
	if mode == ModeModel && !f.Optional && !f.HasDefault {
		b.WriteString(` validate:"required"`)
	}
	if f.HasDefault {
		b.WriteString(` default:` + strconv.Quote(defaultString(f.Default)))
	}
	if f.Description != "" {
		b.WriteString(` description:` + strconv.Quote(f.Description))
	}
	return reflect.StructTag(b.String())
}

func defaultString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Ptr:
		bytes, err := utils.JsonMarshal(v)
		if err == nil {
			return string(bytes)
		}
	}
	return fmt.Sprint(v)
}

// 调用方需持有锁, 先写入缓存再解析属性以支持自引用结构体
func (c *cache) typeToClass(rt reflect.Type, mode Mode) (*typesafe.Class, error) {
	if class, ok := c.classes[mode][rt]; ok {
		return class, nil
	}

	class := typesafe.NewClass(structName(rt))
	c.classes[mode][rt] = class

	md := godantic.StructReflect(rt)
	for _, mf := range md.Fields() {
		f, err := c.metaFieldToField(mf, mode)
		if err != nil {
			delete(c.classes[mode], rt)
			return nil, fmt.Errorf("%s.%s: %w", class.Name, mf.Name, err)
		}
		f.Name = mf.JsonName
		f.Description = mf.Description
		f.Default, f.HasDefault = mf.Default, mf.HasDefault
		omitempty := godantic.IsFieldOmitempty(mf.Tag)
		if mode == ModeModel {
			// 模型中标量均为指针, 可选性由 required 和默认值决定
			f.Optional = omitempty || (!mf.Required && !mf.HasDefault)
		} else {
			f.Optional = omitempty || mf.RType.Kind() == reflect.Ptr
		}
		class.Add(f)
	}

	return class, nil
}

func structName(rt reflect.Type) string {
	if rt.Name() != "" {
		return rt.Name()
	}
	return godantic.ModelName(rt)
}

func (c *cache) metaFieldToField(mf *godantic.MetaField, mode Mode) (*typesafe.Field, error) {
	rt := mf.RType
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}

	switch rt.Kind() {
	case reflect.Interface:
		return typesafe.AnyField(""), nil
	case reflect.String:
		return typesafe.StringField(""), nil
	case reflect.Bool:
		return typesafe.BoolField(""), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typesafe.IntField(""), nil
	case reflect.Float32, reflect.Float64:
		return typesafe.FloatField(""), nil
	case reflect.Slice, reflect.Array:
		if rt.Elem().Kind() == reflect.Uint8 {
			return typesafe.StringField(""), nil
		}
		elem, err := c.metaFieldToField(mf.Elem, mode)
		if err != nil {
			return nil, err
		}
		return typesafe.ListField("", elem), nil
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedType, rt.Key())
		}
		elem, err := c.metaFieldToField(mf.Elem, mode)
		if err != nil {
			return nil, err
		}
		return typesafe.DictField("", elem), nil
	case reflect.Struct:
		nested, err := c.typeToClass(rt, mode)
		if err != nil {
			return nil, err
		}
		return typesafe.ObjectField("", nested), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rt)
}
