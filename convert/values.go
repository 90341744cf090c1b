package convert

import (
	"fmt"
	"math"
	"reflect"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// ObjectToValue 将实例转换为给定结构体类型的值, rt 为指针类型时返回指针
func ObjectToValue(obj *typesafe.Object, rt reflect.Type) (reflect.Value, error) {
	if obj == nil {
		return reflect.Zero(rt), nil
	}
	out := reflect.New(rt).Elem()
	if err := assign(out, obj, obj.Class().Name); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

// ObjectTo 将实例转换为 T 类型的结构体
func ObjectTo[T any](obj *typesafe.Object) (T, error) {
	var zero T
	rv, err := ObjectToValue(obj, reflect.TypeOf(zero))
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

// ValueToObject 将结构体(或结构体指针)转换为实例; class 为 nil 时由结构体类型推导
func ValueToObject(v any, class *typesafe.Class) (*typesafe.Object, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrUnsupportedType)
	}
	if class == nil {
		var err error
		if class, err = RecordToTypeSafe(reflect.TypeOf(v)); err != nil {
			return nil, err
		}
	}
	m, ok := ToPlain(reflect.ValueOf(v)).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a struct", ErrUnsupportedType, v)
	}
	return class.New(m)
}

// ToPlain 将任意值转换为由 map[string]any, []any 及标量组成的普通值, 结构体属性采用json名称
func ToPlain(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	if obj, ok := asObject(rv); ok {
		return obj.Map()
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return ToPlain(rv.Elem())
	case reflect.Struct:
		m := make(map[string]any, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := utils.QueryJsonName(sf.Tag, sf.Name)
			if name == "-" {
				continue
			}
			fv := rv.Field(i)
			switch fv.Kind() {
			case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
				if fv.IsNil() {
					continue // 缺失的属性由类补全
				}
			}
			m[name] = ToPlain(fv)
		}
		return m
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = ToPlain(rv.Index(i))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = ToPlain(iter.Value())
		}
		return out
	}
	return rv.Interface()
}

func asObject(rv reflect.Value) (*typesafe.Object, bool) {
	if rv.Kind() != reflect.Ptr || rv.IsNil() || !rv.CanInterface() {
		return nil, false
	}
	obj, ok := rv.Interface().(*typesafe.Object)
	return obj, ok
}

// 将普通值或实例写入目标值, loc 用于错误定位
func assign(dst reflect.Value, v any, loc string) error {
	if obj, ok := v.(*typesafe.Object); ok {
		if obj == nil {
			return nil
		}
		if dst.Kind() == reflect.Interface {
			dst.Set(reflect.ValueOf(obj.Map()))
			return nil
		}
		v = objectValues(obj)
	}
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	switch dst.Kind() {
	case reflect.Ptr:
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), v, loc); err != nil {
			return err
		}
		dst.Set(elem)
		return nil

	case reflect.Interface:
		dst.Set(reflect.ValueOf(v))
		return nil

	case reflect.Struct:
		m, ok := v.(map[string]any)
		if !ok {
			return mismatch(loc, dst.Type(), v)
		}
		rt := dst.Type()
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := utils.QueryJsonName(sf.Tag, sf.Name)
			fv, ok := m[name]
			if !ok {
				continue
			}
			if err := assign(dst.Field(i), fv, loc+"."+name); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			if s, isStr := v.(string); isStr && dst.Type().Elem().Kind() == reflect.Uint8 {
				dst.SetBytes([]byte(s))
				return nil
			}
			return mismatch(loc, dst.Type(), v)
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := assign(out.Index(i), item, fmt.Sprintf("%s[%d]", loc, i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil

	case reflect.Map:
		items, ok := v.(map[string]any)
		if !ok || dst.Type().Key().Kind() != reflect.String {
			return mismatch(loc, dst.Type(), v)
		}
		out := reflect.MakeMapWithSize(dst.Type(), len(items))
		for k, item := range items {
			ev := reflect.New(dst.Type().Elem()).Elem()
			if err := assign(ev, item, loc+"."+k); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), ev)
		}
		dst.Set(out)
		return nil
	}

	sv := reflect.ValueOf(v)
	switch {
	case dst.CanInt() && sv.CanInt():
		if dst.OverflowInt(sv.Int()) {
			return overflow(loc, dst.Type(), v)
		}
		dst.SetInt(sv.Int())
	case dst.CanInt() && sv.CanUint():
		if sv.Uint() > math.MaxInt64 || dst.OverflowInt(int64(sv.Uint())) {
			return overflow(loc, dst.Type(), v)
		}
		dst.SetInt(int64(sv.Uint()))
	case dst.CanInt() && sv.CanFloat():
		f := sv.Float()
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 || dst.OverflowInt(int64(f)) {
			return overflow(loc, dst.Type(), v)
		}
		dst.SetInt(int64(f))
	case dst.CanUint() && sv.CanInt():
		if sv.Int() < 0 || dst.OverflowUint(uint64(sv.Int())) {
			return overflow(loc, dst.Type(), v)
		}
		dst.SetUint(uint64(sv.Int()))
	case dst.CanUint() && sv.CanUint():
		if dst.OverflowUint(sv.Uint()) {
			return overflow(loc, dst.Type(), v)
		}
		dst.SetUint(sv.Uint())
	case dst.CanFloat() && sv.CanFloat():
		if dst.OverflowFloat(sv.Float()) {
			return overflow(loc, dst.Type(), v)
		}
		dst.SetFloat(sv.Float())
	case dst.CanFloat() && sv.CanInt():
		dst.SetFloat(float64(sv.Int()))
	case dst.Kind() == reflect.String && sv.Kind() == reflect.String:
		dst.SetString(sv.String())
	case dst.Kind() == reflect.Bool && sv.Kind() == reflect.Bool:
		dst.SetBool(sv.Bool())
	default:
		return mismatch(loc, dst.Type(), v)
	}
	return nil
}

// 实例的浅层属性, 嵌套实例保持不变并在 assign 中递归处理
func objectValues(obj *typesafe.Object) map[string]any {
	m := make(map[string]any, len(obj.Class().Fields))
	for _, name := range obj.Class().FieldNames() {
		m[name] = obj.MustGet(name)
	}
	return m
}

func mismatch(loc string, want reflect.Type, got any) error {
	return fmt.Errorf("convert: %s: cannot assign %T to %s", loc, got, want)
}

func overflow(loc string, want reflect.Type, got any) error {
	return fmt.Errorf("convert: %s: %v overflows %s", loc, got, want)
}
