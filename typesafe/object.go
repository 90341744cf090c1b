package typesafe

import (
	"fmt"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// Object 类型安全的类实例, 每一次赋值都会按属性定义检查类型
type Object struct {
	class  *Class
	values map[string]any
}

// Class 实例所属的类
func (o *Object) Class() *Class { return o.class }

// Get 获取属性值, 属性不存在时返回 *TypeError
func (o *Object) Get(name string) (any, error) {
	if o.class.Field(name) == nil {
		return nil, &TypeError{Class: o.class.Name, Field: name}
	}
	return o.values[name], nil
}

// MustGet 获取属性值, 属性不存在时 panic
func (o *Object) MustGet(name string) any {
	v, err := o.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set 设置属性值, 嵌套的 map[string]any 被转换为对应类的实例
func (o *Object) Set(name string, value any) error {
	f := o.class.Field(name)
	if f == nil {
		return &TypeError{Class: o.class.Name, Field: name}
	}
	v, err := o.class.coerce(f, value)
	if err != nil {
		return err
	}
	o.values[name] = v
	return nil
}

// Map 转换为普通字典, 嵌套实例被递归转换
func (o *Object) Map() map[string]any {
	if o == nil {
		return nil
	}
	m := make(map[string]any, len(o.values))
	for k, v := range o.values {
		m[k] = plain(v)
	}
	return m
}

func plain(v any) any {
	switch x := v.(type) {
	case *Object:
		if x == nil {
			return nil
		}
		return x.Map()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = plain(item)
		}
		return out
	}
	return v
}

func (o *Object) MarshalJSON() ([]byte, error) {
	return utils.JsonMarshal(o.Map())
}

// UnmarshalJSON 实例需已关联类, 如通过 Class.Zero 创建
func (o *Object) UnmarshalJSON(data []byte) error {
	if o.class == nil {
		return fmt.Errorf("typesafe: unmarshal into an object without class")
	}
	obj, err := o.class.Decode(data)
	if err != nil {
		return err
	}
	o.values = obj.values
	return nil
}

func (o *Object) String() string {
	bytes, err := o.MarshalJSON()
	if err != nil {
		return o.class.Name + "{}"
	}
	return o.class.Name + string(bytes)
}
