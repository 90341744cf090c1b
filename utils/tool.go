package utils

import (
	"reflect"
	"runtime"
	"strings"
	"unicode"

	jsoniter "github.com/json-iterator/go"
)

var ( // 替换json标准库
	// DefaultJson 与标准库 100%兼容的配置
	DefaultJson   = jsoniter.ConfigCompatibleWithStandardLibrary
	JsonMarshal   = DefaultJson.Marshal
	JsonUnmarshal = DefaultJson.Unmarshal
)

// CombineStrings 合并字符串, 实现等同于strings.Join()，只是少了判断分隔符
func CombineStrings(elems ...string) string {
	switch len(elems) {
	case 0:
		return ""
	case 1:
		return elems[0]
	}
	n := 0
	for i := 0; i < len(elems); i++ {
		n += len(elems[i])
	}

	var b strings.Builder
	b.Grow(n)
	for _, s := range elems {
		b.WriteString(s)
	}
	return b.String()
}

// ReflectFuncName 反射获得函数名或方法名
//
//	pkg.(*Router).GetUser-fm	=> GetUser
//	pkg.user__user_id		=> user__user_id
//	pkg.Register.func1		=> func1
func ReflectFuncName(handler any) string {
	rv := reflect.ValueOf(handler)
	if rv.Kind() != reflect.Func {
		return ""
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return ""
	}
	funcName := fn.Name()
	if i := strings.LastIndex(funcName, "/"); i >= 0 {
		funcName = funcName[i+1:]
	}
	parts := strings.Split(funcName, ".")
	funcName = parts[len(parts)-1]

	return strings.TrimSuffix(funcName, "-fm")
}

// ReflectFuncSource 反射获得函数定义所在的源文件和行号
func ReflectFuncSource(handler any) (file string, line int) {
	rv := reflect.ValueOf(handler)
	if rv.Kind() != reflect.Func {
		return "", 0
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "", 0
	}
	return fn.FileLine(fn.Entry())
}

// QueryFieldTag 查找struct字段的Tag
//
//	@param	tag			reflect.StructTag	字段的Tag
//	@param	label		string				要查找的标签
//	@param	undefined	string				当查找的标签不存在时返回的默认值
//	@return	string 查找到的标签值, 不存在则返回提供的默认值
func QueryFieldTag(tag reflect.StructTag, label string, undefined string) string {
	if tag == "" {
		return undefined
	}
	if v := tag.Get(label); v != "" {
		return v
	}
	return undefined
}

// QueryJsonName 查询字段定义的json名称
func QueryJsonName(tag reflect.StructTag, undefined string) string {
	if tag == "" {
		return undefined
	}
	if v := tag.Get("json"); v != "" {
		name := strings.TrimSpace(strings.Split(v, ",")[0])
		if name != "" {
			return name
		}
	}
	return undefined
}

// SnakeCase 将大驼峰或小驼峰形式的名称转换为下划线形式, 已存在的下划线保持不变
//
//	FileId	=> file_id
//	FileID	=> file_id
//	userId	=> user_id
//	user_id	=> user_id
func SnakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && rs[i-1] != '_' {
				prevLower := unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if prevLower || (unicode.IsUpper(rs[i-1]) && nextLower) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CamelCase 将下划线形式的名称转换为大驼峰形式
//
//	file_id	=> FileId
func CamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, "")
}

// Ternary 三元运算符
func Ternary[T any](cond bool, ifTrue, ifFalse T) T {
	if cond {
		return ifTrue
	}
	return ifFalse
}
