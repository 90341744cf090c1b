package godantic

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// Validator 标签和 Openapi 标签的对应关系, 仅列出可在文档中表达的标签
var validatorLabelToOpenapiLabel = map[string]map[OpenApiDataType]string{
	"gt":               {IntegerType: "exclusiveMinimum", NumberType: "exclusiveMinimum"},
	"gte":              {IntegerType: "minimum", NumberType: "minimum"},
	"lt":               {IntegerType: "exclusiveMaximum", NumberType: "exclusiveMaximum"},
	"lte":              {IntegerType: "maximum", NumberType: "maximum"},
	"min":              {IntegerType: "minimum", NumberType: "minimum", StringType: "minLength", ArrayType: "minItems"},
	"max":              {IntegerType: "maximum", NumberType: "maximum", StringType: "maxLength", ArrayType: "maxItems"},
	"len":              {StringType: "length", ArrayType: "length"},
	validatorEnumLabel: {IntegerType: "enum", NumberType: "enum", StringType: "enum"},
	"email":            {StringType: "format"},
	"url":              {StringType: "format"},
	"uri":              {StringType: "format"},
	"uuid":             {StringType: "format"},
	"ipv4":             {StringType: "format"},
	"ipv6":             {StringType: "format"},
}

// ReflectKindToOType 转换reflect.Kind为swagger类型说明
//
//	@param	ReflectKind	reflect.Kind	反射类型
func ReflectKindToOType(kind reflect.Kind) (name OpenApiDataType) {
	switch kind {

	case reflect.Array, reflect.Slice:
		name = ArrayType
	case reflect.String:
		name = StringType
	case reflect.Bool:
		name = BoolType
	case reflect.Interface:
		name = AnyType
	default:
		if reflect.Bool < kind && kind <= reflect.Uint64 {
			name = IntegerType
		} else if reflect.Float32 <= kind && kind <= reflect.Complex128 {
			name = NumberType
		} else {
			name = ObjectType
		}
	}

	return
}

// ParseValidateTag 解析validate标签, 只保留第一个 dive 之前的部分
//
//	validate:"required,min=1,oneof=a b"	=> {"required": "", "min": "1", "oneof": "a b"}
func ParseValidateTag(tag reflect.StructTag) map[string]string {
	labels := make(map[string]string)
	for _, name := range []string{defaultTagName, bindingTagName} {
		for _, label := range strings.Split(tag.Get(name), tagSeparator) {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			if label == "dive" {
				break
			}
			k, v, _ := strings.Cut(label, tagKeySeparator)
			labels[k] = v
		}
	}
	return labels
}

// IsFieldRequired 从tag中判断此字段是否是必须的
func IsFieldRequired(tag reflect.StructTag) bool {
	_, ok := ParseValidateTag(tag)[requiredTag]
	return ok
}

// IsFieldOmitempty 字段的json标签是否包含omitempty
func IsFieldOmitempty(tag reflect.StructTag) bool {
	spans := strings.Split(tag.Get("json"), tagSeparator)
	return len(spans) > 1 && utils.Has(spans[1:], omitemptyTag)
}

// GetDefaultV 从Tag中提取字段默认值, 数组和对象的默认值以JSON形式书写
//
//	@return	v any 默认值
//	@return	ok bool 是否定义了默认值
func GetDefaultV(tag reflect.StructTag, otype OpenApiDataType) (v any, ok bool) {
	defaultV, ok := tag.Lookup(defaultValueTag)
	if !ok {
		return nil, false
	}

	var err error
	switch otype {
	case StringType:
		v = defaultV
	case IntegerType:
		v, err = strconv.ParseInt(defaultV, 10, 64)
	case NumberType:
		v, err = strconv.ParseFloat(defaultV, 64)
	case BoolType:
		v, err = strconv.ParseBool(defaultV)
	default:
		err = utils.JsonUnmarshal([]byte(defaultV), &v)
	}
	if err != nil {
		return defaultV, true
	}
	return v, true
}

// 将validate标签转换为openapi约束
func constraintsOf(tag reflect.StructTag, otype OpenApiDataType) map[string]any {
	m := make(map[string]any)
	for label, value := range ParseValidateTag(tag) {
		keys, ok := validatorLabelToOpenapiLabel[label]
		if !ok {
			continue
		}
		key, ok := keys[otype]
		if !ok {
			continue
		}
		if key == "format" {
			m[key] = label
			continue
		}
		if key == "length" {
			m[utils.Ternary(otype == StringType, "minLength", "minItems")] = toNumber(value, otype)
			m[utils.Ternary(otype == StringType, "maxLength", "maxItems")] = toNumber(value, otype)
			continue
		}
		if label == validatorEnumLabel {
			enum := make([]any, 0)
			for _, s := range strings.Fields(value) {
				enum = append(enum, utils.Ternary[any](otype == StringType, s, toNumber(s, otype)))
			}
			m[key] = enum
			continue
		}
		m[key] = toNumber(value, otype)
	}
	return m
}

func toNumber(s string, otype OpenApiDataType) any {
	switch otype {
	case IntegerType, ArrayType:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case NumberType:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case StringType:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	return s
}
