package meta

import (
	"fmt"
	"reflect"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// ParamIn 参数位置
type ParamIn string

const (
	InPath   ParamIn = "path"
	InQuery  ParamIn = "query"
	InHeader ParamIn = "header"
	InBody   ParamIn = "body"
)

// BodyFieldName 作为请求体的结构体字段名
const BodyFieldName = "Body"

var objectType = reflect.TypeOf((*typesafe.Object)(nil))

// Param 路由入参
type Param struct {
	Name        string                   `json:"name" description:"参数名"`
	In          ParamIn                  `json:"in" description:"参数位置"`
	Index       []int                    `json:"-" description:"在入参结构体中的字段序号, 为空表示整个结构体"`
	Type        reflect.Type             `json:"-" description:"参数类型"`
	DataType    godantic.OpenApiDataType `json:"type"`
	Required    bool                     `json:"required" description:"是否必须"`
	HasDefault  bool                     `json:"has_default"`
	Default     any                      `json:"default,omitempty" description:"默认值"`
	Description string                   `json:"description,omitempty"`
	Validate    string                   `json:"-" description:"validate 标签"`
}

// IsWhole 参数是否为整个入参结构体
func (p *Param) IsWhole() bool { return len(p.Index) == 0 }

// ScanInput 解析路由入参结构体
//
// 字段按标签确定参数位置:
//
//	path:"id"		路径参数, 总是必须的
//	query:"page"	查询参数
//	header:"x-token"	请求头参数
//	body:"-" 或字段名为 Body	请求体
//
// 若结构体没有任何带有位置标签的字段, 也没有 Body 字段, 则整个结构体作为请求体.
// 其余未标记的字段被忽略.
//
//	@param	rt	reflect.Type	结构体或结构体指针; *typesafe.Object 视为请求体
func ScanInput(rt reflect.Type) ([]*Param, error) {
	if rt == nil {
		return nil, nil
	}
	if rt == objectType {
		return []*Param{{Name: "body", In: InBody, Type: rt, DataType: godantic.ObjectType, Required: true}}, nil
	}

	st := rt
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input '%s' must be a struct or a struct pointer", rt.String())
	}

	params := make([]*Param, 0, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() {
			continue
		}
		p := fieldParam(field)
		if p == nil {
			continue
		}
		p.Index = field.Index
		params = append(params, p)
	}

	bodies := 0
	for _, p := range params {
		if p.In == InBody {
			bodies++
		}
	}
	if bodies > 1 {
		return nil, fmt.Errorf("input '%s' declares %d request bodies", rt.String(), bodies)
	}

	if len(params) == 0 {
		return []*Param{{
			Name:        "body",
			In:          InBody,
			Type:        rt,
			DataType:    godantic.ObjectType,
			Required:    true,
			Description: godantic.StructReflect(st).SchemaDesc(),
		}}, nil
	}

	return params, nil
}

func fieldParam(field reflect.StructField) *Param {
	var p *Param
	for _, in := range []ParamIn{InPath, InQuery, InHeader} {
		if name := field.Tag.Get(string(in)); name != "" && name != "-" {
			p = &Param{Name: name, In: in}
			break
		}
	}
	if p == nil {
		_, tagged := field.Tag.Lookup(string(InBody))
		if !tagged && field.Name != BodyFieldName {
			return nil
		}
		p = &Param{Name: "body", In: InBody}
	}

	ft := field.Type
	p.Type = ft
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}
	p.DataType = godantic.ReflectKindToOType(ft.Kind())
	if ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Uint8 {
		p.DataType = godantic.StringType
	}
	p.Validate = field.Tag.Get("validate")
	p.Description = utils.QueryFieldTag(field.Tag, "description", "")
	p.Default, p.HasDefault = godantic.GetDefaultV(field.Tag, p.DataType)

	switch p.In {
	case InPath:
		p.Required = true
	case InBody:
		p.Required = field.Type.Kind() != reflect.Ptr || godantic.IsFieldRequired(field.Tag)
	default:
		p.Required = godantic.IsFieldRequired(field.Tag) && !p.HasDefault
	}

	return p
}
