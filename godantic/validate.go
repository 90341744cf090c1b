package godantic

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误位置采用json名称
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := utils.QueryJsonName(fld.Tag, fld.Name)
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator 获取全局校验器, 可用于注册自定义校验规则
func Validator() *validator.Validate { return defaultValidator }

// Validate 检验实例是否符合tag要求, 校验通过返回nil
//
//	@param	stc	any	结构体或结构体指针
//	@return	[]*ValidationError 校验错误, Loc 为字段的json路径
func Validate(stc any) []*ValidationError {
	err := defaultValidator.Struct(stc)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []*ValidationError{{
			Loc:  []string{},
			Msg:  err.Error(),
			Type: "type_error",
		}}
	}

	errs := make([]*ValidationError, 0, len(ves))
	for _, fe := range ves {
		errs = append(errs, fieldErrorToValidationError(fe))
	}
	return errs
}

// ValidateVar 校验单个变量
//
//	@param	name	string	变量名, 作为错误位置
//	@param	value	any		变量值
//	@param	tag		string	校验规则, 如 "required,min=1"
func ValidateVar(name string, value any, tag string) *ValidationError {
	err := defaultValidator.Var(value, tag)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := fieldErrorToValidationError(ves[0])
		ve.Loc = []string{name}
		return ve
	}
	return &ValidationError{Loc: []string{name}, Msg: err.Error(), Type: "type_error"}
}

// ParseRaw 从原始字节流中解析结构体对象并校验
//
//	@param	data	[]byte	json 字节流
//	@param	stc		any		结构体指针
func ParseRaw(data []byte, stc any) []*ValidationError {
	if err := utils.JsonUnmarshal(data, stc); err != nil {
		return []*ValidationError{{
			Loc:  []string{},
			Msg:  err.Error(),
			Type: "value_error.jsondecode",
		}}
	}
	return Validate(stc)
}

func fieldErrorToValidationError(fe validator.FieldError) *ValidationError {
	// Namespace 形如 User.address.city, 去除根结构体名称
	spans := strings.Split(fe.Namespace(), ".")
	if len(spans) > 1 {
		spans = spans[1:]
	}

	ve := &ValidationError{
		Loc:  spans,
		Type: "value_error." + fe.Tag(),
		Msg:  validationMessage(fe),
	}
	if fe.Param() != "" {
		ve.Ctx = map[string]any{"limit_value": fe.Param()}
	}
	if fe.Tag() == requiredTag {
		ve.Type = "value_error.missing"
	}
	return ve
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case requiredTag:
		return "field required"
	case "min", "gte":
		return fmt.Sprintf("ensure this value is greater than or equal to %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("ensure this value is less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("ensure this value is greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("ensure this value is less than %s", fe.Param())
	case validatorEnumLabel:
		return fmt.Sprintf("value is not a valid enumeration member; permitted: %s", fe.Param())
	}
	if fe.Param() != "" {
		return fmt.Sprintf("value does not satisfy '%s=%s'", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("value does not satisfy '%s'", fe.Tag())
}
