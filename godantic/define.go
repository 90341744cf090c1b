package godantic

import (
	"strings"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// ValidationError 参数校验错误
type ValidationError struct {
	Ctx  map[string]any `json:"ctx,omitempty" description:"Context"`
	Msg  string         `json:"msg" description:"Message" validate:"required"`
	Type string         `json:"type" description:"Error Type" validate:"required"`
	Loc  []string       `json:"loc" description:"Location" validate:"required"`
}

func (v *ValidationError) SchemaDesc() string { return "参数校验错误" }

func (v *ValidationError) Schema() map[string]any {
	return dict{
		"title": ValidationErrorName,
		"type":  ObjectType,
		"properties": dict{
			"loc": dict{
				"title": "Location",
				"type":  "array",
				"items": dict{"anyOf": []map[string]string{{"type": "string"}, {"type": "integer"}}},
			},
			"msg":  dict{"title": "Message", "type": "string"},
			"type": dict{"title": "Error Type", "type": "string"},
		},
		"required": []string{"loc", "msg", "type"},
	}
}

func (v *ValidationError) Error() string {
	return strings.Join(v.Loc, ".") + ": " + v.Msg
}

// HTTPValidationError 请求参数校验错误, 响应状态码为 422
type HTTPValidationError struct {
	Detail []*ValidationError `json:"detail" description:"Detail" validate:"required"`
}

func (v *HTTPValidationError) SchemaDesc() string { return "路由参数校验错误" }

func (v *HTTPValidationError) Schema() map[string]any {
	return dict{
		"title":    HttpValidationErrorName,
		"type":     ObjectType,
		"required": []string{"detail"},
		"properties": dict{
			"detail": dict{
				"title": "Detail",
				"type":  "array",
				"items": dict{RefName: RefPrefix + ValidationErrorName},
			},
		},
	}
}

func (v *HTTPValidationError) Error() string {
	if len(v.Detail) > 0 {
		return v.Detail[0].Error()
	}
	return HttpValidationErrorName
}

func (v *HTTPValidationError) String() string {
	bytes, err := utils.JsonMarshal(v)
	if err != nil {
		return v.Error()
	}
	return string(bytes)
}

// NewHTTPValidationError 合并多个校验错误, 为空时返回nil
func NewHTTPValidationError(errs ...*ValidationError) *HTTPValidationError {
	if len(errs) == 0 {
		return nil
	}
	return &HTTPValidationError{Detail: errs}
}

// WithLoc 为全部错误的 Loc 添加前缀, 如 "body", "query"
func WithLoc(errs []*ValidationError, prefix ...string) []*ValidationError {
	for _, e := range errs {
		loc := make([]string, 0, len(prefix)+len(e.Loc))
		loc = append(loc, prefix...)
		e.Loc = append(loc, e.Loc...)
	}
	return errs
}
