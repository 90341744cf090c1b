package fastapi

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/schema"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/convert"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// 每个参数位置一个解码器, 字段名取自对应的标签
var decoders = map[meta.ParamIn]*schema.Decoder{
	meta.InPath:   newDecoder(meta.InPath),
	meta.InQuery:  newDecoder(meta.InQuery),
	meta.InHeader: newDecoder(meta.InHeader),
}

func newDecoder(in meta.ParamIn) *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag(string(in))
	d.IgnoreUnknownKeys(true)
	return d
}

// binder 将请求解析为路由函数的入参
type binder struct {
	route *meta.Route
	input reflect.Type // 路由函数的入参类型
	elem  reflect.Type // 入参结构体类型
	model reflect.Type // 请求体为实例时, 由类转换得到的结构体类型; nil 表示直接按类解析
}

func newBinder(route *meta.Route) *binder {
	b := &binder{route: route, input: route.Input}
	if b.input == nil {
		return b
	}
	if route.BodyClass != nil {
		if model, err := convert.TypeSafeToModel(route.BodyClass); err == nil {
			b.model = model
		}
		return b
	}
	b.elem = b.input
	if b.elem.Kind() == reflect.Ptr {
		b.elem = b.elem.Elem()
	}
	return b
}

// Bind 解析请求, 校验失败时返回 *godantic.HTTPValidationError
func (b *binder) Bind(c *fiber.Ctx) (reflect.Value, error) {
	if b.route.BodyClass != nil {
		obj, errs := b.bindObject(c.Body())
		if len(errs) > 0 {
			return reflect.Value{}, godantic.NewHTTPValidationError(errs...)
		}
		return reflect.ValueOf(obj), nil
	}

	ptr := reflect.New(b.elem)
	errs := make([]*godantic.ValidationError, 0)
	for _, in := range []meta.ParamIn{meta.InPath, meta.InQuery, meta.InHeader} {
		errs = append(errs, b.bindParams(c, in, ptr)...)
	}
	if body := b.route.Body(); body != nil {
		errs = append(errs, b.bindBody(c.Body(), body, ptr)...)
	}
	if len(errs) > 0 {
		return reflect.Value{}, godantic.NewHTTPValidationError(errs...)
	}

	if b.input.Kind() == reflect.Ptr {
		return ptr, nil
	}
	return ptr.Elem(), nil
}

// 解析路径参数/查询参数/请求头
func (b *binder) bindParams(c *fiber.Ctx, in meta.ParamIn, ptr reflect.Value) []*godantic.ValidationError {
	params := b.route.ParamsIn(in)
	if len(params) == 0 {
		return nil
	}

	errs := make([]*godantic.ValidationError, 0)
	src := make(map[string][]string, len(params))
	present := make(map[string]bool, len(params))
	for _, p := range params {
		values := lookup(c, in, p.Name)
		if len(values) > 0 {
			src[p.Name] = values
			present[p.Name] = true
			continue
		}
		switch {
		case p.HasDefault:
			src[p.Name] = []string{fmt.Sprint(p.Default)}
		case p.Required:
			errs = append(errs, &godantic.ValidationError{
				Loc:  []string{string(in), p.Name},
				Msg:  "field required",
				Type: "value_error.missing",
			})
		}
	}

	if err := decoders[in].Decode(ptr.Interface(), src); err != nil {
		errs = append(errs, decodeErrors(in, err)...)
	}
	if len(errs) > 0 {
		return errs
	}

	for _, p := range params {
		if p.Validate == "" || !present[p.Name] {
			continue
		}
		value := ptr.Elem().FieldByIndex(p.Index).Interface()
		if ve := godantic.ValidateVar(p.Name, value, p.Validate); ve != nil {
			errs = append(errs, godantic.WithLoc([]*godantic.ValidationError{ve}, string(in))...)
		}
	}
	return errs
}

// 读取请求中的参数值, 不存在时返回空
func lookup(c *fiber.Ctx, in meta.ParamIn, name string) []string {
	switch in {
	case meta.InPath:
		raw := c.Params(name)
		if raw == "" {
			return nil
		}
		if v, err := url.PathUnescape(raw); err == nil {
			raw = v
		}
		return []string{strings.Clone(raw)}
	case meta.InQuery:
		peeked := c.Context().QueryArgs().PeekMulti(name)
		values := make([]string, 0, len(peeked))
		for _, v := range peeked {
			values = append(values, string(v))
		}
		return values
	case meta.InHeader:
		if v := c.Get(name); v != "" {
			return []string{strings.Clone(v)}
		}
	}
	return nil
}

// 将 gorilla/schema 的解码错误转换为校验错误
func decodeErrors(in meta.ParamIn, err error) []*godantic.ValidationError {
	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return []*godantic.ValidationError{{Loc: []string{string(in)}, Msg: err.Error(), Type: "type_error"}}
	}

	errs := make([]*godantic.ValidationError, 0, len(multi))
	for _, key := range utils.SortedKeys(multi) {
		ve := &godantic.ValidationError{
			Loc:  []string{string(in), key},
			Msg:  multi[key].Error(),
			Type: "type_error",
		}
		var conv schema.ConversionError
		if errors.As(multi[key], &conv) && conv.Type != nil {
			ve.Msg = fmt.Sprintf("value is not a valid %s", conv.Type)
			ve.Type = "type_error." + conv.Type.Kind().String()
		}
		errs = append(errs, ve)
	}
	return errs
}

// 解析请求体
func (b *binder) bindBody(body []byte, p *meta.Param, ptr reflect.Value) []*godantic.ValidationError {
	if len(body) == 0 {
		if p.Required {
			return []*godantic.ValidationError{{Loc: []string{"body"}, Msg: "field required", Type: "value_error.missing"}}
		}
		return nil
	}

	target := ptr // 整个结构体作为请求体
	if !p.IsWhole() {
		field := ptr.Elem().FieldByIndex(p.Index)
		if field.Kind() == reflect.Ptr {
			field.Set(reflect.New(field.Type().Elem()))
			target = field
		} else {
			target = field.Addr()
		}
	}

	if err := utils.JsonUnmarshal(body, target.Interface()); err != nil {
		return []*godantic.ValidationError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error.jsondecode"}}
	}

	if target.Elem().Kind() == reflect.Struct {
		return godantic.WithLoc(godantic.Validate(target.Interface()), "body")
	}
	if p.Validate != "" {
		if ve := godantic.ValidateVar("body", target.Elem().Interface(), p.Validate); ve != nil {
			return []*godantic.ValidationError{ve}
		}
	}
	return nil
}

// 按类解析请求体
func (b *binder) bindObject(body []byte) (*typesafe.Object, []*godantic.ValidationError) {
	if len(body) == 0 {
		return nil, []*godantic.ValidationError{{Loc: []string{"body"}, Msg: "field required", Type: "value_error.missing"}}
	}

	var obj *typesafe.Object
	var err error
	if b.model != nil {
		ptr := reflect.New(b.model)
		if errs := godantic.ParseRaw(body, ptr.Interface()); len(errs) > 0 {
			return nil, godantic.WithLoc(errs, "body")
		}
		obj, err = convert.ValueToObject(ptr.Interface(), b.route.BodyClass)
	} else {
		obj, err = b.route.BodyClass.Decode(body)
	}
	if err == nil {
		return obj, nil
	}

	var te *typesafe.TypeError
	if errors.As(err, &te) {
		return nil, []*godantic.ValidationError{{
			Loc:  []string{"body", te.Field},
			Msg:  te.Error(),
			Type: "type_error",
			Ctx:  map[string]any{"expected": te.Want, "got": te.Got},
		}}
	}
	return nil, []*godantic.ValidationError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
}

// routeHandler 构建路由的 fiber.Handler: 解析参数, 反射调用路由函数, 序列化返回值
func (f *Wrapper) routeHandler(route *meta.Route) (fiber.Handler, error) {
	fn := reflect.ValueOf(route.Handler)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T is not a function", ErrInvalidHandler, route.Handler)
	}
	b := newBinder(route)
	if route.Input != nil && route.BodyClass == nil && b.elem.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: input %s is not a struct", ErrInvalidHandler, route.Input)
	}

	return func(c *fiber.Ctx) error {
		ctx := f.acquireCtx(c, route)
		defer f.releaseCtx(ctx)

		args := []reflect.Value{reflect.ValueOf(ctx)}
		if route.Input != nil {
			in, err := b.Bind(c)
			if err != nil {
				return err
			}
			args = append(args, in)
		}

		results := fn.Call(args)
		if err := results[1]; !err.IsNil() {
			return err.Interface().(error)
		}

		return writeResponse(c, utils.Ternary(ctx.statusCode > 0, ctx.statusCode, fiber.StatusOK), results[0])
	}, nil
}

// 序列化路由函数的返回值
func writeResponse(c *fiber.Ctx, statusCode int, out reflect.Value) error {
	c.Status(statusCode)

	switch out.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if out.IsNil() {
			return c.JSON(nil)
		}
	}

	switch v := out.Interface().(type) {
	case Response:
		return v.Send(c)
	case *typesafe.Object:
		return c.JSON(v.Map())
	default:
		return c.JSON(v)
	}
}
