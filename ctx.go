package fastapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/logger"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/meta"
)

// Context 路由上下文信息
//
//	注意: 当一个路由被执行完毕时, Context 将被立刻释放, 因此在return之后对
//	Context 的任何引用都是不对的, 若需在return之后使用 Context.Context() 则应该显式的派生
type Context struct {
	fctx       *fiber.Ctx  `description:"fiber 上下文"`
	app        *Wrapper    `description:"所属应用"`
	route      *meta.Route `description:"当前路由"`
	statusCode int         `description:"响应状态码, 0 表示默认"`
}

func (f *Wrapper) acquireCtx(c *fiber.Ctx, route *meta.Route) *Context {
	ctx := f.pool.Get().(*Context)
	ctx.fctx, ctx.route, ctx.statusCode = c, route, 0
	return ctx
}

func (f *Wrapper) releaseCtx(ctx *Context) {
	ctx.fctx, ctx.route = nil, nil
	f.pool.Put(ctx)
}

// Fiber 获取 fiber 上下文, 可用于读取原始请求或直接写入响应
func (c *Context) Fiber() *fiber.Ctx { return c.fctx }

// Context 针对此次请求的 context.Context
func (c *Context) Context() context.Context { return c.fctx.UserContext() }

// App 当前请求所属的应用
func (c *Context) App() *Wrapper { return c.app }

// Route 当前路由的元信息
func (c *Context) Route() *meta.Route { return c.route }

func (c *Context) Logger() logger.Iface { return c.app.Logger() }

// RequestId 当前请求的ID, 同时写入响应头 fast-api-request-id
func (c *Context) RequestId() string { return RequestId(c.fctx) }

// Params 获取路径参数
func (c *Context) Params(key string, undefined ...string) string {
	return c.fctx.Params(key, undefined...)
}

// Query 获取查询参数
func (c *Context) Query(key string, undefined ...string) string {
	return c.fctx.Query(key, undefined...)
}

// Header 获取请求头
func (c *Context) Header(key string, undefined ...string) string {
	return c.fctx.Get(key, undefined...)
}

// Status 修改成功响应的状态码, 默认为 200
func (c *Context) Status(code int) *Context {
	c.statusCode = code
	return c
}

// SetHeader 设置响应头
func (c *Context) SetHeader(key, value string) *Context {
	c.fctx.Set(key, value)
	return c
}

// Set 保存请求级别的键值
func (c *Context) Set(key string, value any) { c.fctx.Locals(key, value) }

// Get 读取请求级别的键值
func (c *Context) Get(key string) any { return c.fctx.Locals(key) }
