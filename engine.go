package fastapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	echo "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/openapi"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// 无需认证即可访问的路由
var authExcludePaths = []string{
	"/",
	DocsUrl,
	RedocUrl,
	OpenapiUrl,
	openapi.OAuth2RedirectUrl,
	"/favicon.ico",
}

// createFiberApp 创建 fiber.App 已做了基本的中间件配置
func (f *Wrapper) createFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               false,        // 多进程模式
		CaseSensitive:         true,         // 区分路由大小写
		StrictRouting:         true,         // 严格路由
		ServerHeader:          f.conf.Title, // 服务器头
		AppName:               f.conf.Title + " " + f.conf.Version,
		DisableStartupMessage: !f.conf.Debug,
		JSONEncoder:           utils.JsonMarshal,   // json序列化器
		JSONDecoder:           utils.JsonUnmarshal, // json解码器
		ErrorHandler:          f.errorHandler,      // 设置自定义错误处理
	})

	// 请求ID及请求记录, 位于最外层以记录 panic 等全部请求
	app.Use(f.httpEvents.Middleware())

	// 输出API访问日志
	if f.conf.Debug {
		echoConfig := echo.ConfigDefault
		echoConfig.TimeFormat = "2006/01/02 15:04:05"
		echoConfig.Format = "${time}    ${method}${path} ${status}\n"
		app.Use(echo.New(echoConfig))
	}

	// 自定义全局 recover 方法
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		// 处理完成后错误流转到 fiber.ErrorHandler
		StackTraceHandler: f.recoverHandler,
	}))

	if f.conf.EnableCORS {
		app.Use(cors.New(cors.Config{
			AllowOrigins:  f.conf.AllowOrigins,
			AllowHeaders:  "*",
			ExposeHeaders: RequestIdHeader,
		}))
	}

	if f.conf.EnableAPIKey {
		app.Use(f.apiKeyMiddleware())
	}

	return app
}

// apiKeyMiddleware API Key 认证, 优先从请求头读取, 其次是同名 Cookie
func (f *Wrapper) apiKeyMiddleware() fiber.Handler {
	name, value := f.conf.APIKeyName, f.conf.APIKeyValue
	valid := func(key string) bool {
		return subtle.ConstantTimeCompare([]byte(key), []byte(value)) == 1
	}

	return keyauth.New(keyauth.Config{
		KeyLookup: "header:" + name,
		Next: func(c *fiber.Ctx) bool {
			if utils.Has(authExcludePaths, c.Path()) {
				return true
			}
			if cookie := c.Cookies(name); cookie != "" && valid(cookie) {
				return true
			}
			return false
		},
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if valid(key) {
				return true, nil
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			detail := "Invalid API key"
			if c.Get(name) == "" {
				detail = "Not authenticated: missing API key '" + name + "'"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": detail})
		},
	})
}

// recoverHandler 自定义 recover 错误处理函数
func (f *Wrapper) recoverHandler(c *fiber.Ctx, e any) {
	buf := make([]byte, 1024)
	buf = buf[:runtime.Stack(buf, false)]
	msg := utils.CombineStrings(
		"Request Path: ", c.Path(), fmt.Sprintf(", Error: %v, \n", e), string(buf),
	)
	f.Logger().Error(msg)
}

// errorHandler 自定义fiber接口错误处理函数, 错误响应体统一为 {"detail": ...}
func (f *Wrapper) errorHandler(c *fiber.Ctx, e error) error {
	var httpErr *HTTPError
	var validationErr *godantic.HTTPValidationError
	var fiberErr *fiber.Error

	switch {
	case errors.As(e, &validationErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(validationErr)
	case errors.As(e, &httpErr):
		for k, v := range httpErr.Headers {
			c.Set(k, v)
		}
		return c.Status(httpErr.StatusCode).JSON(fiber.Map{"detail": httpErr.Detail})
	case errors.As(e, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{"detail": fiberErr.Message})
	}

	f.Logger().Error(utils.CombineStrings(
		"error happened during: '", c.Method(), ": ", c.Path(), "', Msg: ", e.Error(),
	))
	detail := "Internal Server Error"
	if f.conf.Debug {
		detail = e.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": detail})
}
