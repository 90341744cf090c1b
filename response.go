package fastapi

import (
	"github.com/gofiber/fiber/v2"
)

// Response 自定义响应体, 路由函数返回实现此接口的值时, 由其自行写入响应
type Response interface {
	Send(c *fiber.Ctx) error
}

// HTMLResponse 网页响应
type HTMLResponse string

func (r HTMLResponse) Send(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(string(r))
}

// RedirectResponse 重定向到给定地址, 状态码为 307
type RedirectResponse string

func (r RedirectResponse) Send(c *fiber.Ctx) error {
	return c.Redirect(string(r), fiber.StatusTemporaryRedirect)
}

// TextResponse 纯文本响应
type TextResponse string

func (r TextResponse) Send(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(string(r))
}

// RawResponse 已序列化的响应体
type RawResponse struct {
	ContentType string `description:"响应类型,默认为 application/json"`
	Body        []byte `description:"响应体"`
}

func (r *RawResponse) Send(c *fiber.Ctx) error {
	if r.ContentType == "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	} else {
		c.Set(fiber.HeaderContentType, r.ContentType)
	}
	return c.Send(r.Body)
}
