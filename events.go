package fastapi

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

// RequestIdHeader 每个响应都会携带的请求ID响应头
const RequestIdHeader = "fast-api-request-id"

const requestIdLocal = "fastapi.request_id"

// HttpEvent 一次请求的记录
type HttpEvent struct {
	RequestId  string        `json:"request_id" description:"请求ID"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	ClientIP   string        `json:"client_ip,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration" description:"处理耗时,纳秒"`
}

// HttpEvents 最近N次请求的环形缓冲区
type HttpEvents struct {
	mu     sync.RWMutex
	events []*HttpEvent
	next   int
	full   bool
	total  uint64
}

// NewHttpEvents 创建缓冲区, max<=0 时不记录任何请求, 但仍会生成请求ID
func NewHttpEvents(max int) *HttpEvents {
	if max < 0 {
		max = 0
	}
	return &HttpEvents{events: make([]*HttpEvent, max)}
}

// Add 添加一条记录, 缓冲区满时覆盖最早的记录
func (h *HttpEvents) Add(event *HttpEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.total++
	if len(h.events) == 0 {
		return
	}
	h.events[h.next] = event
	h.next = (h.next + 1) % len(h.events)
	if h.next == 0 {
		h.full = true
	}
}

// Events 按时间先后返回全部记录
func (h *HttpEvents) Events() []*HttpEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		return append([]*HttpEvent{}, h.events[:h.next]...)
	}
	out := make([]*HttpEvent, 0, len(h.events))
	out = append(out, h.events[h.next:]...)
	return append(out, h.events[:h.next]...)
}

// Total 自启动以来的请求总数
func (h *HttpEvents) Total() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Clear 清空记录
func (h *HttpEvents) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.events {
		h.events[i] = nil
	}
	h.next, h.full, h.total = 0, false, 0
}

// Middleware 为每个请求分配ID, 并在请求结束后记录
func (h *HttpEvents) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// fasthttp 会复用请求的缓冲区, 记录需要在请求结束后保留, 必须复制
		event := &HttpEvent{
			RequestId: uuid.NewString(),
			Method:    utils.CopyString(c.Method()),
			Path:      utils.CopyString(c.Path()),
			ClientIP:  utils.CopyString(c.IP()),
			StartedAt: time.Now(),
		}
		c.Locals(requestIdLocal, event.RequestId)
		c.Set(RequestIdHeader, event.RequestId)

		err := c.Next()
		if err != nil {
			// 先交由错误处理函数生成响应, 以记录真实的状态码
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		event.StatusCode = c.Response().StatusCode()
		event.Duration = time.Since(event.StartedAt)
		h.Add(event)

		return err
	}
}

// RequestId 获取当前请求的ID
func RequestId(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIdLocal).(string); ok {
		return id
	}
	return ""
}
