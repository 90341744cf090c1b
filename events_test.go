package fastapi

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHttpEvents_Ring(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		add   int
		want  []string
		total uint64
	}{
		{name: "empty", max: 3, add: 0, want: []string{}, total: 0},
		{name: "partial", max: 3, add: 2, want: []string{"/0", "/1"}, total: 2},
		{name: "full", max: 3, add: 3, want: []string{"/0", "/1", "/2"}, total: 3},
		{name: "overwrite", max: 3, add: 5, want: []string{"/2", "/3", "/4"}, total: 5},
		{name: "disabled", max: 0, add: 2, want: []string{}, total: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHttpEvents(tt.max)
			for i := 0; i < tt.add; i++ {
				h.Add(&HttpEvent{Path: fmt.Sprintf("/%d", i)})
			}

			paths := make([]string, 0)
			for _, e := range h.Events() {
				paths = append(paths, e.Path)
			}
			assert.Equal(t, tt.want, paths)
			assert.Equal(t, tt.total, h.Total())
		})
	}
}

func TestHttpEvents_Clear(t *testing.T) {
	h := NewHttpEvents(2)
	h.Add(&HttpEvent{Path: "/a"})
	h.Add(&HttpEvent{Path: "/b"})
	h.Add(&HttpEvent{Path: "/c"})
	h.Clear()

	assert.Empty(t, h.Events())
	assert.Zero(t, h.Total())
}

func TestHttpEvents_Middleware(t *testing.T) {
	h := NewHttpEvents(10)
	app := fiber.New()
	app.Use(h.Middleware())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString(RequestId(c)) })
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.ErrTeapot })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	id := resp.Header.Get(RequestIdHeader)
	assert.Len(t, id, 36)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/teapot", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	events := h.Events()
	require.Len(t, events, 2)
	assert.Equal(t, id, events[0].RequestId)
	assert.Equal(t, "/ok", events[0].Path)
	assert.Equal(t, fiber.StatusOK, events[0].StatusCode)
	assert.Equal(t, fiber.StatusTeapot, events[1].StatusCode)
	assert.NotEqual(t, events[0].RequestId, events[1].RequestId)
}

func TestHttpEvents_Middleware_KeepsRequestData(t *testing.T) {
	h := NewHttpEvents(10)
	app := fiber.New()
	app.Use(h.Middleware())
	app.Get("/*", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	paths := []string{"/files/list", "/a", "/users/42/settings/profile", "/b"}
	for _, p := range paths {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, p, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}

	events := h.Events()
	require.Len(t, events, len(paths))
	for i, e := range events {
		assert.Equal(t, paths[i], e.Path)
		assert.Equal(t, fiber.MethodGet, e.Method)
	}
}
