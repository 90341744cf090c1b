package fastapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidConfig  = errors.New("fastapi: invalid config")
	ErrInvalidHandler = errors.New("fastapi: invalid route handler")
)

// HTTPError 携带状态码的路由错误, 响应体为 {"detail": Detail}
type HTTPError struct {
	StatusCode int               `json:"-"`
	Detail     any               `json:"detail" description:"错误详情"`
	Headers    map[string]string `json:"-"`
}

// NewHTTPError 创建路由错误, detail 为空时采用状态码的描述
//
//	return nil, fastapi.NewHTTPError(http.StatusNotFound, "file not found")
func NewHTTPError(statusCode int, detail ...any) *HTTPError {
	e := &HTTPError{StatusCode: statusCode}
	if len(detail) > 0 {
		e.Detail = detail[0]
	} else {
		e.Detail = http.StatusText(statusCode)
	}
	return e
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %v", e.StatusCode, e.Detail)
}

// WithHeader 为错误响应附加响应头
func (e *HTTPError) WithHeader(key, value string) *HTTPError {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
	return e
}
