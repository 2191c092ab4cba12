package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type APIResponse[T any] struct {
	Status    int         `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      T           `json:"data,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Error     interface{} `json:"error,omitempty"`
}

// Success writes the envelope with data and returns it.
func Success[T any](ctx *gin.Context, status int, data T, message string, meta interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	resp := APIResponse[T]{
		Status:    status,
		Timestamp: time.Now().UTC(),
		RequestID: ctx.GetString("request_id"),
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
	}
	ctx.JSON(status, resp)
	return resp
}

// Error writes the envelope and aborts the handler chain.
func Error[T any](ctx *gin.Context, status int, message string, err interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	resp := APIResponse[T]{
		Status:    status,
		Timestamp: time.Now().UTC(),
		RequestID: ctx.GetString("request_id"),
		Success:   false,
		Message:   message,
		Error:     err,
	}
	ctx.AbortWithStatusJSON(status, resp)
	return resp
}

// Message writes a success envelope that carries no data.
func Message(ctx *gin.Context, status int, message string) APIResponse[any] {
	return Success[any](ctx, status, nil, message, nil)
}

// Invalid rejects a single request field with a 400.
func Invalid(ctx *gin.Context, field, reason string) APIResponse[any] {
	return Error[any](ctx, http.StatusBadRequest, "invalid payload", map[string]string{field: reason})
}

// ListResponse is the envelope for collections. Data is always present, so
// an empty collection encodes as [].
type ListResponse[T any] struct {
	Status    int         `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      []T         `json:"data"`
	Meta      interface{} `json:"meta,omitempty"`
}

// List writes a collection with its count in meta.
func List[T any](ctx *gin.Context, status int, items []T, message string) ListResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	if items == nil {
		items = []T{}
	}
	resp := ListResponse[T]{
		Status:    status,
		Timestamp: time.Now().UTC(),
		RequestID: ctx.GetString("request_id"),
		Success:   true,
		Message:   message,
		Data:      items,
		Meta:      map[string]any{"count": len(items)},
	}
	ctx.JSON(status, resp)
	return resp
}
