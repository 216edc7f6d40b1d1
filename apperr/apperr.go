// Package apperr is the server-side error taxonomy. Handlers and services
// return *Error values; a single renderer maps them to HTTP statuses and a
// stable JSON shape. Anything that is not an *Error renders as Internal.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindNotFound
	KindBadRequest
	KindConflict
	KindInternal
)

// FieldError is one field-path + message pair for form-level display.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func BadRequest(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindBadRequest, Message: msg, Fields: fields}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf returns the taxonomy kind of err, or KindInternal when err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func httpStatus(k Kind) int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Render writes err as a JSON response. Internal errors are logged with the
// attached args (tenant/survey ids); answer payloads must never be passed in.
func Render(c *gin.Context, err error, logArgs ...any) {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = Internal(err)
	}

	if ae.Kind == KindInternal {
		slog.Error("request failed", append([]any{"err", err}, logArgs...)...)
	}

	body := gin.H{"message": ae.Message}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	c.AbortWithStatusJSON(httpStatus(ae.Kind), body)
}
