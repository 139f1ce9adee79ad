// Package flowerr is the ambient error type every compiler phase and the
// runtime wrap their errors in before reporting them to a caller: a cause,
// a route for correlation, and a set of slog.Attr tags for structured
// logging. Grounded on the teacher's pkg/calque/errors.go, generalized so
// Route (the unit this system correlates by) replaces the teacher's
// per-HTTP-request id.
package flowerr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowlang/flow/internal/flowctx"
	"github.com/flowlang/flow/internal/flowlog"
)

// Error is a route-aware error that carries metadata for logging.
type Error struct {
	msg     string
	cause   error
	traceID string
	route   string
	attrs   []slog.Attr
}

// Wrap wraps an existing error with context metadata (trace id, route).
func Wrap(ctx context.Context, err error, msg string) *Error {
	return &Error{
		msg:     msg,
		cause:   err,
		traceID: flowctx.TraceID(ctx),
		route:   flowctx.Route(ctx),
	}
}

// New creates a new Error with context metadata and no underlying cause.
func New(ctx context.Context, msg string) *Error {
	return Wrap(ctx, nil, msg)
}

// Tag adds a slog.Attr for structured logging and returns the Error for
// fluent chaining.
func (e *Error) Tag(attr slog.Attr) *Error {
	e.attrs = append(e.attrs, attr)
	return e
}

// Tags adds multiple slog.Attr.
func (e *Error) Tags(attrs ...slog.Attr) *Error {
	e.attrs = append(e.attrs, attrs...)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap enables errors.Is/errors.As over the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// TraceID returns the trace id captured at wrap time.
func (e *Error) TraceID() string { return e.traceID }

// Route returns the route captured at wrap time.
func (e *Error) Route() string { return e.route }

// Message returns the message without the cause.
func (e *Error) Message() string { return e.msg }

// Cause is an alias for Unwrap.
func (e *Error) Cause() error { return e.cause }

// LogAttrs returns every attribute, including trace_id/route and the cause.
func (e *Error) LogAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(e.attrs)+3)
	if e.cause != nil {
		attrs = append(attrs, slog.Any("error", e.cause))
	}
	if e.traceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.traceID))
	}
	if e.route != "" {
		attrs = append(attrs, slog.String("route", e.route))
	}
	attrs = append(attrs, e.attrs...)
	return attrs
}

// Log logs this error at error level with all metadata.
func (e *Error) Log(ctx context.Context) {
	flowlog.ErrorAttr(ctx, e.msg, e.LogAttrs()...)
}

// Is implements errors.Is: two *Error values match when their messages do.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.msg == t.msg
}
