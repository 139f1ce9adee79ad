// Package flowctx carries request-scoped values — the active trace id and
// route, and the installed logger — through context.Context the same way
// the teacher's pkg/calque/context.go threads a logger and trace/request id
// through concurrent middleware. Here the correlation key is a flow Route
// (the unit this system reasons about) rather than an HTTP request id.
package flowctx

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey string

const (
	loggerKey  ctxKey = "flow.logger"
	traceIDKey ctxKey = "flow.trace_id"
	routeKey   ctxKey = "flow.route"
)

// WithLogger stores a *slog.Logger in ctx for flowlog.Info/Debug/... to find.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger retrieves the logger from ctx, or slog.Default() if none was set.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// NewTraceID generates a fresh trace id for a compile or a run submission.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace id, minted once per submission (compile run or
// flow execution), in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID retrieves the trace id from ctx, or "" if none was set.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRoute stores the model.Route (as a string, to avoid an import cycle
// with package model) currently being processed in ctx.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

// Route retrieves the route from ctx, or "" if none was set.
func Route(ctx context.Context) string {
	if r, ok := ctx.Value(routeKey).(string); ok {
		return r
	}
	return ""
}
