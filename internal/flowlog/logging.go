// Package flowlog provides context-scoped structured logging, grounded on
// the teacher's pkg/calque/logging.go: package-level Info/Debug/Warn/Error
// functions that read the *slog.Logger out of context (via flowctx) and
// automatically tag every line with the active trace id and route.
package flowlog

import (
	"context"
	"log/slog"

	"github.com/flowlang/flow/internal/flowctx"
)

func appendContextFields(ctx context.Context, args []any) []any {
	if traceID := flowctx.TraceID(ctx); traceID != "" {
		args = append(args, "trace_id", traceID)
	}
	if route := flowctx.Route(ctx); route != "" {
		args = append(args, "route", route)
	}
	return args
}

// Info logs an info-level message with trace_id/route appended.
func Info(ctx context.Context, msg string, args ...any) {
	logger := flowctx.Logger(ctx)
	if !logger.Enabled(ctx, slog.LevelInfo) {
		return
	}
	logger.InfoContext(ctx, msg, appendContextFields(ctx, args)...)
}

// Debug logs a debug-level message with trace_id/route appended.
func Debug(ctx context.Context, msg string, args ...any) {
	logger := flowctx.Logger(ctx)
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	logger.DebugContext(ctx, msg, appendContextFields(ctx, args)...)
}

// Warn logs a warn-level message with trace_id/route appended.
func Warn(ctx context.Context, msg string, args ...any) {
	logger := flowctx.Logger(ctx)
	if !logger.Enabled(ctx, slog.LevelWarn) {
		return
	}
	logger.WarnContext(ctx, msg, appendContextFields(ctx, args)...)
}

// Error logs an error-level message, appending err (if non-nil) and
// trace_id/route.
func Error(ctx context.Context, msg string, err error, args ...any) {
	logger := flowctx.Logger(ctx)
	if !logger.Enabled(ctx, slog.LevelError) {
		return
	}
	args = appendContextFields(ctx, args)
	if err != nil {
		args = append(args, "error", err)
	}
	logger.ErrorContext(ctx, msg, args...)
}

// ErrorAttr logs error-level using slog.Attr (used by flowerr.Error.Log,
// which already has a fully-built attribute set).
func ErrorAttr(ctx context.Context, msg string, attrs ...slog.Attr) {
	logger := flowctx.Logger(ctx)
	if !logger.Enabled(ctx, slog.LevelError) {
		return
	}
	logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
