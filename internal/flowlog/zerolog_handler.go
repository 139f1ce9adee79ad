package flowlog

import (
	"context"
	"io"
	"log/slog"

	"github.com/rs/zerolog"
)

// ZerologHandler adapts zerolog to slog.Handler so the CLIs can install
// zerolog (the teacher's structured-logging dependency,
// pkg/middleware/logger/zerolog_adapter.go) as the process-wide backing
// handler while every package keeps coding against log/slog.
type ZerologHandler struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

// NewZerologHandler builds a slog.Handler writing newline-delimited JSON to
// w at the given minimum level.
func NewZerologHandler(w io.Writer, level slog.Level) *ZerologHandler {
	return &ZerologHandler{logger: zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()}
}

// Enabled implements slog.Handler.
func (h *ZerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= toZerologLevel(level)
}

// Handle implements slog.Handler.
func (h *ZerologHandler) Handle(_ context.Context, record slog.Record) error {
	evt := h.eventFor(record.Level)
	for _, a := range h.attrs {
		evt = addAttr(evt, h.groups, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		evt = addAttr(evt, h.groups, a)
		return true
	})
	evt.Msg(record.Message)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *ZerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup implements slog.Handler.
func (h *ZerologHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

func (h *ZerologHandler) eventFor(level slog.Level) *zerolog.Event {
	switch {
	case level >= slog.LevelError:
		return h.logger.Error()
	case level >= slog.LevelWarn:
		return h.logger.Warn()
	case level >= slog.LevelInfo:
		return h.logger.Info()
	default:
		return h.logger.Debug()
	}
}

func addAttr(evt *zerolog.Event, groups []string, a slog.Attr) *zerolog.Event {
	key := a.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}
	return evt.Interface(key, a.Value.Any())
}

func toZerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
