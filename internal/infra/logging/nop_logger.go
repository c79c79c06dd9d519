package logging

import (
	"context"
	"log/slog"
)

// NewNopLogger returns a logger whose records are dropped before formatting.
// Services fall back to it when no output is configured.
func NewNopLogger() Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
