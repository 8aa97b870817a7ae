// Package testutil provides test utilities for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Record is one captured log entry.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Records collects log entries written through a capture logger.
type Records struct {
	mu      sync.Mutex
	entries []Record
}

// All returns every captured entry in order.
func (r *Records) All() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the messages logged at exactly level.
func (r *Records) Messages(level slog.Level) []string {
	var out []string
	for _, e := range r.All() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// NewCaptureLogger returns a logger that records every entry.
func NewCaptureLogger() (*slog.Logger, *Records) {
	records := &Records{}
	return slog.New(&captureHandler{records: records}), records
}

type captureHandler struct {
	records *Records
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.records.mu.Lock()
	h.records.entries = append(h.records.entries, Record{Level: r.Level, Message: r.Message, Attrs: attrs})
	h.records.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{records: h.records, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }
