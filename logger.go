package lantern

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip
// message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger for lantern and its sub-packages. By
// default lantern produces no log output. Pass nil to restore that.
//
// Levels used:
//   - [slog.LevelDebug]: per-frame stats when debug mode is on
//   - [slog.LevelInfo]: stage lifecycle
//   - [slog.LevelWarn]: recovered failures (texture loads, node update panics,
//     dropped mirror events, default texture/shader fallbacks)
//   - [slog.LevelError]: frame-level recovery
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages (mirror, ebitenbackend)
// use it so one SetLogger call configures everything.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
