// Package psxlog wires the structured logging convention used throughout
// psxcore: every component accepts a *slog.Logger at construction time, and
// falls back to a single process-wide default sink when none is given. This
// mirrors go-jeebie's own use of log/slog (jeebie/video.GPU, jeebie/serial.LogSink)
// generalized with the explicit default-sink seam spec.md §6 calls for ("a
// single global logger sink (set once at startup) routes logf calls when no
// per-component sink is installed").
package psxlog

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[slog.Logger]

// SetDefault installs the process-wide fallback logger. Intended to be
// called once at startup; components constructed afterwards with a nil
// logger pick it up via Tagged/Default.
func SetDefault(l *slog.Logger) {
	defaultLogger.Store(l)
}

var initDefault sync.Once

// Default returns the process-wide fallback logger, initializing it to
// slog.Default() on first use.
func Default() *slog.Logger {
	initDefault.Do(func() {
		if defaultLogger.Load() == nil {
			defaultLogger.Store(slog.Default())
		}
	})
	return defaultLogger.Load()
}

// Tagged returns logger (if non-nil) wrapped with a "component" attribute,
// or the process-wide default tagged the same way. Components call this at
// construction: psxlog.Tagged(opts.Logger, "CDROM").
func Tagged(logger *slog.Logger, tag string) *slog.Logger {
	if logger == nil {
		logger = Default()
	}
	return logger.With("component", tag)
}
