// Package logger holds the zap logger shared by every engine package. It defaults to a no-op
// logger so library consumers opt in to output by calling SetLogger.
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// L returns the active logger.
//
// Returns:
//   - *zap.Logger: the logger set by SetLogger, or a no-op logger
func L() *zap.Logger {
	return current.Load()
}

// Named returns a child of the active logger scoped to a subsystem, e.g. "renderer" or "profiler".
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// SetLogger replaces the active logger. A nil logger restores the no-op logger.
//
// Parameters:
//   - l: the logger to use from now on
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// NewDevelopment builds a human readable logger for examples and local runs.
//
// Returns:
//   - *zap.Logger: a development logger
//   - error: an error if the logger could not be built
func NewDevelopment() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
