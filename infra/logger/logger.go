// Package logger provides the concrete implementations behind the
// core/logger interface: a zerolog adapter for the running service and a
// no-op logger for tests.
package logger

import corelogger "github.com/cnergy/cnergy/core/logger"

// Logger is the interface every component logs through.
type Logger = corelogger.Logger

// NopLogger discards everything. Tests use it to keep engine and
// participant construction quiet.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns the logger for a named component.
func New(component string) Logger {
	return NewZerologLogger(component)
}
