// Package logging provides implementations of the ports.Logger interface:
// a ConsoleLogger for text or JSON output and a NopLogger for tests and
// quiet runs.
package logging

import (
	"context"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// NopLogger drops every entry. It keeps a level so that code querying the
// session logger's verbosity behaves the same with logging switched off.
type NopLogger struct {
	level ports.Level
}

var _ ports.Logger = (*NopLogger)(nil)

// NewNopLogger returns a logger at info level that writes nothing.
func NewNopLogger() *NopLogger { return &NopLogger{level: ports.LevelInfo} }

func (l *NopLogger) Debug(context.Context, string, ...ports.Field) {}
func (l *NopLogger) Info(context.Context, string, ...ports.Field)  {}
func (l *NopLogger) Warn(context.Context, string, ...ports.Field)  {}
func (l *NopLogger) Error(context.Context, string, ...ports.Field) {}

// With ignores fields; entries are dropped anyway.
func (l *NopLogger) With(...ports.Field) ports.Logger { return l }

func (l *NopLogger) Level() ports.Level         { return l.level }
func (l *NopLogger) SetLevel(level ports.Level) { l.level = level }
