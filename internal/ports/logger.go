package ports

import "context"

// Level orders log messages. The run's verbosity setting picks the lowest
// level that is written.
type Level int

const (
	LevelDebug Level = iota // steps, actions, commands
	LevelInfo               // run and phase progress
	LevelWarn               // disabled plugins, ignored errors
	LevelError              // errors that decide the exit code
)

// String returns the label used in console output.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Field is a key/value pair appended to a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the log sink of a run. Nodes of the instructions tree log
// through children created by With, which share the parent's level.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	With(fields ...Field) Logger

	Level() Level
	SetLevel(level Level)
}

type loggerKey struct{}

// ContextWithLogger attaches logger to ctx.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger attached to ctx, or nil.
func LoggerFromContext(ctx context.Context) Logger {
	logger, _ := ctx.Value(loggerKey{}).(Logger)
	return logger
}

// Log writes msg at level to the logger carried by ctx. Without one the
// message is dropped.
func Log(ctx context.Context, level Level, msg string, fields ...Field) {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		return
	}
	write := logger.Error
	switch level {
	case LevelDebug:
		write = logger.Debug
	case LevelInfo:
		write = logger.Info
	case LevelWarn:
		write = logger.Warn
	}
	write(ctx, msg, fields...)
}
