package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// TimeLayout is the timestamp prefix of text entries, e.g. 240131-17:05:09.
const TimeLayout = "060102-15:04:05"

// NodeField is rendered as a [node] prefix instead of a key=value pair.
const NodeField = "node"

var levelStyles = map[ports.Level]lipgloss.Style{
	ports.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	ports.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	ports.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	ports.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// ConsoleLogger writes build progress to a terminal or a log collector.
//
// Text entries look like
//
//	240131-17:05:09 [INFO] [hello/Debug] step finished step=build code=0
//
// JSON entries carry the same data as one object per line.
type ConsoleLogger struct {
	mu      *sync.Mutex
	out     io.Writer
	level   *ports.Level
	fields  []ports.Field
	json    bool
	stamp   bool
	label   bool
	color   bool
	baseDir string
	now     func() time.Time
}

// ConsoleLoggerOption configures the console logger.
type ConsoleLoggerOption func(*ConsoleLogger)

// WithOutput sets the output writer (default: os.Stderr).
func WithOutput(w io.Writer) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.out = w }
}

// WithLevel sets the minimum log level (default: Info).
func WithLevel(level ports.Level) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { *l.level = level }
}

// WithJSONFormat writes one JSON object per entry.
func WithJSONFormat(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.json = enabled }
}

// WithTimestamp prefixes entries with the time.
func WithTimestamp(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.stamp = enabled }
}

// WithLevelLabel prefixes entries with the level.
func WithLevelLabel(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.label = enabled }
}

// WithColor renders level labels in colour. Ignored for JSON output.
func WithColor(enabled bool) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.color = enabled }
}

// WithBaseDir shortens paths below dir to $BASE in messages and string
// fields.
func WithBaseDir(dir string) ConsoleLoggerOption {
	return func(l *ConsoleLogger) { l.baseDir = strings.TrimRight(dir, `/\`) }
}

// NewConsoleLogger creates a console logger.
func NewConsoleLogger(opts ...ConsoleLoggerOption) *ConsoleLogger {
	level := ports.LevelInfo
	l := &ConsoleLogger{
		mu:    &sync.Mutex{},
		out:   os.Stderr,
		level: &level,
		stamp: true,
		label: true,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelDebug, msg, fields)
}

func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelInfo, msg, fields)
}

func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelWarn, msg, fields)
}

func (l *ConsoleLogger) Error(ctx context.Context, msg string, fields ...ports.Field) {
	l.log(ctx, ports.LevelError, msg, fields)
}

// With returns a logger adding fields to every entry. It shares the
// output, the lock and the level with l.
func (l *ConsoleLogger) With(fields ...ports.Field) ports.Logger {
	c := *l
	c.fields = append(append(make([]ports.Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &c
}

// Level returns the minimum log level.
func (l *ConsoleLogger) Level() ports.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.level
}

// SetLevel changes the minimum level of l and of the loggers derived
// from it with With.
func (l *ConsoleLogger) SetLevel(level ports.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.level = level
}

func (l *ConsoleLogger) log(_ context.Context, level ports.Level, msg string, fields []ports.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < *l.level {
		return
	}

	all := make([]ports.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)

	var line string
	if l.json {
		line = l.jsonLine(level, msg, all)
	} else {
		line = l.textLine(level, msg, all)
	}
	if line != "" {
		_, _ = io.WriteString(l.out, line+"\n")
	}
}

func (l *ConsoleLogger) shorten(s string) string {
	if l.baseDir == "" {
		return s
	}
	return strings.ReplaceAll(s, l.baseDir, "$BASE")
}

func (l *ConsoleLogger) value(v interface{}) interface{} {
	switch x := v.(type) {
	case error:
		return l.shorten(x.Error())
	case string:
		return l.shorten(x)
	case time.Duration:
		return x.Round(time.Millisecond).String()
	case fmt.Stringer:
		return x.String()
	}
	return v
}

func (l *ConsoleLogger) jsonLine(level ports.Level, msg string, fields []ports.Field) string {
	entry := make(map[string]interface{}, len(fields)+3)
	if l.stamp {
		entry["time"] = l.now().UTC().Format(time.RFC3339)
	}
	if l.label {
		entry["level"] = level.String()
	}
	entry["msg"] = l.shorten(msg)
	for _, f := range fields {
		entry[f.Key] = l.value(f.Value)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	return string(data)
}

func (l *ConsoleLogger) textLine(level ports.Level, msg string, fields []ports.Field) string {
	parts := make([]string, 0, 4+len(fields))
	if l.stamp {
		parts = append(parts, l.now().Format(TimeLayout))
	}
	if l.label {
		label := "[" + level.String() + "]"
		if l.color {
			label = levelStyles[level].Render(label)
		}
		parts = append(parts, label)
	}

	rest := make([]string, 0, len(fields))
	for _, f := range fields {
		v := fmt.Sprint(l.value(f.Value))
		if f.Key == NodeField {
			parts = append(parts, "["+v+"]")
			continue
		}
		if strings.ContainsAny(v, " \t\n\"") {
			v = fmt.Sprintf("%q", v)
		}
		rest = append(rest, f.Key+"="+v)
	}
	parts = append(parts, l.shorten(msg))
	return strings.Join(append(parts, rest...), " ")
}

var _ ports.Logger = (*ConsoleLogger)(nil)
