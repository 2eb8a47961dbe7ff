package ports

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandResult_Success(t *testing.T) {
	t.Parallel()

	assert.True(t, CommandResult{ExitCode: 0}.Success())
	assert.False(t, CommandResult{ExitCode: 1}.Success())
	assert.False(t, CommandResult{ExitCode: 0, TimedOut: true}.Success())
}

func TestLevel_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

type stubLogger struct{ Logger }

func TestLoggerContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Nil(t, LoggerFromContext(ctx))

	l := &stubLogger{}
	ctx = ContextWithLogger(ctx, l)
	assert.Same(t, l, LoggerFromContext(ctx))
}

type levelRecorder struct {
	Logger
	got []string
}

func (r *levelRecorder) Debug(_ context.Context, msg string, _ ...Field) {
	r.got = append(r.got, "DEBUG "+msg)
}
func (r *levelRecorder) Info(_ context.Context, msg string, _ ...Field) {
	r.got = append(r.got, "INFO "+msg)
}
func (r *levelRecorder) Warn(_ context.Context, msg string, _ ...Field) {
	r.got = append(r.got, "WARN "+msg)
}
func (r *levelRecorder) Error(_ context.Context, msg string, _ ...Field) {
	r.got = append(r.got, "ERROR "+msg)
}

func TestLog(t *testing.T) {
	t.Parallel()

	Log(context.Background(), LevelError, "dropped")

	r := &levelRecorder{}
	ctx := ContextWithLogger(context.Background(), r)
	Log(ctx, LevelDebug, "a")
	Log(ctx, LevelInfo, "b")
	Log(ctx, LevelWarn, "c")
	Log(ctx, LevelError, "d")
	Log(ctx, Level(9), "e")
	assert.Equal(t, []string{"DEBUG a", "INFO b", "WARN c", "ERROR d", "ERROR e"}, r.got)
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	assert.Equal(t, filepath.Join(home, "MomEnvironments"), ExpandPath("~/MomEnvironments"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Debug":            "Debug",
		"Qt 4.8 - gcc":     "Qt_4.8_-_gcc",
		"a/b":              "a_b",
		"":                 "_",
		"release-x86_64":   "release-x86_64",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}
