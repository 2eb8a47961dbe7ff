package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/makeomatic/internal/adapters/logging"
	"github.com/felixgeelhaar/makeomatic/internal/app"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
	"github.com/felixgeelhaar/makeomatic/internal/testutil"
	"github.com/felixgeelhaar/makeomatic/internal/testutil/mocks"
)

const script = `
project:
  name: hello
  steps:
    build:
      - command: [make, all]
`

// useMocks makes the commands run with a mock runner and no log output.
func useMocks(t *testing.T) *mocks.CommandRunner {
	t.Helper()
	runner := mocks.NewCommandRunner()
	runner.SetDefault(ports.CommandResult{})
	orig := newMom
	newMom = func(out io.Writer) *app.Mom {
		return app.New(out).
			WithRunner(runner).
			WithLogger(logging.NewNopLogger()).
			WithRunIDs(func() string { return "run-1" })
	}
	t.Cleanup(func() { newMom = orig })
	testutil.SetEnv(t, settings.TestsRunningVariable, "1")
	return runner
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	root := newRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	code := execute(context.Background(), root, args, errOut)
	return code, out.String(), errOut.String()
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := make([]string, 0)
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"build", "describe", "query", "print", "queue", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestBuildCmd_FlagShorthands(t *testing.T) {
	t.Parallel()

	cmd := newBuildCmd(&globalOptions{})
	tests := map[string]string{
		"type":             "t",
		"build-steps":      "s",
		"revision":         "r",
		"scm-url":          "u",
		"disable-shutdown": "d",
	}
	for name, short := range tests {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, short, f.Shorthand, name)
	}
	assert.NotNil(t, cmd.Flags().Lookup("show-actions"))
}

func TestBuild_Succeeds(t *testing.T) {
	runner := useMocks(t)
	dir := t.TempDir()
	path := testutil.WriteTempFile(t, dir, "hello.yaml", script)

	code, out, errOut := run(t, "build", path, "-t", "h", "-C", dir)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, []string{"make all"}, runner.CommandLines())
	assert.Contains(t, out, "Run run-1")
}

func TestBuild_ExitCodes(t *testing.T) {
	runner := useMocks(t)
	runner.AddResult("make", []string{"all"}, ports.CommandResult{ExitCode: 1})
	dir := t.TempDir()
	path := testutil.WriteTempFile(t, dir, "hello.yaml", script)

	code, _, _ := run(t, "build", path, "-t", "h", "-C", dir)
	assert.Equal(t, builderr.ExitBuildError, code)

	code, _, errOut := run(t, "build", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, builderr.ExitConfigurationError, code)
	assert.Contains(t, errOut, "Error: [configuration error]")

	code, _, _ = run(t, "build")
	assert.Equal(t, builderr.ExitConfigurationError, code, "usage errors are configuration errors")
}

func TestBuild_Interrupted(t *testing.T) {
	useMocks(t)
	dir := t.TempDir()
	path := testutil.WriteTempFile(t, dir, "hello.yaml", script)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := newRootCmd()
	root.SetOut(io.Discard)
	code := execute(ctx, root, []string{"build", path, "-t", "h", "-C", dir}, io.Discard)
	assert.Equal(t, builderr.ExitInterrupted, code)
}

func TestQueryCmd(t *testing.T) {
	useMocks(t)
	path := testutil.WriteTempFile(t, t.TempDir(), "hello.yaml", script)

	code, out, errOut := run(t, "query", path, "project.buildtype", "-t", "d")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "project.buildtype: d\n", out)
}

func TestVersionCmd(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "mom "+settings.Version)
}

func TestQueueCmd(t *testing.T) {
	useMocks(t)
	dir := t.TempDir()
	src := t.TempDir()
	testutil.WriteTempFile(t, src, "Makefile", "all:\n")
	path := testutil.WriteTempFile(t, dir, "hello.yaml",
		"project:\n  name: hello\n  source: local:"+src+"\n")
	db := filepath.Join(dir, "status.sqlite")

	code, out, errOut := run(t, "queue", "register", path, "--database", db)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "initial hello")

	code, out, errOut = run(t, "queue", "list", "--status", "initial", "--database", db)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "PROJECT")
	assert.Contains(t, out, "hello")

	code, _, errOut = run(t, "queue", "run-next", "--database", db)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "no waiting builds")

	code, _, _ = run(t, "queue", "list", "--status", "later", "--database", db)
	assert.Equal(t, builderr.ExitConfigurationError, code)
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	err := builderr.Configuration("no build script given").WithDetails("pass a script")
	assert.Equal(t, "[configuration error] no build script given\n  Details: pass a script", formatError(err))
	assert.Equal(t, "plain", formatError(assertError("plain")))
}

type assertError string

func (e assertError) Error() string { return string(e) }
