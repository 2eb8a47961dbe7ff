package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

// AssertErrorKind asserts that err classifies as kind.
func AssertErrorKind(t testing.TB, kind builderr.Kind, err error, msgAndArgs ...interface{}) {
	t.Helper()

	require.Error(t, err, msgAndArgs...)
	assert.Equal(t, kind.String(), builderr.KindOf(err).String(), msgAndArgs...)
}

// AssertExitCode asserts the process exit code err maps to.
func AssertExitCode(t testing.TB, code int, err error, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, code, builderr.ExitCode(err), msgAndArgs...)
}

// AssertFileExists asserts that path is a regular file.
func AssertFileExists(t testing.TB, path string, msgAndArgs ...interface{}) {
	t.Helper()
	assert.FileExists(t, path, msgAndArgs...)
}

// AssertFileContains asserts that the file at path contains expected.
func AssertFileContains(t testing.TB, path, expected string, msgAndArgs ...interface{}) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err, "read %s", path)
	assert.Contains(t, string(content), expected, msgAndArgs...)
}
