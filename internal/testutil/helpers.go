// Package testutil provides helpers shared by the mom tests: files on
// disk, environment variables and dependency trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTempFile writes content to dir/name, creating missing parent
// folders, and returns the path.
func WriteTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "write %s", name)
	return path
}

// SetEnv sets key for the rest of the test.
func SetEnv(t *testing.T, key, value string) {
	t.Helper()
	restoreEnv(t, key)
	require.NoError(t, os.Setenv(key, value))
}

// UnsetEnv removes key for the rest of the test.
func UnsetEnv(t *testing.T, key string) {
	t.Helper()
	restoreEnv(t, key)
	require.NoError(t, os.Unsetenv(key))
}

func restoreEnv(t *testing.T, key string) {
	original, had := os.LookupEnv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, original)
			return
		}
		_ = os.Unsetenv(key)
	})
}
