package filesystem

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealFileSystem_Integration(t *testing.T) {
	t.Parallel()

	fs := NewRealFileSystem()
	dir := t.TempDir()
	logDir := filepath.Join(dir, "log", "1_Debug")
	logFile := filepath.Join(logDir, "build.log")

	require.NoError(t, fs.MkdirAll(logDir, 0o755))
	assert.True(t, fs.IsDir(logDir))

	require.NoError(t, fs.WriteFile(logFile, []byte("first\n"), 0o644))
	require.NoError(t, fs.AppendFile(logFile, []byte("second\n")))

	data, err := fs.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))

	info, err := fs.GetFileInfo(logFile)
	require.NoError(t, err)
	assert.Equal(t, int64(len("first\nsecond\n")), info.Size)
	assert.False(t, info.IsDir)

	moved := filepath.Join(dir, "log-old")
	require.NoError(t, fs.Rename(filepath.Join(dir, "log"), moved))
	assert.False(t, fs.Exists(logFile))
	assert.True(t, fs.Exists(filepath.Join(moved, "1_Debug", "build.log")))

	require.NoError(t, fs.RemoveAll(moved))
	assert.False(t, fs.Exists(moved))
}

func TestRealFileSystem_AppendFile_Creates(t *testing.T) {
	t.Parallel()

	fs := NewRealFileSystem()
	path := filepath.Join(t.TempDir(), "new.log")

	require.NoError(t, fs.AppendFile(path, []byte("x")))
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestRealFileSystem_NotFound(t *testing.T) {
	t.Parallel()

	fs := NewRealFileSystem()
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := fs.ReadFile(missing)
	assert.Error(t, err)
	_, err = fs.GetFileInfo(missing)
	assert.Error(t, err)
	assert.False(t, fs.IsDir(missing))
}

func TestRealFileSystem_WriteFile_Replaces(t *testing.T) {
	t.Parallel()

	fs := NewRealFileSystem()
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.txt")

	require.NoError(t, fs.WriteFile(path, []byte("a much longer first version\n"), 0o600))
	require.NoError(t, fs.WriteFile(path, []byte("short\n"), 0o644))

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")

	if runtime.GOOS != "windows" {
		info, err := fs.GetFileInfo(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode.Perm())
	}
}

func TestRealFileSystem_RemoveAll_ReadOnly(t *testing.T) {
	t.Parallel()

	fs := NewRealFileSystem()
	root := filepath.Join(t.TempDir(), "src")
	objects := filepath.Join(root, ".git", "objects", "pack")
	require.NoError(t, os.MkdirAll(objects, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(objects, "pack-1.pack"), []byte("x"), 0o444))
	require.NoError(t, os.Chmod(objects, 0o555))

	require.NoError(t, fs.RemoveAll(root))
	assert.False(t, fs.Exists(root))
}
