package mocks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// FileSystem is a thread-safe in-memory test double for ports.FileSystem.
type FileSystem struct {
	mu     sync.RWMutex
	files  map[string][]byte
	dirs   map[string]bool
	errors map[string]error
}

// NewFileSystem creates a new FileSystem mock.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files:  make(map[string][]byte),
		dirs:   make(map[string]bool),
		errors: make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem.
func (fs *FileSystem) AddFile(path, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[filepath.Clean(path)] = []byte(content)
}

// AddDir adds a directory to the mock filesystem.
func (fs *FileSystem) AddDir(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[filepath.Clean(path)] = true
}

// FailOn makes every mutating operation on path return err.
func (fs *FileSystem) FailOn(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.errors[filepath.Clean(path)] = err
}

// Dirs returns all directories, sorted.
func (fs *FileSystem) Dirs() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]string, 0, len(fs.dirs))
	for d := range fs.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ReadFile reads a file from the mock filesystem.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	data, ok := fs.files[filepath.Clean(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// WriteFile writes a file to the mock filesystem.
func (fs *FileSystem) WriteFile(path string, data []byte, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	path = filepath.Clean(path)
	if err := fs.errors[path]; err != nil {
		return err
	}
	fs.files[path] = append([]byte(nil), data...)
	return nil
}

// AppendFile appends to a file in the mock filesystem.
func (fs *FileSystem) AppendFile(path string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	path = filepath.Clean(path)
	if err := fs.errors[path]; err != nil {
		return err
	}
	fs.files[path] = append(fs.files[path], data...)
	return nil
}

// Exists checks whether a file or directory exists.
func (fs *FileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	path = filepath.Clean(path)
	_, isFile := fs.files[path]
	return isFile || fs.dirs[path]
}

// IsDir checks whether path is a directory.
func (fs *FileSystem) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.dirs[filepath.Clean(path)]
}

// MkdirAll records path and all its parents as directories.
func (fs *FileSystem) MkdirAll(path string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	path = filepath.Clean(path)
	if err := fs.errors[path]; err != nil {
		return err
	}
	for p := path; ; p = filepath.Dir(p) {
		fs.dirs[p] = true
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return nil
}

// RemoveAll removes path and everything below it.
func (fs *FileSystem) RemoveAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	path = filepath.Clean(path)
	if err := fs.errors[path]; err != nil {
		return err
	}
	prefix := path + string(filepath.Separator)
	for f := range fs.files {
		if f == path || strings.HasPrefix(f, prefix) {
			delete(fs.files, f)
		}
	}
	for d := range fs.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(fs.dirs, d)
		}
	}
	return nil
}

// Rename moves a file or directory tree.
func (fs *FileSystem) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)
	if err := fs.errors[oldPath]; err != nil {
		return err
	}
	_, isFile := fs.files[oldPath]
	if !isFile && !fs.dirs[oldPath] {
		return fmt.Errorf("%s: %w", oldPath, os.ErrNotExist)
	}
	prefix := oldPath + string(filepath.Separator)
	movedFiles := make(map[string][]byte)
	for f, data := range fs.files {
		if f == oldPath || strings.HasPrefix(f, prefix) {
			movedFiles[newPath+strings.TrimPrefix(f, oldPath)] = data
			delete(fs.files, f)
		}
	}
	movedDirs := make([]string, 0)
	for d := range fs.dirs {
		if d == oldPath || strings.HasPrefix(d, prefix) {
			movedDirs = append(movedDirs, newPath+strings.TrimPrefix(d, oldPath))
			delete(fs.dirs, d)
		}
	}
	for f, data := range movedFiles {
		fs.files[f] = data
	}
	for _, d := range movedDirs {
		fs.dirs[d] = true
	}
	return nil
}

// GetFileInfo returns synthetic metadata.
func (fs *FileSystem) GetFileInfo(path string) (ports.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	path = filepath.Clean(path)
	if data, ok := fs.files[path]; ok {
		return ports.FileInfo{Size: int64(len(data)), Mode: 0o644, ModTime: time.Unix(0, 0)}, nil
	}
	if fs.dirs[path] {
		return ports.FileInfo{Mode: os.ModeDir | 0o755, ModTime: time.Unix(0, 0), IsDir: true}, nil
	}
	return ports.FileInfo{}, fmt.Errorf("%s: %w", path, os.ErrNotExist)
}

var _ ports.FileSystem = (*FileSystem)(nil)
