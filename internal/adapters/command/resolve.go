package command

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// NotFoundError reports that a command could not be located.
type NotFoundError struct {
	Command     string
	SearchPaths []string
}

func (e *NotFoundError) Error() string {
	if len(e.SearchPaths) == 0 {
		return fmt.Sprintf("command %q not found in PATH", e.Command)
	}
	return fmt.Sprintf("command %q not found in %v or PATH", e.Command, e.SearchPaths)
}

// Resolve locates an executable. Absolute names are checked directly; other
// names are looked up in searchPaths first and in PATH afterwards.
func Resolve(name string, searchPaths []string) (string, error) {
	if filepath.IsAbs(name) {
		if executableFile(name) {
			return name, nil
		}
		return "", &NotFoundError{Command: name}
	}
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, name)
		if executableFile(candidate) {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &NotFoundError{Command: name, SearchPaths: searchPaths}
	}
	return path, nil
}

func executableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return isExecutable(uint32(info.Mode().Perm()))
}
