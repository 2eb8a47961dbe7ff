package procstate

import (
	"os"
	"strings"
)

// PathMode selects where a value is inserted into a path list.
type PathMode string

const (
	// Append adds the value to the end of the list.
	Append PathMode = "append"
	// Prepend adds the value to the front of the list.
	Prepend PathMode = "prepend"
)

// AddToPathList inserts value into a separator delimited list. Existing
// occurrences of value and empty elements are removed first, so the value
// appears exactly once.
func AddToPathList(list, value string, mode PathMode) string {
	sep := string(os.PathListSeparator)
	parts := make([]string, 0)
	for _, p := range strings.Split(list, sep) {
		if p == "" || p == value {
			continue
		}
		parts = append(parts, p)
	}
	if value != "" {
		if mode == Prepend {
			parts = append([]string{value}, parts...)
		} else {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, sep)
}

// AddToPathVariable updates the environment variable name with
// AddToPathList.
func AddToPathVariable(name, value string, mode PathMode) error {
	return os.Setenv(name, AddToPathList(os.Getenv(name), value, mode))
}
