package instructions

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

// Tree errors.
var (
	ErrNilNode         = errors.New("node is nil")
	ErrDuplicateChild  = errors.New("node is already a child")
	ErrHasParent       = errors.New("node already has a parent")
	ErrNotAChild       = errors.New("node is not a child")
	ErrCycle           = errors.New("node cannot be its own ancestor")
	ErrNilPlugin       = errors.New("plugin is nil")
	ErrDuplicatePlugin = errors.New("plugin is already attached")
	ErrDirNotSet       = errors.New("directory is not set before the prepare phase")
)

// PluginError reports a plugin failure in one phase.
type PluginError struct {
	Plugin string
	Node   string
	Phase  string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s of %s failed in %s: %v", e.Plugin, e.Node, e.Phase, e.Err)
}

// Unwrap returns the plugin's error.
func (e *PluginError) Unwrap() error {
	return e.Err
}

// ErrorKind keeps the classification of the plugin's error.
func (e *PluginError) ErrorKind() builderr.Kind {
	return builderr.KindOf(e.Err)
}
