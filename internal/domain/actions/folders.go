package actions

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// MkDir creates a directory and its parents.
type MkDir struct {
	fs   ports.FileSystem
	path string
}

// NewMkDir creates a MkDir action.
func NewMkDir(fs ports.FileSystem, path string) *MkDir {
	return &MkDir{fs: fs, path: path}
}

// Path returns the directory to create.
func (a *MkDir) Path() string { return a.path }

// Description describes the action.
func (a *MkDir) Description() string {
	return fmt.Sprintf("create folder %s", a.path)
}

// Run creates the directory.
func (a *MkDir) Run(_ context.Context) (executomat.Outcome, error) {
	if err := a.fs.MkdirAll(a.path, 0o755); err != nil {
		return executomat.Outcome{}, builderr.Wrap(builderr.KindBuild, err, "cannot create folder "+a.path)
	}
	return executomat.Outcome{Stdout: fmt.Sprintf("created %s\n", a.path)}, nil
}

// RmDir removes a directory tree. A missing directory is not an error.
type RmDir struct {
	fs   ports.FileSystem
	path string
}

// NewRmDir creates a RmDir action.
func NewRmDir(fs ports.FileSystem, path string) *RmDir {
	return &RmDir{fs: fs, path: path}
}

// Path returns the directory to remove.
func (a *RmDir) Path() string { return a.path }

// Description describes the action.
func (a *RmDir) Description() string {
	return fmt.Sprintf("remove folder %s", a.path)
}

// Run removes the directory.
func (a *RmDir) Run(_ context.Context) (executomat.Outcome, error) {
	if !a.fs.Exists(a.path) {
		return executomat.Outcome{Stdout: fmt.Sprintf("%s does not exist\n", a.path)}, nil
	}
	if err := a.fs.RemoveAll(a.path); err != nil {
		return executomat.Outcome{}, builderr.Wrap(builderr.KindBuild, err, "cannot remove folder "+a.path)
	}
	return executomat.Outcome{Stdout: fmt.Sprintf("removed %s\n", a.path)}, nil
}

var (
	_ executomat.Action = (*MkDir)(nil)
	_ executomat.Action = (*RmDir)(nil)
)
