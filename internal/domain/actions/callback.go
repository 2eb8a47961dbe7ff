package actions

import (
	"context"

	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
)

// Callback runs a Go function as an action. Plugins use it to hook their
// own logic into a step.
type Callback struct {
	description string
	fn          func(ctx context.Context) (string, error)
}

// NewCallback creates a Callback action. The string returned by fn is
// recorded as the action's output; a returned error fails the action.
func NewCallback(description string, fn func(ctx context.Context) (string, error)) *Callback {
	return &Callback{description: description, fn: fn}
}

// Description describes the action.
func (c *Callback) Description() string { return c.description }

// Run calls the function.
func (c *Callback) Run(ctx context.Context) (executomat.Outcome, error) {
	out, err := c.fn(ctx)
	return executomat.Outcome{Stdout: out}, err
}

var _ executomat.Action = (*Callback)(nil)
