package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

func TestCommandRunner(t *testing.T) {
	t.Parallel()

	m := NewCommandRunner()
	m.AddResult("git", []string{"rev-parse", "HEAD"}, ports.CommandResult{Stdout: "abc123\n"})
	m.AddError("svn", []string{"info"}, errors.New("not installed"))

	res, err := m.Run(context.Background(), ports.CommandRequest{Command: "git", Args: []string{"rev-parse", "HEAD"}})
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", res.Stdout)

	_, err = m.Run(context.Background(), ports.CommandRequest{Command: "svn", Args: []string{"info"}})
	assert.EqualError(t, err, "not installed")

	_, err = m.Run(context.Background(), ports.CommandRequest{Command: "make"})
	assert.Error(t, err)

	m.SetDefault(ports.CommandResult{ExitCode: 0})
	_, err = m.Run(context.Background(), ports.CommandRequest{Command: "make", Args: []string{"-j4"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"git rev-parse HEAD", "svn info", "make", "make -j4"}, m.CommandLines())
}
