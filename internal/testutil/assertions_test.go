package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

func TestAssertFileHelpers(t *testing.T) {
	t.Parallel()

	path := WriteTempFile(t, t.TempDir(), "build.log", "make all\nexit code 0\n")

	mockT := &testing.T{}
	AssertFileExists(mockT, path)
	AssertFileContains(mockT, path, "exit code 0")
	assert.False(t, mockT.Failed())
}

func TestAssertErrorKind(t *testing.T) {
	t.Parallel()

	mockT := &testing.T{}
	AssertErrorKind(mockT, builderr.KindConfiguration, builderr.Configuration("bad settings"))
	AssertErrorKind(mockT, builderr.KindInterrupted, context.Canceled)
	AssertErrorKind(mockT, builderr.KindFramework, errors.New("unclassified"))
	assert.False(t, mockT.Failed())
}

func TestAssertExitCode(t *testing.T) {
	t.Parallel()

	mockT := &testing.T{}
	AssertExitCode(mockT, builderr.ExitSuccess, nil)
	AssertExitCode(mockT, builderr.ExitBuildError, builderr.Build("make failed"))
	AssertExitCode(mockT, builderr.ExitInterrupted, builderr.Interrupted(context.Canceled))
	assert.False(t, mockT.Failed())
}
