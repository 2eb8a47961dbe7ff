package builderr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_ExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want int
	}{
		{KindBuild, 1},
		{KindConfiguration, 2},
		{KindFramework, 3},
		{KindInterrupted, 130},
		{Kind(99), 3},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.kind.ExitCode())
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"build", Build("compile failed"), 1},
		{"configuration", Configuration("no compiler"), 2},
		{"wrapped configuration", fmt.Errorf("setup: %w", Configuration("bad")), 2},
		{"plain error", errors.New("boom"), 3},
		{"context canceled", context.Canceled, 130},
		{"wrapped cancel", fmt.Errorf("run: %w", context.Canceled), 130},
		{"interrupted", Interrupted(context.Canceled), 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestError_Is(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", Configuration("missing tool"))
	assert.True(t, errors.Is(err, &Error{Kind: KindConfiguration}))
	assert.False(t, errors.Is(err, &Error{Kind: KindBuild}))
	assert.True(t, IsConfiguration(err))
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	underlying := errors.New("exit status 2")
	err := Wrap(KindBuild, underlying, "make failed").
		WithPhase("execute").
		WithDetails("see build.log")

	assert.Equal(t, "make failed: exit status 2", err.Error())
	assert.Contains(t, err.Format(), "[build error] make failed")
	assert.Contains(t, err.Format(), "Phase: execute")
	assert.Contains(t, err.Format(), "Details: see build.log")
	assert.ErrorIs(t, err, underlying)
	assert.NotEmpty(t, err.Stack)
}

func TestError_WithDoesNotMutate(t *testing.T) {
	t.Parallel()

	orig := Framework("oops")
	_ = orig.WithPhase("setup")
	assert.Empty(t, orig.Phase)
}

type kindedError struct{}

func (kindedError) Error() string   { return "kinded" }
func (kindedError) ErrorKind() Kind { return KindConfiguration }

func TestKindOf_Classified(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", kindedError{})
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, 2, ExitCode(err))
}

func TestAnnotate_KeepsKind(t *testing.T) {
	t.Parallel()

	interrupted := Annotate(Interrupted(context.Canceled), "cannot fetch")
	assert.Equal(t, KindInterrupted, KindOf(interrupted))
	assert.Equal(t, 130, ExitCode(interrupted))

	plain := Annotate(errors.New("boom"), "cannot fetch")
	assert.Equal(t, KindFramework, KindOf(plain))
	assert.Equal(t, "cannot fetch: boom", plain.Error())
}
