package buildscript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/testutil"
	"github.com/felixgeelhaar/makeomatic/internal/testutil/mocks"
)

const exampleScript = `
name: nightly
minimumversion: "0.4"
project:
  name: hello
  source: https://example.com/hello.git
  branch: main
  plugins:
    - name: cmake
      command: cmake
      minimumversion: "3.10"
      optional: true
      steps:
        configure:
          - ["-S", "${SRC_DIR}", "-B", "${TMP_DIR}/cmake"]
  steps:
    build:
      - shell: make all
        description: compile
        timeout: 10m
  configurations:
    - name: debug
      steps:
        test:
          - command: [ctest, --output-on-failure]
            ignorepreviousfailure: true
  environments:
    - name: qt
      dependencies: ["qt-*"]
      optional: true
      configurations:
        - name: release
          steps:
            build:
              - mkdir: ${BUILD_DIR}/out
                phase: pre
`

func TestParse_Example(t *testing.T) {
	t.Parallel()

	sc, err := Parse([]byte(exampleScript))
	require.NoError(t, err)

	assert.Equal(t, "nightly", sc.BuildName())
	assert.Equal(t, "0.4", sc.MinimumVersion)
	assert.Equal(t, "hello", sc.Project.Name)
	assert.Equal(t, "main", sc.Project.Branch)

	require.Len(t, sc.Project.Plugins, 1)
	cmake := sc.Project.Plugins[0]
	assert.Equal(t, "cmake", cmake.DisplayName())
	assert.True(t, cmake.Optional)
	assert.Equal(t, [][]string{{"-S", "${SRC_DIR}", "-B", "${TMP_DIR}/cmake"}}, cmake.Steps["configure"])

	require.Len(t, sc.Project.Steps["build"], 1)
	assert.Equal(t, "make all", sc.Project.Steps["build"][0].Shell)
	assert.Equal(t, "10m", sc.Project.Steps["build"][0].Timeout)

	require.Len(t, sc.Project.Configurations, 1)
	assert.True(t, sc.Project.Configurations[0].Steps["test"][0].IgnorePreviousFailure)

	require.Len(t, sc.Project.Environments, 1)
	env := sc.Project.Environments[0]
	assert.Equal(t, []string{"qt-*"}, env.Dependencies)
	assert.Equal(t, "pre", env.Configurations[0].Steps["build"][0].Phase)
}

func TestScript_BuildNameDefaultsToProject(t *testing.T) {
	t.Parallel()

	sc, err := Parse([]byte("project:\n  name: hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello", sc.BuildName())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"no project name", "project:\n  source: x\n", ErrNoProjectName},
		{"unnamed configuration", "project:\n  name: p\n  configurations:\n    - steps: {}\n", ErrUnnamedNode},
		{"duplicate names", "project:\n  name: p\n  configurations:\n    - name: a\n  environments:\n    - name: a\n      dependencies: [x]\n", ErrDuplicateName},
		{"environments without dependencies", "project:\n  name: p\n  environments:\n    - name: e\n", ErrNoDependencies},
		{"two action kinds", "project:\n  name: p\n  steps:\n    build:\n      - shell: make\n        mkdir: out\n", ErrActionKind},
		{"no action kind", "project:\n  name: p\n  steps:\n    build:\n      - description: nothing\n", ErrActionKind},
		{"unknown phase", "project:\n  name: p\n  steps:\n    build:\n      - shell: make\n        phase: during\n", ErrUnknownPhase},
		{"invalid timeout", "project:\n  name: p\n  steps:\n    build:\n      - shell: make\n        timeout: soon\n", ErrInvalidTimeout},
		{"plugin without command", "project:\n  name: p\n  plugins:\n    - name: cmake\n", ErrNoPluginCommand},
		{"duplicate configuration in environments", "project:\n  name: p\n  environments:\n    - name: e\n      dependencies: [x]\n      configurations:\n        - name: c\n        - name: c\n", ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.script))
			testutil.AssertErrorKind(t, builderr.KindConfiguration, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	t.Parallel()

	for name, script := range map[string]string{
		"empty":         "",
		"unknown field": "project:\n  name: p\n  compiler: gcc\n",
		"not yaml":      "project: [unterminated\n",
	} {
		_, err := Parse([]byte(script))
		testutil.AssertErrorKind(t, builderr.KindConfiguration, err, name)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile("/scripts/hello.yaml", "project:\n  name: hello\n")

	sc, err := Load(fs, "/scripts/hello.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/scripts/hello.yaml", sc.Path)

	_, err = Load(fs, "/scripts/missing.yaml")
	testutil.AssertErrorKind(t, builderr.KindConfiguration, err)

	fs.AddFile("/scripts/broken.yaml", "project: {}\n")
	_, err = Load(fs, "/scripts/broken.yaml")
	testutil.AssertErrorKind(t, builderr.KindConfiguration, err)
	var be *builderr.Error
	require.True(t, errors.As(err, &be))
	assert.Contains(t, be.Details, "/scripts/broken.yaml")
}
