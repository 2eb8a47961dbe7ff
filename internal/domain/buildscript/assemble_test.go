package buildscript

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/makeomatic/internal/adapters/filesystem"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/environments"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/domain/sourcecode"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
	"github.com/felixgeelhaar/makeomatic/internal/testutil"
	"github.com/felixgeelhaar/makeomatic/internal/testutil/mocks"
)

// Builds change the working directory of the process while actions run,
// so these tests do not run in parallel.

const compileScript = `
name: nightly
project:
  name: hello
  plugins:
    - command: cmake
      minimumversion: "3.10"
      steps:
        configure:
          - ["-S", "${SRC_DIR}", "-B", "${TMP_DIR}/cmake"]
  steps:
    build:
      - shell: make all
        description: compile
  configurations:
    - name: debug
      steps:
        build:
          - command: [make, -C, "${BUILD_DIR}", debug]
        test:
          - mkdir: reports
`

type scriptRun struct {
	build  *instructions.Build
	runner *mocks.CommandRunner
	work   string
	out    *bytes.Buffer
}

func assembleScript(t *testing.T, script string, configure func(*settings.Settings), opts ...AssembleOption) *scriptRun {
	t.Helper()

	sc, err := Parse([]byte(script))
	require.NoError(t, err)

	st := settings.Defaults()
	st.Project.BuildType = "h"
	if configure != nil {
		configure(st)
	}
	runner := mocks.NewCommandRunner()
	runner.AddResult("cmake", []string{"--version"}, ports.CommandResult{Stdout: "cmake version 3.28.1\n"})
	runner.SetDefault(ports.CommandResult{})

	work := t.TempDir()
	out := &bytes.Buffer{}
	s := instructions.NewSession(st,
		instructions.WithFileSystem(filesystem.NewRealFileSystem()),
		instructions.WithRunner(runner),
		instructions.WithWorkDir(work),
		instructions.WithOutput(out))
	b, err := sc.Assemble(s, opts...)
	require.NoError(t, err)
	return &scriptRun{build: b, runner: runner, work: work, out: out}
}

func TestAssemble_Tree(t *testing.T) {
	r := assembleScript(t, exampleScript, nil)

	root := r.build.Root()
	assert.Equal(t, "nightly", root.Name())
	require.Len(t, root.Children(), 1)
	project := root.Children()[0]
	assert.Equal(t, instructions.KindProject, project.Kind())

	names := make([]string, 0)
	for _, p := range project.Plugins() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{sourcecode.PluginName, "cmake", StepsPluginName}, names)
	assert.True(t, project.Plugins()[1].Optional())

	children := project.Children()
	require.Len(t, children, 2)
	assert.Equal(t, instructions.KindConfiguration, children[0].Kind())
	assert.Equal(t, instructions.KindEnvironments, children[1].Kind())

	st := r.build.Session().Settings
	assert.Equal(t, "hello", st.Project.Name)
	assert.Equal(t, "0.4", st.Mom.MinimumVersion)
}

func TestAssemble_RunsScriptedActions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell actions use sh")
	}
	r := assembleScript(t, compileScript, nil)

	require.Equal(t, 0, r.build.Run(context.Background()), "%v", r.build.Session().Err())

	projectDir := filepath.Join(r.work, "nightly", "1_hello")
	debugDir := filepath.Join(projectDir, "1_debug")
	assert.Equal(t, []string{
		"cmake --version",
		"cmake -S " + filepath.Join(projectDir, "src") + " -B " + filepath.Join(projectDir, "tmp") + "/cmake",
		"sh -c make all",
		"make -C " + filepath.Join(debugDir, "build") + " debug",
	}, r.runner.CommandLines())
	assert.DirExists(t, filepath.Join(debugDir, "build", "reports"))

	project := r.build.Root().Children()[0]
	cmake, ok := project.Plugins()[0].(*CommandPlugin)
	require.True(t, ok)
	assert.Equal(t, "3.28.1", cmake.Version())

	build, err := project.Executomat().Step("build")
	require.NoError(t, err)
	records := build.Actions(executomat.PhaseMain)
	require.Len(t, records, 1)
	assert.Equal(t, "compile", records[0].Description())
	assert.Equal(t, projectDir, records[0].WorkDir())
}

func TestAssemble_ToolVersionCheck(t *testing.T) {
	tests := []struct {
		name     string
		optional string
		version  string
		wantCode int
		wantRuns bool
	}{
		{"recent enough", "false", "cmake version 3.28.1", 0, true},
		{"too old and required", "false", "cmake version 2.8.12", builderr.ExitConfigurationError, false},
		{"too old and optional", "true", "cmake version 2.8.12", 0, false},
		{"no version and required", "false", "cmake", builderr.ExitConfigurationError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := strings.Replace(compileScript, "    - command: cmake\n",
				"    - command: cmake\n      optional: "+tt.optional+"\n", 1)
			r := assembleScript(t, script, func(st *settings.Settings) { st.Project.BuildType = "e" })
			r.runner.AddResult("cmake", []string{"--version"}, ports.CommandResult{Stdout: tt.version + "\n"})

			assert.Equal(t, tt.wantCode, r.build.Run(context.Background()))

			project := r.build.Root().Children()[0]
			configure, err := project.Executomat().Step("configure")
			require.NoError(t, err)
			assert.Equal(t, tt.wantRuns, configure.HasActions())
		})
	}
}

func TestAssemble_ToolMissing(t *testing.T) {
	r := assembleScript(t, compileScript, nil)
	r.runner.AddError("cmake", []string{"--version"}, os.ErrNotExist)

	assert.Equal(t, builderr.ExitConfigurationError, r.build.Run(context.Background()))
	testutil.AssertErrorKind(t, builderr.KindConfiguration, r.build.Session().Err())
}

func TestAssemble_UnknownStep(t *testing.T) {
	r := assembleScript(t, "project:\n  name: hello\n  steps:\n    compile:\n      - shell: make\n", nil)

	assert.Equal(t, builderr.ExitConfigurationError, r.build.Run(context.Background()))
	assert.Contains(t, r.build.Session().Err().Error(), "outside the build sequence")
}

func TestAssemble_LocalSourceFromSettings(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell actions use sh")
	}
	src := t.TempDir()
	testutil.WriteTempFile(t, src, "CMakeLists.txt", "project(hello)\n")

	r := assembleScript(t, "project:\n  name: hello\n  source: https://example.com/unused.git\n  steps:\n    build:\n      - shell: make\n",
		func(st *settings.Settings) { st.Project.SourceLocation = "local:" + src })

	require.Equal(t, 0, r.build.Run(context.Background()), "%v", r.build.Session().Err())

	srcDir := filepath.Join(r.work, "hello", "1_hello", "src")
	assert.FileExists(t, filepath.Join(srcDir, "CMakeLists.txt"))
	calls := r.runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sh", calls[0].Command)

	build, err := r.build.Root().Children()[0].Executomat().Step("build")
	require.NoError(t, err)
	assert.Equal(t, srcDir, build.Actions(executomat.PhaseMain)[0].WorkDir())
}

func TestAssemble_PrintUsesSourceProvider(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTempFile(t, src, "main.c", "int main() { return 0; }\n")

	r := assembleScript(t, "project:\n  name: hello\n  source: local:"+src+"\n", func(st *settings.Settings) {
		st.Script.RunMode = settings.RunModePrint
	})
	r.build.SetArgs([]string{sourcecode.PrintCurrentRevision})

	require.Equal(t, 0, r.build.Run(context.Background()), "%v", r.build.Session().Err())
	assert.Len(t, strings.TrimSpace(r.out.String()), 64)
}

func TestAssemble_EnvironmentsExpandConfigurations(t *testing.T) {
	envRoot := t.TempDir()
	testutil.EnvironmentTree(t, envRoot, map[string]*testutil.DependencyBuilder{
		"qt-4.8":  testutil.NewDependency(),
		"qt-5.15": testutil.NewDependency(),
	})

	r := assembleScript(t, exampleScript, func(st *settings.Settings) {
		st.Project.BuildType = "d"
		st.Project.SourceLocation = "local:" + t.TempDir()
		st.Script.RunMode = settings.RunModeDescribe
	}, WithEnvironmentOptions(environments.WithBaseDir(envRoot)))

	require.Equal(t, 0, r.build.Run(context.Background()), "%v", r.build.Session().Err())

	releases := 0
	var steps []string
	_ = r.build.Root().Walk(func(n *instructions.Node) error {
		if n.Name() != "release" {
			return nil
		}
		releases++
		assert.Equal(t, instructions.KindEnvironment, n.Parent().Kind())
		step, err := n.Executomat().Step("build")
		require.NoError(t, err)
		for _, rec := range step.Actions(executomat.PhasePre) {
			steps = append(steps, rec.Description())
		}
		return nil
	})
	assert.Equal(t, 2, releases)
	require.Len(t, steps, 2)
	assert.NotEqual(t, steps[0], steps[1], "each environment builds in its own folder")
	assert.Contains(t, r.out.String(), "release")
}

func TestFolders_Expand(t *testing.T) {
	t.Parallel()

	f := &folders{
		vars:    map[string]string{VarBaseDir: "/work/p", VarBuildDir: "/work/p/build"},
		workDir: "/work/p/build",
	}
	assert.Equal(t, "/work/p/build/out ${UNKNOWN}", f.Expand("${BUILD_DIR}/out ${UNKNOWN}"))
	assert.Equal(t, "plain", f.Expand("plain"))
	assert.Equal(t, "/work/p/build", f.dir(""))
	assert.Equal(t, "/work/p/build/reports", f.dir("reports"))
	assert.Equal(t, "/work/p", f.dir("${BASE_DIR}"))
}

func TestParsePhase(t *testing.T) {
	t.Parallel()

	tests := map[string]executomat.Phase{
		"":     executomat.PhaseMain,
		"main": executomat.PhaseMain,
		"PRE":  executomat.PhasePre,
		"post": executomat.PhasePost,
	}
	for in, want := range tests {
		got, err := parsePhase(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := parsePhase("later")
	assert.ErrorIs(t, err, ErrUnknownPhase)
}
