package instructions

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/makeomatic/internal/domain/actions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/domain/settings"
	"github.com/felixgeelhaar/makeomatic/internal/testutil/mocks"
)

// Build tests run actions, which snapshot and restore the process
// environment, so they do not run in parallel.

type recorder struct {
	events []string
}

func (r *recorder) add(event string) {
	r.events = append(r.events, event)
}

func (r *recorder) has(event string) bool {
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func (r *recorder) with(prefix string) []string {
	out := make([]string, 0)
	for _, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

type stepAction struct {
	step string
	fn   func(ctx context.Context) (string, error)
}

type testPlugin struct {
	BasePlugin
	rec     *recorder
	fail    map[string]error
	panicOn string
	actions []stepAction
}

func newTestPlugin(name string, rec *recorder) *testPlugin {
	return &testPlugin{
		BasePlugin: NewBasePlugin(name, false),
		rec:        rec,
		fail:       make(map[string]error),
	}
}

// onStep records "run <step> <node>" when the step runs and returns err.
func (p *testPlugin) onStep(step string, err error) *testPlugin {
	p.actions = append(p.actions, stepAction{step: step, fn: func(context.Context) (string, error) {
		p.rec.add("run " + step + " " + p.Node().Name())
		return "", err
	}})
	return p
}

func (p *testPlugin) hook(phase string) error {
	p.rec.add(phase + " " + p.Node().Name())
	if p.panicOn == phase {
		panic("plugin bug")
	}
	return p.fail[phase]
}

func (p *testPlugin) Prepare(context.Context, *Session) error { return p.hook("prepare") }

func (p *testPlugin) PreflightCheck(context.Context, *Session) error { return p.hook("preflight") }

func (p *testPlugin) Setup(context.Context, *Session) error {
	if err := p.hook("setup"); err != nil {
		return err
	}
	for _, a := range p.actions {
		step, err := p.Node().Executomat().Step(a.step)
		if err != nil {
			return err
		}
		if _, err := step.AddAction(executomat.PhaseMain, actions.NewCallback(a.step, a.fn)); err != nil {
			return err
		}
	}
	return nil
}

func (p *testPlugin) WrapUp(context.Context, *Session) error { return p.hook("wrapup") }

func (p *testPlugin) Report(context.Context, *Session) error { return p.hook("report") }

func (p *testPlugin) Notify(context.Context, *Session) error { return p.hook("notify") }

func (p *testPlugin) ShutDown(context.Context, *Session) error { return p.hook("shutdown") }

type fixture struct {
	build   *Build
	fs      *mocks.FileSystem
	rec     *recorder
	out     *bytes.Buffer
	project *Node
}

func newFixture(t *testing.T, buildType string, mutate ...func(*settings.Settings)) *fixture {
	t.Helper()

	st := settings.Defaults()
	st.Project.BuildType = buildType
	for _, m := range mutate {
		m(st)
	}
	fs := mocks.NewFileSystem()
	out := &bytes.Buffer{}
	s := NewSession(st, WithFileSystem(fs), WithWorkDir("/work"), WithOutput(out), WithRunID("run-1"))
	b := NewBuild("nightly", s)
	project := NewProject("proj")
	require.NoError(t, b.AddProject(project))
	return &fixture{build: b, fs: fs, rec: &recorder{}, out: out, project: project}
}

func (f *fixture) plugin(t *testing.T, n *Node, name string) *testPlugin {
	t.Helper()
	p := newTestPlugin(name, f.rec)
	require.NoError(t, n.AddPlugin(p))
	return p
}

func (f *fixture) child(t *testing.T, parent *Node, name string, kind Kind) *Node {
	t.Helper()
	n := New(name, kind)
	require.NoError(t, parent.AddChild(n))
	return n
}

func TestBuild_PhaseOrder(t *testing.T) {
	f := newFixture(t, "m")
	cfg := f.child(t, f.project, "cfg", KindConfiguration)
	f.plugin(t, f.build.Root(), "root")
	f.plugin(t, f.project, "p")
	f.plugin(t, cfg, "c")

	code := f.build.Run(context.Background())
	require.Equal(t, 0, code)

	assert.Equal(t, []string{
		"prepare nightly", "prepare proj", "prepare cfg",
		"preflight nightly", "preflight proj", "preflight cfg",
		"setup nightly", "setup proj", "setup cfg",
		"wrapup nightly", "wrapup proj", "wrapup cfg",
		"report nightly", "report proj", "report cfg",
		"notify nightly", "notify proj", "notify cfg",
		"shutdown cfg", "shutdown proj", "shutdown nightly",
	}, f.rec.events)
}

func TestBuild_StepMajorExecution(t *testing.T) {
	f := newFixture(t, "m")
	a := f.child(t, f.project, "a", KindConfiguration)
	b := f.child(t, f.project, "b", KindConfiguration)
	f.plugin(t, a, "a").onStep("configure", nil).onStep("build", nil)
	f.plugin(t, b, "b").onStep("configure", nil).onStep("build", nil)

	require.Equal(t, 0, f.build.Run(context.Background()))
	assert.Equal(t, []string{"run configure a", "run configure b", "run build a", "run build b"}, f.rec.with("run"))
}

func TestBuild_CanonicalStepSequence(t *testing.T) {
	f := newFixture(t, "d")
	cfg := f.child(t, f.project, "cfg", KindConfiguration)
	require.Equal(t, 0, f.build.Run(context.Background()))

	want := settings.Defaults().StepNames()
	for _, n := range []*Node{f.build.Root(), f.project, cfg} {
		names := make([]string, 0)
		for _, s := range n.Executomat().Steps() {
			names = append(names, s.Name())
			assert.True(t, s.Enabled(), "%s enabled for daily builds", s.Name())
		}
		assert.Equal(t, want, names, n.Name())
	}
}

func TestBuild_BuildSequenceSwitches(t *testing.T) {
	f := newFixture(t, "m", func(s *settings.Settings) {
		s.Project.BuildSequenceSwitches = "disable-build"
	})
	cfg := f.child(t, f.project, "cfg", KindConfiguration)
	f.plugin(t, cfg, "c").onStep("build", nil).onStep("install", nil)

	require.Equal(t, 0, f.build.Run(context.Background()))
	assert.Equal(t, []string{"run install cfg"}, f.rec.with("run"))
	step, err := cfg.Executomat().Step("build")
	require.NoError(t, err)
	assert.Equal(t, executomat.StatusSkippedDisabled, step.Status())
}

func TestBuild_SiblingConfigurationsAreIsolated(t *testing.T) {
	f := newFixture(t, "m")
	env := f.child(t, f.project, "env", KindEnvironment)
	a := f.child(t, env, "a", KindConfiguration)
	b := f.child(t, env, "b", KindConfiguration)
	f.plugin(t, a, "a").onStep("build", builderr.Build("compile error")).onStep("install", nil)
	f.plugin(t, b, "b").onStep("build", nil).onStep("install", nil)

	code := f.build.Run(context.Background())

	assert.Equal(t, builderr.ExitBuildError, code)
	assert.True(t, a.Failed())
	assert.False(t, b.Failed())
	assert.True(t, f.rec.has("run build b"))
	assert.True(t, f.rec.has("run install b"), "a sibling's failure does not skip b")
	assert.False(t, f.rec.has("run install a"))
}

func TestBuild_ProjectFailureSkipsConfigurations(t *testing.T) {
	f := newFixture(t, "m")
	env := f.child(t, f.project, "env", KindEnvironment)
	a := f.child(t, env, "a", KindConfiguration)
	b := f.child(t, env, "b", KindConfiguration)
	f.plugin(t, f.project, "scm").onStep("checkout", builderr.Build("repository unreachable"))
	f.plugin(t, a, "a").onStep("build", nil).onStep("cleanup", nil)
	f.plugin(t, b, "b").onStep("build", nil).onStep("cleanup", nil)

	code := f.build.Run(context.Background())

	assert.Equal(t, builderr.ExitBuildError, code)
	assert.False(t, f.rec.has("run build a"))
	assert.False(t, f.rec.has("run build b"))
	assert.True(t, f.rec.has("run cleanup a"), "cleanup runs after failures")
	assert.True(t, f.rec.has("run cleanup b"))

	step, err := b.Executomat().Step("build")
	require.NoError(t, err)
	assert.Equal(t, executomat.StatusSkippedPreviousError, step.Status())
}

func TestBuild_SetupErrorStillShutsDown(t *testing.T) {
	f := newFixture(t, "m")
	a := f.child(t, f.project, "a", KindConfiguration)
	b := f.child(t, f.project, "b", KindConfiguration)
	f.plugin(t, f.build.Root(), "root")
	f.plugin(t, f.project, "p")
	f.plugin(t, a, "a").onStep("build", nil)
	pb := f.plugin(t, b, "b")
	pb.fail["setup"] = builderr.Configuration("compiler not found")

	code := f.build.Run(context.Background())

	assert.Equal(t, builderr.ExitConfigurationError, code)
	assert.True(t, builderr.IsConfiguration(f.build.Session().Err()))
	assert.Empty(t, f.rec.with("run"), "execute never starts")
	assert.Equal(t, []string{"shutdown a", "shutdown proj", "shutdown nightly"}, f.rec.with("shutdown"))
	assert.False(t, b.IsSetUp())
}

func TestBuild_ShutdownErrorsDoNotChangeExitCode(t *testing.T) {
	f := newFixture(t, "m")
	p := f.plugin(t, f.project, "p")
	p.fail["shutdown"] = builderr.Framework("socket close")

	assert.Equal(t, 0, f.build.Run(context.Background()))
	assert.True(t, f.rec.has("shutdown proj"))
}

func TestBuild_PanicInHookStillShutsDown(t *testing.T) {
	f := newFixture(t, "m")
	a := f.child(t, f.project, "a", KindConfiguration)
	f.plugin(t, f.build.Root(), "root")
	f.plugin(t, f.project, "p")
	f.plugin(t, a, "a").panicOn = "setup"

	var code int
	require.NotPanics(t, func() { code = f.build.Run(context.Background()) })

	assert.Equal(t, builderr.ExitFrameworkError, code)
	err := f.build.Session().Err()
	require.Error(t, err)
	assert.Equal(t, builderr.KindFramework, builderr.KindOf(err))
	assert.Contains(t, err.Error(), "plugin bug")
	assert.True(t, f.rec.has("shutdown proj"))
	assert.True(t, f.rec.has("shutdown nightly"))
}

func TestBuild_PanicInShutdownIsLogged(t *testing.T) {
	f := newFixture(t, "m")
	f.plugin(t, f.build.Root(), "root")
	f.plugin(t, f.project, "p").panicOn = "shutdown"

	var code int
	require.NotPanics(t, func() { code = f.build.Run(context.Background()) })

	assert.Equal(t, 0, code)
	assert.True(t, f.rec.has("shutdown proj"))
	assert.True(t, f.rec.has("shutdown nightly"), "the remaining nodes still shut down")
}

func TestBuild_DisableShutdown(t *testing.T) {
	f := newFixture(t, "m", func(s *settings.Settings) { s.Build.DisableShutdown = true })
	f.plugin(t, f.project, "p")

	assert.Equal(t, 0, f.build.Run(context.Background()))
	assert.Empty(t, f.rec.with("shutdown"))
}

func TestBuild_PreflightFailures(t *testing.T) {
	t.Run("optional plugin is disabled", func(t *testing.T) {
		f := newFixture(t, "m")
		p := f.plugin(t, f.project, "doxygen")
		p.SetOptional(true)
		p.fail["preflight"] = builderr.Configuration("doxygen missing")

		assert.Equal(t, 0, f.build.Run(context.Background()))
		assert.False(t, p.Enabled())
		assert.False(t, f.rec.has("setup proj"))
		assert.False(t, f.rec.has("shutdown proj"))
	})

	t.Run("required plugin aborts", func(t *testing.T) {
		f := newFixture(t, "m")
		p := f.plugin(t, f.project, "cmake")
		p.fail["preflight"] = builderr.Build("cmake missing")

		assert.Equal(t, builderr.ExitConfigurationError, f.build.Run(context.Background()))
		assert.Contains(t, f.build.Session().Err().Error(), "cmake missing")
		assert.False(t, f.rec.has("setup proj"))
	})
}

func TestBuild_FolderLayout(t *testing.T) {
	f := newFixture(t, "h")
	a := f.child(t, f.project, "debug", KindConfiguration)
	b := f.child(t, f.project, "release build", KindConfiguration)

	require.Equal(t, 0, f.build.Run(context.Background()))

	root, _ := f.build.Root().BaseDir()
	assert.Equal(t, "/work/nightly", root)
	logDir, _ := f.build.Root().LogDir()
	assert.Equal(t, "/work/nightly/log", logDir)

	pb, _ := f.project.BaseDir()
	assert.Equal(t, "/work/nightly/1_proj", pb)
	ab, _ := a.BaseDir()
	assert.Equal(t, "/work/nightly/1_proj/1_debug", ab)
	bb, _ := b.BaseDir()
	assert.Equal(t, "/work/nightly/1_proj/2_release_build", bb)
	bl, _ := b.LogDir()
	assert.Equal(t, "/work/nightly/log/1_proj/2_release_build", bl)
	bp, _ := b.PackagesDir()
	assert.Equal(t, "/work/nightly/packages/1_proj/2_release_build", bp)

	for _, d := range []string{
		"/work/nightly/packages",
		"/work/nightly/log/1_proj/1_debug",
		"/work/nightly/packages/1_proj/2_release_build",
		"/work/nightly/1_proj/2_release_build/build",
		"/work/nightly/1_proj/2_release_build/install",
	} {
		assert.True(t, f.fs.IsDir(d), d)
	}
	assert.True(t, f.fs.Exists("/work/nightly/log/1_proj/2_release_build/create-folders.log"))
}

func TestBuild_CleanupRemovesFolders(t *testing.T) {
	f := newFixture(t, "m")
	f.child(t, f.project, "debug", KindConfiguration)

	require.Equal(t, 0, f.build.Run(context.Background()))
	assert.False(t, f.fs.IsDir("/work/nightly/1_proj"))
	assert.True(t, f.fs.IsDir("/work/nightly/log/1_proj/1_debug"), "logs survive cleanup")
}

func TestBuild_StaleBaseDir(t *testing.T) {
	stamp := time.Unix(0, 0).Format(staleDirLayout)

	t.Run("moved aside", func(t *testing.T) {
		f := newFixture(t, "h")
		f.fs.AddDir("/work/nightly")
		f.fs.AddFile("/work/nightly/old.txt", "x")
		f.fs.AddDir("/work/nightly-" + stamp)

		require.Equal(t, 0, f.build.Run(context.Background()))
		assert.True(t, f.fs.Exists("/work/nightly-"+stamp+"__1/old.txt"))
		assert.False(t, f.fs.Exists("/work/nightly/old.txt"))
	})

	t.Run("removed", func(t *testing.T) {
		f := newFixture(t, "h", func(s *settings.Settings) { s.Build.MoveOldDirectories = false })
		f.fs.AddDir("/work/nightly")
		f.fs.AddFile("/work/nightly/old.txt", "x")

		require.Equal(t, 0, f.build.Run(context.Background()))
		assert.False(t, f.fs.Exists("/work/nightly/old.txt"))
		assert.True(t, f.fs.IsDir("/work/nightly/log"))
	})

	t.Run("cannot create", func(t *testing.T) {
		f := newFixture(t, "h")
		f.fs.FailOn("/work/nightly/log", assert.AnError)

		assert.Equal(t, builderr.ExitConfigurationError, f.build.Run(context.Background()))
	})
}

func TestBuild_Interrupted(t *testing.T) {
	f := newFixture(t, "m")
	cfg := f.child(t, f.project, "cfg", KindConfiguration)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := f.plugin(t, cfg, "c")
	p.actions = append(p.actions, stepAction{step: "build", fn: func(context.Context) (string, error) {
		cancel()
		return "", nil
	}})
	p.onStep("install", nil)

	code := f.build.Run(ctx)

	assert.Equal(t, builderr.ExitInterrupted, code)
	assert.False(t, f.rec.has("run install cfg"))
	assert.True(t, f.rec.has("shutdown cfg"), "shutdown runs after an interrupt")
}

func TestBuild_MinimumVersion(t *testing.T) {
	f := newFixture(t, "m", func(s *settings.Settings) { s.Mom.MinimumVersion = "99.0.0" })
	f.plugin(t, f.project, "p")

	assert.Equal(t, builderr.ExitConfigurationError, f.build.Run(context.Background()))
	assert.Empty(t, f.rec.events)
}

func TestBuild_Describe(t *testing.T) {
	f := newFixture(t, "m", func(s *settings.Settings) { s.Script.RunMode = settings.RunModeDescribe })
	cfg := f.child(t, f.project, "debug", KindConfiguration)
	f.plugin(t, cfg, "make").onStep("build", nil)

	require.Equal(t, 0, f.build.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Build: nightly\n")
	assert.Contains(t, out, "    Project: proj\n")
	assert.Contains(t, out, "        Configuration: debug\n")
	assert.Contains(t, out, "base dir: /work/nightly/1_proj/1_debug")
	assert.Contains(t, out, "plugin make")
	assert.Contains(t, out, "step create-folders (enabled)")
	assert.Contains(t, out, "create folder /work/nightly/1_proj/1_debug/build")
	assert.Contains(t, out, "step cleanup (enabled, runs after failures)")
	assert.Empty(t, f.rec.with("run"), "describe does not execute")
	assert.Empty(t, f.fs.Dirs(), "describe does not touch the file system")
}

func TestBuild_Query(t *testing.T) {
	f := newFixture(t, "m", func(s *settings.Settings) { s.Script.RunMode = settings.RunModeQuery })
	f.plugin(t, f.project, "p")
	f.build.SetArgs([]string{"project.buildtype", "build.moveolddirectories"})

	require.Equal(t, 0, f.build.Run(context.Background()))
	assert.Equal(t, "project.buildtype: m\nbuild.moveolddirectories: true\n", f.out.String())
	assert.False(t, f.rec.has("preflight proj"), "query mode skips preflight checks")

	f2 := newFixture(t, "m", func(s *settings.Settings) { s.Script.RunMode = settings.RunModeQuery })
	f2.build.SetArgs([]string{"no.such.key"})
	assert.Equal(t, builderr.ExitConfigurationError, f2.build.Run(context.Background()))
}

type stubPrinter struct{}

func (stubPrinter) Print(_ context.Context, w io.Writer, args []string) error {
	_, err := io.WriteString(w, "printed "+strings.Join(args, " "))
	return err
}

func TestBuild_Print(t *testing.T) {
	f := newFixture(t, "m", func(s *settings.Settings) { s.Script.RunMode = settings.RunModePrint })
	f.build.SetPrinter(stubPrinter{})
	f.build.SetArgs([]string{"current-revision"})

	require.Equal(t, 0, f.build.Run(context.Background()))
	assert.Equal(t, "printed current-revision", f.out.String())

	f2 := newFixture(t, "m", func(s *settings.Settings) { s.Script.RunMode = settings.RunModePrint })
	assert.Equal(t, builderr.ExitConfigurationError, f2.build.Run(context.Background()))
}

func TestBuild_Report(t *testing.T) {
	f := newFixture(t, "m")
	cfg := f.child(t, f.project, "cfg", KindConfiguration)
	f.plugin(t, cfg, "c").onStep("build", builderr.Build("broken"))

	require.Equal(t, builderr.ExitBuildError, f.build.Run(context.Background()))

	rep := f.build.Report()
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, builderr.ExitBuildError, rep.ExitCode)
	assert.Equal(t, "m", rep.BuildType)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
	require.Len(t, rep.Root.Children, 1)
	cfgRep := rep.Root.Children[0].Children[0]
	assert.Equal(t, "nightly/proj/cfg", cfgRep.Path)
	assert.True(t, cfgRep.Failed)
	assert.Equal(t, "build", cfgRep.Executomat.FailedStep)
	assert.Equal(t, []string{"c"}, cfgRep.Plugins)
}

func TestSession_FirstReturnCodeWins(t *testing.T) {
	t.Parallel()

	s := NewSession(nil, WithWorkDir("/work"))
	assert.False(t, s.RegisterReturnCode(0))
	assert.True(t, s.RegisterReturnCode(builderr.ExitConfigurationError))
	assert.False(t, s.RegisterReturnCode(builderr.ExitBuildError))
	assert.Equal(t, builderr.ExitConfigurationError, s.ReturnCode())

	first := builderr.Framework("first")
	s2 := NewSession(nil)
	s2.RegisterError(context.Background(), first)
	s2.RegisterError(context.Background(), builderr.Build("second"))
	assert.Same(t, first, s2.Err())
	assert.Equal(t, builderr.ExitFrameworkError, s2.ReturnCode())
}
