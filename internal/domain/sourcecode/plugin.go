package sourcecode

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/felixgeelhaar/makeomatic/internal/domain/actions"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
	"github.com/felixgeelhaar/makeomatic/internal/ports"
)

// PluginName is the name of the source code plugin.
const PluginName = "scm"

// Print mode commands.
const (
	PrintCurrentRevision = "current-revision"
	PrintRevisionsSince  = "revisions-since"
)

// NewRevisionBuildType is the build type listed for new revisions.
const NewRevisionBuildType = "c"

// Plugin attaches a provider to a project. It creates the project's source
// and temporary folders, checks out the sources and answers print mode.
type Plugin struct {
	instructions.BasePlugin
	provider Provider
	srcDir   string
	tmpDir   string
}

// NewPlugin creates the source code plugin for provider.
func NewPlugin(provider Provider) *Plugin {
	return &Plugin{
		BasePlugin: instructions.NewBasePlugin(PluginName, false),
		provider:   provider,
	}
}

// Provider returns the provider.
func (p *Plugin) Provider() Provider { return p.provider }

// SourceDir returns the folder the sources are checked out to. It is set
// during setup.
func (p *Plugin) SourceDir() string { return p.srcDir }

// TempDir returns the project's temporary folder. It is set during setup.
func (p *Plugin) TempDir() string { return p.tmpDir }

// Prepare pins the revision, branch and tag given in the settings.
func (p *Plugin) Prepare(ctx context.Context, s *instructions.Session) error {
	proj := s.Settings.Project
	p.provider.Pin(proj.Revision, proj.Branch, proj.Tag)
	ports.Log(ctx, ports.LevelDebug, "source code", ports.F("provider", p.provider.Identifier()), ports.F("location", p.provider.Describe()))
	return nil
}

// PreflightCheck verifies that the provider can work.
func (p *Plugin) PreflightCheck(ctx context.Context, _ *instructions.Session) error {
	return p.provider.Check(ctx)
}

// Setup adds the folder actions to create-folders and the checkout actions
// to checkout.
func (p *Plugin) Setup(_ context.Context, s *instructions.Session) error {
	base, err := p.Node().BaseDir()
	if err != nil {
		return builderr.Wrap(builderr.KindFramework, err, "source code plugin set up before its project")
	}
	p.srcDir = filepath.Join(base, s.Settings.Project.SourceDir)
	p.tmpDir = filepath.Join(base, s.Settings.Project.TempDir)

	exec := p.Node().Executomat()
	if create, err := exec.Step(instructions.StepCreateFolders); err == nil {
		for _, dir := range []string{p.srcDir, p.tmpDir} {
			if _, err := create.AddAction(executomat.PhaseMain, actions.NewMkDir(s.FS, dir)); err != nil {
				return err
			}
		}
	}
	checkout, err := exec.Step(instructions.StepCheckout)
	if err != nil {
		return builderr.Wrap(builderr.KindConfiguration, err, "the build sequence has no checkout step")
	}
	return p.provider.CheckoutStep(checkout, p.srcDir)
}

// Report logs the revision that was built. Failing to read it only warns.
func (p *Plugin) Report(ctx context.Context, _ *instructions.Session) error {
	rev, err := p.provider.RevisionInfo(ctx)
	if err != nil {
		if builderr.KindOf(err) == builderr.KindInterrupted {
			return err
		}
		ports.Log(ctx, ports.LevelWarn, "cannot read revision info", ports.F("location", p.provider.URL()), ports.F("error", err))
		return nil
	}
	ports.Log(ctx, ports.LevelInfo, "built revision",
		ports.F("revision", rev.ID),
		ports.F("committer", rev.CommitterName),
		ports.F("time", rev.CommitTime),
		ports.F("message", rev.Message))
	return nil
}

// Print answers "current-revision" and "revisions-since <rev> [limit]".
func (p *Plugin) Print(ctx context.Context, w io.Writer, args []string) error {
	if len(args) == 0 {
		return builderr.Configuration("print mode needs a command").
			WithDetails("use " + PrintCurrentRevision + " or " + PrintRevisionsSince)
	}
	switch args[0] {
	case PrintCurrentRevision:
		if len(args) != 1 {
			return builderr.Configuration("%s takes no arguments", PrintCurrentRevision)
		}
		rev, err := p.provider.CurrentRevision(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, rev)
		return err

	case PrintRevisionsSince:
		if len(args) < 2 || len(args) > 3 {
			return builderr.Configuration("usage: %s <revision> [limit]", PrintRevisionsSince)
		}
		limit := 0
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				return builderr.Configuration("invalid limit %q", args[2])
			}
			limit = n
		}
		revs, err := p.provider.RevisionsSince(ctx, args[1], limit)
		if err != nil {
			return err
		}
		for _, r := range revs {
			if _, err := fmt.Fprintln(w, r.Line(NewRevisionBuildType)); err != nil {
				return err
			}
		}
		return nil
	}
	return builderr.Configuration("unknown print command %q", args[0])
}

var (
	_ instructions.Plugin  = (*Plugin)(nil)
	_ instructions.Printer = (*Plugin)(nil)
)
