// Package report renders the result of a run on the console.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
	"github.com/felixgeelhaar/makeomatic/internal/domain/instructions"
)

// Option configures a Reporter.
type Option func(*Reporter)

// WithActions lists every action of the executed steps, not only the
// failed ones.
func WithActions() Option {
	return func(r *Reporter) {
		r.actions = true
	}
}

// Reporter writes run reports as an indented tree of nodes and steps.
type Reporter struct {
	w       io.Writer
	styles  Styles
	actions bool
}

// New creates a reporter writing to w.
func New(w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		w:      w,
		styles: NewStyles(lipgloss.NewRenderer(w)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Write renders rep to the reporter's writer.
func (r *Reporter) Write(rep instructions.RunReport) error {
	_, err := io.WriteString(r.w, r.Render(rep))
	return err
}

// Render returns the report as text.
func (r *Reporter) Render(rep instructions.RunReport) string {
	var b strings.Builder
	title := fmt.Sprintf("Run %s (build type %s, mode %s)", rep.RunID, rep.BuildType, rep.RunMode)
	if rep.RunID == "" {
		title = fmt.Sprintf("Run (build type %s, mode %s)", rep.BuildType, rep.RunMode)
	}
	b.WriteString(r.styles.Title.Render(title))
	b.WriteString("\n")
	r.node(&b, rep.Root, 0)

	result := fmt.Sprintf("Result: exit code %d after %s", rep.ExitCode, rep.Duration().Round(time.Millisecond))
	if rep.ExitCode == 0 {
		b.WriteString(r.styles.Success.Render(result))
	} else {
		b.WriteString(r.styles.Error.Render(result))
	}
	b.WriteString("\n")
	if rep.Error != "" {
		b.WriteString(r.styles.Error.Render("Error: " + rep.Error))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Reporter) node(b *strings.Builder, n instructions.NodeReport, depth int) {
	indent := strings.Repeat("  ", depth)
	label := fmt.Sprintf("%s%s [%s]", indent, n.Name, n.Kind)
	if n.Failed {
		label += " " + r.styles.Error.Render("FAILED")
	}
	b.WriteString(r.styles.Node.Render(label))
	b.WriteString("\n")
	if len(n.Plugins) > 0 {
		b.WriteString(r.styles.Muted.Render(indent + "  plugins: " + strings.Join(n.Plugins, ", ")))
		b.WriteString("\n")
	}

	for _, s := range n.Executomat.Steps {
		r.step(b, s, indent+"  ")
	}
	for _, c := range n.Children {
		r.node(b, c, depth+1)
	}
}

func (r *Reporter) step(b *strings.Builder, s executomat.StepReport, indent string) {
	var line string
	switch {
	case s.Status == executomat.StatusSkippedDisabled:
		line = r.styles.Muted.Render(fmt.Sprintf("%s· %s (disabled)", indent, s.Name))
	case s.Status == executomat.StatusSkippedPreviousError:
		line = r.styles.Warning.Render(fmt.Sprintf("%s- %s (skipped after failure)", indent, s.Name))
	case s.Result == executomat.ResultFailure:
		line = r.styles.Error.Render(fmt.Sprintf("%s✗ %s%s", indent, s.Name, stepDetails(s)))
	case s.Result == executomat.ResultSuccess:
		line = r.styles.Success.Render(fmt.Sprintf("%s✓ %s%s", indent, s.Name, stepDetails(s)))
	case s.Status == executomat.StatusFinished:
		line = r.styles.Muted.Render(fmt.Sprintf("%s○ %s (no actions)", indent, s.Name))
	default:
		line = r.styles.Muted.Render(fmt.Sprintf("%s○ %s (not run)", indent, s.Name))
	}
	b.WriteString(line)
	b.WriteString("\n")

	for _, a := range s.Actions {
		failed := a.Result != 0
		if !failed && !(r.actions && a.Started) {
			continue
		}
		text := fmt.Sprintf("%s    %s -> %d", indent, a.Description, a.Result)
		if a.TimedOut {
			text += " (timed out)"
		}
		if failed {
			b.WriteString(r.styles.Error.Render(text))
			b.WriteString("\n")
			if msg := lastLine(a.Stderr); msg != "" {
				b.WriteString(r.styles.Muted.Render(indent + "      " + msg))
				b.WriteString("\n")
			}
			continue
		}
		b.WriteString(r.styles.Muted.Render(text))
		b.WriteString("\n")
	}
}

func stepDetails(s executomat.StepReport) string {
	parts := make([]string, 0, 2)
	if !s.StartedAt.IsZero() && !s.StoppedAt.IsZero() {
		parts = append(parts, s.StoppedAt.Sub(s.StartedAt).Round(time.Millisecond).String())
	}
	if s.Result == executomat.ResultFailure && s.LogFile != "" {
		parts = append(parts, "log: "+s.LogFile)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// PluginName is the name of the reporter plugin.
const PluginName = "console-reporter"

// Plugin prints the run report during the report phase. Attach it to the
// build root.
type Plugin struct {
	instructions.BasePlugin
	opts []Option
}

// NewPlugin creates the reporter plugin.
func NewPlugin(opts ...Option) *Plugin {
	return &Plugin{
		BasePlugin: instructions.NewBasePlugin(PluginName, true),
		opts:       opts,
	}
}

// Report writes the report of the whole tree to the session output.
func (p *Plugin) Report(_ context.Context, s *instructions.Session) error {
	rep := instructions.NewRunReport(p.Node().Root(), s)
	return New(s.Out, p.opts...).Write(rep)
}

var _ instructions.Plugin = (*Plugin)(nil)
