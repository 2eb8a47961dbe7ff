package instructions

import (
	"time"

	"github.com/felixgeelhaar/makeomatic/internal/domain/executomat"
)

// NodeReport is the result of one node and its subtree.
type NodeReport struct {
	Name       string
	Path       string
	Kind       Kind
	BaseDir    string
	Failed     bool
	Plugins    []string
	Executomat executomat.Report
	Children   []NodeReport
}

// RunReport is the result of a whole run.
type RunReport struct {
	RunID      string
	BuildType  string
	RunMode    string
	ExitCode   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Root       NodeReport
}

// Duration returns how long the run took so far.
func (r RunReport) Duration() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}

// Summary builds the report of the node and its subtree.
func (n *Node) Summary() NodeReport {
	rep := NodeReport{
		Name:       n.name,
		Path:       n.Path(),
		Kind:       n.kind,
		BaseDir:    n.baseDir,
		Failed:     n.Failed(),
		Plugins:    make([]string, 0, len(n.plugins)),
		Executomat: n.exec.Report(),
		Children:   make([]NodeReport, 0, len(n.children)),
	}
	for _, p := range n.plugins {
		name := p.Name()
		if !p.Enabled() {
			name += " (disabled)"
		}
		rep.Plugins = append(rep.Plugins, name)
	}
	for _, c := range n.children {
		rep.Children = append(rep.Children, c.Summary())
	}
	return rep
}

// NewRunReport reports the tree of root in the state recorded by s.
func NewRunReport(root *Node, s *Session) RunReport {
	rep := RunReport{
		RunID:      s.RunID,
		BuildType:  s.BuildType(),
		RunMode:    s.RunMode(),
		ExitCode:   s.ReturnCode(),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Root:       root.Summary(),
	}
	if err := s.Err(); err != nil {
		rep.Error = err.Error()
	}
	return rep
}
