package instructions

import "context"

// Plugin hooks into the phases of the node it is attached to. Enabled
// plugins are called in every phase; disabled plugins are skipped.
type Plugin interface {
	Name() string
	Node() *Node
	Attach(n *Node)
	Enabled() bool
	SetEnabled(enabled bool)
	// Optional plugins are disabled instead of failing the run when their
	// preflight check fails.
	Optional() bool

	Prepare(ctx context.Context, s *Session) error
	PreflightCheck(ctx context.Context, s *Session) error
	Setup(ctx context.Context, s *Session) error
	WrapUp(ctx context.Context, s *Session) error
	Report(ctx context.Context, s *Session) error
	Notify(ctx context.Context, s *Session) error
	ShutDown(ctx context.Context, s *Session) error
}

// BasePlugin implements every hook as a no-op. Embed it and override the
// hooks a plugin needs.
type BasePlugin struct {
	name     string
	node     *Node
	disabled bool
	optional bool
}

// NewBasePlugin creates an enabled plugin base.
func NewBasePlugin(name string, optional bool) BasePlugin {
	return BasePlugin{name: name, optional: optional}
}

// Name returns the plugin name.
func (p *BasePlugin) Name() string { return p.name }

// Node returns the node the plugin is attached to.
func (p *BasePlugin) Node() *Node { return p.node }

// Attach sets the node the plugin belongs to.
func (p *BasePlugin) Attach(n *Node) { p.node = n }

// Enabled reports whether the plugin takes part in the phases.
func (p *BasePlugin) Enabled() bool { return !p.disabled }

// SetEnabled enables or disables the plugin.
func (p *BasePlugin) SetEnabled(enabled bool) { p.disabled = !enabled }

// Optional reports whether a failed preflight check only disables the
// plugin.
func (p *BasePlugin) Optional() bool { return p.optional }

// SetOptional marks the plugin optional.
func (p *BasePlugin) SetOptional(optional bool) { p.optional = optional }

// Prepare is a no-op.
func (p *BasePlugin) Prepare(context.Context, *Session) error { return nil }

// PreflightCheck is a no-op.
func (p *BasePlugin) PreflightCheck(context.Context, *Session) error { return nil }

// Setup is a no-op.
func (p *BasePlugin) Setup(context.Context, *Session) error { return nil }

// WrapUp is a no-op.
func (p *BasePlugin) WrapUp(context.Context, *Session) error { return nil }

// Report is a no-op.
func (p *BasePlugin) Report(context.Context, *Session) error { return nil }

// Notify is a no-op.
func (p *BasePlugin) Notify(context.Context, *Session) error { return nil }

// ShutDown is a no-op.
func (p *BasePlugin) ShutDown(context.Context, *Session) error { return nil }
