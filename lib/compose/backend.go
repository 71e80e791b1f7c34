package compose

import "strings"

// Marker attributes shared by the server output, the hydration matcher and
// the client dispatcher.
const (
	AttrRoot     = "data-summon-root"
	AttrID       = "data-summon-id"
	AttrType     = "data-summon-type"
	AttrAction   = "data-summon-action"
	AttrEvent    = "data-summon-event"
	AttrHydrated = "data-summon-hydrated"
	AttrError    = "data-summon-error"
)

// PayloadID returns the element id of the hydration payload block for a root.
func PayloadID(rootID string) string {
	return "summon-state-" + rootID
}

// Handle identifies a node emitted by a backend. Backends that do not keep
// nodes around return nil.
type Handle any

// Checkpoint is an opaque backend position used to discard partial output.
type Checkpoint any

// Attr is one attribute of a node.
type Attr struct {
	Name  string
	Value string
}

// StyleProp is one inline style declaration.
type StyleProp struct {
	Name  string
	Value string
}

// NodeSpec describes one renderable unit.
type NodeSpec struct {
	Tag   string
	Attrs []Attr
	Style []StyleProp

	// ComponentID, when set, marks the node as the element of an island.
	ComponentID string
}

// StyleString renders the style declarations as an inline style value.
func (s NodeSpec) StyleString() string {
	if len(s.Style) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range s.Style {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(p.Name)
		sb.WriteString(": ")
		sb.WriteString(p.Value)
	}
	return sb.String()
}

// Attributes returns the full ordered attribute list a backend must emit:
// the component marker first, then Attrs, then the inline style.
func (s NodeSpec) Attributes() []Attr {
	out := make([]Attr, 0, len(s.Attrs)+2)
	if s.ComponentID != "" {
		out = append(out, Attr{Name: AttrID, Value: s.ComponentID})
	}
	out = append(out, s.Attrs...)
	if style := s.StyleString(); style != "" {
		out = append(out, Attr{Name: "style", Value: style})
	}
	return out
}

// Backend turns composed output into markup or live nodes. Every
// implementation accepts the same call sequence, so a composition can be
// pointed at any of them without changing component code.
type Backend interface {
	// Begin starts a full pass over the root container.
	Begin()
	// End finishes a full pass.
	End()

	// OpenNode emits an element and makes it the current parent.
	OpenNode(spec NodeSpec) Handle
	// Text emits a text node under the current parent.
	Text(content string) Handle
	// CloseNode closes the current element.
	CloseNode()
	// Parent returns the current parent container.
	Parent() Handle

	// Checkpoint captures the current output position.
	Checkpoint() Checkpoint
	// Rollback discards everything emitted since cp.
	Rollback(cp Checkpoint)
}

// Restarter is implemented by backends that can re-enter output at the
// position of one scope, so a recomposition touches only that scope's nodes.
type Restarter interface {
	Backend

	// Restart positions emission inside parent. The nodes in old belong to
	// the restarting scope and may be reused; before is the first node
	// following the scope, or nil when the scope ends its container.
	Restart(parent Handle, old []Handle, before Handle)
	// FinishRestart removes the old nodes that were not reused.
	FinishRestart()
}

// Fallback is implemented by backends that bind to pre-existing output and
// can switch to plain client rendering for a subtree.
type Fallback interface {
	BeginFallback()
	EndFallback()
}
