package hydrate

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dom"
	"github.com/pthm/summon/lib/render"
)

// DiagnosticKind classifies a hydration mismatch.
type DiagnosticKind string

const (
	AttrMismatch DiagnosticKind = "attr-mismatch"
	TextMismatch DiagnosticKind = "text-mismatch"
	MissingNode  DiagnosticKind = "missing-node"
	Fallback     DiagnosticKind = "fallback"
)

// Diagnostic describes one difference between the server markup and the
// client composition. Hydration corrects it and carries on.
type Diagnostic struct {
	Kind        DiagnosticKind
	Tag         string
	ComponentID string
	Name        string
	Want        string
	Got         string
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case AttrMismatch:
		return fmt.Sprintf("%s: <%s> attribute %s = %q, want %q", d.Kind, d.Tag, d.Name, d.Got, d.Want)
	case TextMismatch:
		return fmt.Sprintf("%s: text %q, want %q", d.Kind, d.Got, d.Want)
	case MissingNode:
		return fmt.Sprintf("%s: no <%s> to claim, found %s", d.Kind, d.Tag, d.Got)
	case Fallback:
		return fmt.Sprintf("%s: island %s rendered on the client", d.Kind, d.ComponentID)
	}
	return string(d.Kind)
}

// Matcher binds a composition to server markup. It is a render.Claimer:
// existing nodes are claimed in order, skipping whitespace and comments,
// islands are found by their marker, and differences are corrected and
// reported. Nodes the composition does not claim are left in place.
type Matcher struct {
	log      *zap.Logger
	diags    []Diagnostic
	pending  bool
	replaced int
}

// NewMatcher creates a matcher that logs diagnostics to log.
func NewMatcher(log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{log: log}
}

// Diagnostics returns the mismatches found so far.
func (m *Matcher) Diagnostics() []Diagnostic { return m.diags }

// Replaced returns the number of server nodes discarded so a freshly
// rendered node could take their place.
func (m *Matcher) Replaced() int { return m.replaced }

func (m *Matcher) report(d Diagnostic) {
	m.diags = append(m.diags, d)
	m.log.Warn("hydration mismatch",
		zap.String("kind", string(d.Kind)),
		zap.String("detail", d.String()),
	)
}

// ClaimElement implements render.Claimer.
func (m *Matcher) ClaimElement(cur render.Cursor, spec compose.NodeSpec) *html.Node {
	if m.pending && spec.ComponentID != "" {
		m.pending = false
		if n := findMarker(cur, spec); n != nil {
			dom.Detach(n)
			m.replaced++
		}
		m.report(Diagnostic{Kind: Fallback, Tag: spec.Tag, ComponentID: spec.ComponentID})
		return nil
	}

	if spec.ComponentID != "" {
		if n := findMarker(cur, spec); n != nil {
			return n
		}
		m.report(Diagnostic{Kind: MissingNode, Tag: spec.Tag, ComponentID: spec.ComponentID, Got: describe(skip(cur, false))})
		return nil
	}

	n := skip(cur, false)
	if isElement(n, spec.Tag) {
		return n
	}
	m.report(Diagnostic{Kind: MissingNode, Tag: spec.Tag, Got: describe(n)})
	if n == nil {
		return nil
	}
	// A single stray server node is dropped and the one after it claimed.
	next := skip(render.Cursor{Parent: cur.Parent, Next: n.NextSibling, Stop: cur.Stop}, false)
	m.discard(n)
	if isElement(next, spec.Tag) {
		return next
	}
	return nil
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// discard removes a server node that sits where a different node was
// expected, so the fresh one replaces it instead of landing beside it.
func (m *Matcher) discard(n *html.Node) {
	if n == nil || (n.Type != html.ElementNode && n.Type != html.TextNode) {
		return
	}
	dom.Detach(n)
	m.replaced++
}

// ClaimText implements render.Claimer.
func (m *Matcher) ClaimText(cur render.Cursor, text string) *html.Node {
	n := skip(cur, isBlank(text))
	if n != nil && n.Type == html.TextNode {
		return n
	}
	m.report(Diagnostic{Kind: MissingNode, Tag: "#text", Want: text, Got: describe(n)})
	m.discard(n)
	return nil
}

// Reconcile verifies the attributes of a claimed element, correcting
// mismatches. Attributes the composition does not know about are kept.
func (m *Matcher) Reconcile(n *html.Node, attrs, prev []compose.Attr) {
	for _, a := range attrs {
		got, ok := dom.Attr(n, a.Name)
		if ok && got == a.Value {
			continue
		}
		if !ok {
			got = "<absent>"
		}
		m.report(Diagnostic{Kind: AttrMismatch, Tag: n.Data, Name: a.Name, Want: a.Value, Got: got})
		dom.SetAttr(n, a.Name, a.Value)
	}
	for _, p := range prev {
		if !containsAttr(attrs, p.Name) {
			dom.RemoveAttr(n, p.Name)
		}
	}
}

// ReconcileText verifies a claimed text node.
func (m *Matcher) ReconcileText(n *html.Node, text string) {
	if n.Data == text {
		return
	}
	m.report(Diagnostic{Kind: TextMismatch, Want: text, Got: n.Data})
	n.Data = text
}

// KeepUnclaimed implements render.Claimer.
func (m *Matcher) KeepUnclaimed() bool { return true }

// BeginFallback makes the next island element render fresh, replacing the
// server copy.
func (m *Matcher) BeginFallback() { m.pending = true }

// EndFallback implements compose.Fallback.
func (m *Matcher) EndFallback() { m.pending = false }

// skip returns the first candidate at the cursor, passing over comments
// and, unless keepBlank is set, whitespace-only text.
func skip(cur render.Cursor, keepBlank bool) *html.Node {
	for n := cur.Next; n != nil && n != cur.Stop; n = n.NextSibling {
		switch {
		case n.Type == html.CommentNode:
		case n.Type == html.TextNode && !keepBlank && dom.IsWhitespace(n):
		default:
			return n
		}
	}
	return nil
}

func findMarker(cur render.Cursor, spec compose.NodeSpec) *html.Node {
	for n := cur.Next; n != nil && n != cur.Stop; n = n.NextSibling {
		if n.Type != html.ElementNode || n.Data != spec.Tag {
			continue
		}
		if id, _ := dom.Attr(n, compose.AttrID); id == spec.ComponentID {
			return n
		}
	}
	return nil
}

func describe(n *html.Node) string {
	switch {
	case n == nil:
		return "nothing"
	case n.Type == html.ElementNode:
		return "<" + n.Data + ">"
	case n.Type == html.TextNode:
		return fmt.Sprintf("text %q", n.Data)
	}
	return "node"
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' && r != '\f' {
			return false
		}
	}
	return true
}

func containsAttr(attrs []compose.Attr, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}
