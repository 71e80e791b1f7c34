package render

import (
	"golang.org/x/net/html"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dom"
)

// Cursor is the emission position inside a container: new nodes go before
// Next, and nothing at or after Stop belongs to the current pass.
type Cursor struct {
	Parent *html.Node
	Next   *html.Node
	Stop   *html.Node
}

// Claimer decides which existing nodes a Live backend reuses.
type Claimer interface {
	// ClaimElement returns the existing element to use for spec, or nil to
	// create one before cur.Next.
	ClaimElement(cur Cursor, spec compose.NodeSpec) *html.Node
	// ClaimText returns the existing text node to use, or nil.
	ClaimText(cur Cursor, text string) *html.Node
	// Reconcile brings a claimed element's attributes to attrs. prev holds
	// the attributes Live applied to n last time and is nil on first claim.
	Reconcile(n *html.Node, attrs, prev []compose.Attr)
	// ReconcileText brings a claimed text node to text.
	ReconcileText(n *html.Node, text string)
	// KeepUnclaimed reports whether existing children left after the cursor
	// survive when their container closes.
	KeepUnclaimed() bool
}

// Positional reuses the node at the cursor when it has the same tag and
// marker, and removes whatever is left over.
type Positional struct{}

func (Positional) ClaimElement(cur Cursor, spec compose.NodeSpec) *html.Node {
	n := cur.Next
	if n == nil || n == cur.Stop || n.Type != html.ElementNode || n.Data != spec.Tag {
		return nil
	}
	if spec.ComponentID != "" {
		if id, _ := dom.Attr(n, compose.AttrID); id != spec.ComponentID {
			return nil
		}
	}
	return n
}

func (Positional) ClaimText(cur Cursor, _ string) *html.Node {
	if n := cur.Next; n != nil && n != cur.Stop && n.Type == html.TextNode {
		return n
	}
	return nil
}

func (Positional) Reconcile(n *html.Node, attrs, prev []compose.Attr) {
	ApplyAttrs(n, attrs, prev)
}

func (Positional) ReconcileText(n *html.Node, text string) {
	n.Data = text
}

func (Positional) KeepUnclaimed() bool { return false }

// ApplyAttrs sets attrs on n and removes the names in prev that attrs no
// longer carries. Attributes outside both lists are left alone.
func ApplyAttrs(n *html.Node, attrs, prev []compose.Attr) {
	for _, a := range attrs {
		dom.SetAttr(n, a.Name, a.Value)
	}
	for _, p := range prev {
		if !hasAttr(attrs, p.Name) {
			dom.RemoveAttr(n, p.Name)
		}
	}
}

func hasAttr(attrs []compose.Attr, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

type liveFrame struct {
	Cursor
	fresh bool
}

type liveCheckpoint struct {
	emitted int
	frames  []liveFrame
}

// Live is a compose.Backend that builds and updates nodes under a container
// element. It implements compose.Restarter, so recompositions only touch the
// nodes of the scopes that changed.
type Live struct {
	container *html.Node
	claimer   Claimer

	frames  []liveFrame
	applied map[*html.Node][]compose.Attr
	emitted []*html.Node

	created int
	claimed int
}

// NewLive creates a backend rendering into container. A nil claimer means
// Positional.
func NewLive(container *html.Node, claimer Claimer) *Live {
	if claimer == nil {
		claimer = Positional{}
	}
	return &Live{
		container: container,
		claimer:   claimer,
		applied:   make(map[*html.Node][]compose.Attr),
	}
}

// Container returns the root container.
func (l *Live) Container() *html.Node { return l.container }

// SetClaimer replaces the matching strategy. A nil claimer means Positional.
func (l *Live) SetClaimer(c Claimer) {
	if c == nil {
		c = Positional{}
	}
	l.claimer = c
}

// Created returns the number of nodes created so far.
func (l *Live) Created() int { return l.created }

// Claimed returns the number of existing nodes reused so far.
func (l *Live) Claimed() int { return l.claimed }

// Begin starts a pass over the whole container.
func (l *Live) Begin() {
	l.frames = append(l.frames[:0], liveFrame{Cursor: Cursor{Parent: l.container, Next: l.container.FirstChild}})
	l.emitted = l.emitted[:0]
}

// End closes the container, trimming leftovers.
func (l *Live) End() {
	if len(l.frames) > 0 {
		l.pop()
	}
	l.emitted = l.emitted[:0]
}

func (l *Live) top() *liveFrame {
	return &l.frames[len(l.frames)-1]
}

// OpenNode claims or creates the element for spec.
func (l *Live) OpenNode(spec compose.NodeSpec) compose.Handle {
	f := l.top()
	attrs := spec.Attributes()
	var n *html.Node
	if !f.fresh {
		n = l.claim(f, func(cur Cursor) *html.Node { return l.claimer.ClaimElement(cur, spec) })
	}
	if n != nil {
		l.claimed++
		prev, seen := l.applied[n]
		if !seen {
			prev = nil
		}
		l.claimer.Reconcile(n, attrs, prev)
		f.Next = n.NextSibling
		l.frames = append(l.frames, liveFrame{Cursor: Cursor{Parent: n, Next: n.FirstChild}})
	} else {
		n = dom.NewElement(spec.Tag)
		for _, a := range attrs {
			n.Attr = append(n.Attr, html.Attribute{Key: a.Name, Val: a.Value})
		}
		l.insert(f, n)
		l.frames = append(l.frames, liveFrame{Cursor: Cursor{Parent: n}, fresh: true})
	}
	l.applied[n] = attrs
	return n
}

// Text claims or creates a text node.
func (l *Live) Text(content string) compose.Handle {
	f := l.top()
	var n *html.Node
	if !f.fresh {
		n = l.claim(f, func(cur Cursor) *html.Node { return l.claimer.ClaimText(cur, content) })
	}
	if n != nil {
		l.claimed++
		l.claimer.ReconcileText(n, content)
		f.Next = n.NextSibling
		return n
	}
	n = dom.NewText(content)
	l.insert(f, n)
	return n
}

// claim runs a claimer call and re-anchors the frame cursor when the
// claimer detached the node it pointed at.
func (l *Live) claim(f *liveFrame, fn func(Cursor) *html.Node) *html.Node {
	var prev *html.Node
	if f.Next != nil {
		prev = f.Next.PrevSibling
	}
	n := fn(f.Cursor)
	if f.Next != nil && f.Next.Parent != f.Parent {
		if prev != nil {
			f.Next = prev.NextSibling
		} else {
			f.Next = f.Parent.FirstChild
		}
	}
	return n
}

func (l *Live) insert(f *liveFrame, n *html.Node) {
	if f.Next != nil {
		f.Parent.InsertBefore(n, f.Next)
	} else {
		f.Parent.AppendChild(n)
	}
	l.created++
	l.emitted = append(l.emitted, n)
}

// CloseNode closes the current element.
func (l *Live) CloseNode() {
	if len(l.frames) <= 1 {
		panic(compose.ErrUnbalancedNode)
	}
	l.pop()
}

func (l *Live) pop() {
	f := l.frames[len(l.frames)-1]
	l.frames = l.frames[:len(l.frames)-1]
	if !f.fresh && !l.claimer.KeepUnclaimed() {
		l.trim(f.Cursor)
	}
}

// trim removes the children from cur.Next up to cur.Stop.
func (l *Live) trim(cur Cursor) {
	for n := cur.Next; n != nil && n != cur.Stop; {
		next := n.NextSibling
		l.forget(n)
		cur.Parent.RemoveChild(n)
		n = next
	}
}

func (l *Live) forget(n *html.Node) {
	delete(l.applied, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.forget(c)
	}
}

// Parent returns the current container element.
func (l *Live) Parent() compose.Handle {
	return l.top().Parent
}

// Checkpoint captures the emission position.
func (l *Live) Checkpoint() compose.Checkpoint {
	return liveCheckpoint{
		emitted: len(l.emitted),
		frames:  append([]liveFrame(nil), l.frames...),
	}
}

// Rollback removes the nodes created since cp.
func (l *Live) Rollback(cp compose.Checkpoint) {
	c := cp.(liveCheckpoint)
	for i := len(l.emitted) - 1; i >= c.emitted; i-- {
		n := l.emitted[i]
		if n.Parent != nil {
			l.forget(n)
			n.Parent.RemoveChild(n)
		}
	}
	l.emitted = l.emitted[:c.emitted]
	l.frames = append(l.frames[:0], c.frames...)
}

// Restart positions emission at the nodes of one scope.
func (l *Live) Restart(parent compose.Handle, old []compose.Handle, before compose.Handle) {
	p, _ := parent.(*html.Node)
	if p == nil {
		p = l.container
	}
	stop, _ := before.(*html.Node)
	next := stop
	if len(old) > 0 {
		if n, ok := old[0].(*html.Node); ok && n.Parent == p {
			next = n
		}
		if last, ok := old[len(old)-1].(*html.Node); ok && stop == nil && last.Parent == p {
			stop = last.NextSibling
		}
	}
	l.frames = append(l.frames[:0], liveFrame{Cursor: Cursor{Parent: p, Next: next, Stop: stop}})
	l.emitted = l.emitted[:0]
}

// FinishRestart removes the scope's previous nodes that were not reused.
func (l *Live) FinishRestart() {
	if len(l.frames) == 0 {
		return
	}
	f := l.frames[len(l.frames)-1]
	l.frames = l.frames[:0]
	l.trim(f.Cursor)
	l.emitted = l.emitted[:0]
}

// BeginFallback forwards to the claimer when it supports client-side
// fallback rendering.
func (l *Live) BeginFallback() {
	if fb, ok := l.claimer.(compose.Fallback); ok {
		fb.BeginFallback()
	}
}

// EndFallback ends a fallback started with BeginFallback.
func (l *Live) EndFallback() {
	if fb, ok := l.claimer.(compose.Fallback); ok {
		fb.EndFallback()
	}
}
