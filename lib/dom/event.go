package dom

import "golang.org/x/net/html"

// Listener handles an event delivered to a node.
type Listener func(*Event)

// Event is a bubbling UI event.
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node

	defaultPrevented bool
	stopped          bool
}

// PreventDefault suppresses the host's default behaviour for the event.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation stops the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// AddEventListener registers l for events of type typ arriving at n, either
// directly or by bubbling from a descendant.
func (d *Document) AddEventListener(n *html.Node, typ string, l Listener) {
	byType := d.listeners[n]
	if byType == nil {
		byType = make(map[string][]Listener)
		d.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], l)
}

// ListenerCount returns the number of listeners for typ registered on n.
func (d *Document) ListenerCount(n *html.Node, typ string) int {
	return len(d.listeners[n][typ])
}

// Dispatch fires an event of type typ at target and bubbles it up through
// the ancestors. The returned event reports whether the default action was
// prevented.
func (d *Document) Dispatch(target *html.Node, typ string) *Event {
	ev := &Event{Type: typ, Target: target}
	for n := target; n != nil && !ev.stopped; n = n.Parent {
		ls := d.listeners[n][typ]
		if len(ls) == 0 {
			continue
		}
		ev.CurrentTarget = n
		for _, l := range ls {
			l(ev)
		}
	}
	ev.CurrentTarget = nil
	return ev
}

// Click dispatches a click event at target.
func (d *Document) Click(target *html.Node) *Event {
	return d.Dispatch(target, "click")
}
