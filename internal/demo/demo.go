// Package demo holds the widgets the summon CLI serves and self-checks.
package demo

import (
	"strconv"
	"sync"

	"github.com/pthm/summon/lib/action"
	"github.com/pthm/summon/lib/compose"
)

// Island types.
const (
	TypeCounter = "counter"
	TypeToggle  = "toggle"
)

// RootID is the composition root the CLI renders.
const RootID = "demo"

// Store keeps island state on the server between requests. Server
// callbacks write to it and the next render seeds the islands from it.
type Store struct {
	mu     sync.Mutex
	counts map[string]int
	open   map[string]bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{counts: make(map[string]int), open: make(map[string]bool)}
}

// Count returns the count of counter id. A nil store counts zero.
func (s *Store) Count(id string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[id]
}

// Add changes the count of counter id by delta.
func (s *Store) Add(id string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[id] += delta
}

// Open reports whether toggle id is open. A nil store is always closed.
func (s *Store) Open(id string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[id]
}

// Flip opens or closes toggle id.
func (s *Store) Flip(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[id] = !s.open[id]
}

// Counter composes a counter island. With a store its callback runs on the
// server and writes the store; without one it updates the island's state.
func Counter(c *compose.Composer, store *Store, id string) {
	compose.Island(c, id, TypeCounter, id, func(c *compose.Composer, id string) {
		counter(c, store, id)
	})
}

func counter(c *compose.Composer, store *Store, id string) {
	n := compose.SavedState(c, "n", store.Count(id))
	inc := compose.Callback(c, func() {
		if store != nil {
			store.Add(id, 1)
			return
		}
		n.Update(func(v int) int { return v + 1 })
	})
	c.El("button", []compose.Attr{compose.OnAction(inc), {Name: "type", Value: "button"}}, func() {
		c.Text("Add one")
	})
	c.El("output", nil, func() { c.Text(strconv.Itoa(n.Get())) })
}

// Toggle composes an island that shows or hides its panel through a
// callback. The store works as for Counter.
func Toggle(c *compose.Composer, store *Store, id string) {
	compose.Island(c, id, TypeToggle, id, func(c *compose.Composer, id string) {
		toggle(c, store, id)
	})
}

func toggle(c *compose.Composer, store *Store, id string) {
	open := compose.SavedState(c, "open", store.Open(id))
	flip := compose.Callback(c, func() {
		if store != nil {
			store.Flip(id)
			return
		}
		open.Set(!open.Peek())
	})
	c.El("button", []compose.Attr{
		compose.OnAction(flip),
		{Name: "type", Value: "button"},
		{Name: "aria-expanded", Value: strconv.FormatBool(open.Get())},
	}, func() { c.Text("Details") })
	if open.Get() {
		c.El("p", nil, func() { c.Text("Rendered by the client.") })
	}
}

// Disclosure uses a Toggle action, which needs no composition at all.
func Disclosure(c *compose.Composer, target string) {
	c.El("button", []compose.Attr{
		compose.OnAction(action.Toggle{TargetID: target}),
		{Name: "type", Value: "button"},
		{Name: "aria-controls", Value: target},
		{Name: "aria-expanded", Value: "false"},
	}, func() { c.Text("Help") })
	c.El("div", []compose.Attr{{Name: "id", Value: target}, {Name: "hidden", Value: ""}}, func() {
		c.Text("Buttons work before and after hydration.")
	})
}

// Body returns the demo page body for a server holding its state in
// store.
func Body(store *Store) func(c *compose.Composer) {
	return func(c *compose.Composer) {
		c.El("h1", nil, func() { c.Text("summon") })
		Counter(c, store, "clicks")
		Toggle(c, store, "details")
		Disclosure(c, "help")
		c.El("a", []compose.Attr{
			compose.OnAction(action.Navigate{URL: "/"}),
			{Name: "href", Value: "/"},
		}, func() { c.Text("Start over") })
	}
}

// App is the demo page body as the client hydrates it, with all state held
// by the composition.
func App(c *compose.Composer) {
	Body(nil)(c)
}

// Factories resolves the demo island types for island-by-island hydration.
func Factories() *compose.Factories {
	f := compose.NewFactories()
	f.Register(TypeCounter, func(id string, rec compose.IslandRecord) compose.Description {
		return compose.Description{Kind: compose.Known, Body: func(c *compose.Composer) { counter(c, nil, id) }}
	})
	f.Register(TypeToggle, func(id string, rec compose.IslandRecord) compose.Description {
		return compose.Description{Kind: compose.Known, Body: func(c *compose.Composer) { toggle(c, nil, id) }}
	})
	return f
}
