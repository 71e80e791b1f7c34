package compose

import (
	"fmt"
	"sort"
	"sync"
)

// DescriptionKind tags a Description.
type DescriptionKind int

const (
	Unknown DescriptionKind = iota
	Known
)

// Description is what a factory resolves a component type to.
type Description struct {
	Kind DescriptionKind
	Type string
	Body func(c *Composer)
}

// Factory builds the description of island id from its record.
type Factory func(id string, rec IslandRecord) Description

// Factories maps component type names to factories.
type Factories struct {
	mu sync.RWMutex
	m  map[string]Factory
}

// NewFactories creates an empty registry.
func NewFactories() *Factories {
	return &Factories{m: make(map[string]Factory)}
}

// Register adds a factory for typ. Registering a type twice panics.
func (f *Factories) Register(typ string, fn Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.m[typ]; dup {
		panic(fmt.Sprintf("compose: factory %q registered twice", typ))
	}
	f.m[typ] = fn
}

// Types returns the registered type names in sorted order.
func (f *Factories) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.m))
	for t := range f.m {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Describe resolves rec's type. Unregistered types yield an Unknown
// description.
func (f *Factories) Describe(id string, rec IslandRecord) Description {
	f.mu.RLock()
	fn, ok := f.m[rec.Type]
	f.mu.RUnlock()
	if !ok {
		return Description{Kind: Unknown, Type: rec.Type}
	}
	d := fn(id, rec)
	if d.Type == "" {
		d.Type = rec.Type
	}
	return d
}

// Dynamic composes island id from its record through f. Unknown types render
// an error placeholder in place of the island.
func Dynamic(c *Composer, id string, rec IslandRecord, f *Factories) error {
	d := f.Describe(id, rec)
	if d.Kind == Unknown || d.Body == nil {
		Key(c, islandKey{id}, func(c *Composer) {
			if fb, ok := c.backend.(Fallback); ok && c.Hydrating() {
				fb.BeginFallback()
				defer fb.EndFallback()
			}
			c.Element(NodeSpec{
				Tag:         "div",
				ComponentID: id,
				Attrs: []Attr{
					{Name: AttrError, Value: "unknown:" + rec.Type},
					{Name: "role", Value: "alert"},
				},
			}, nil)
		})
		return fmt.Errorf("%w: %q", ErrUnknownFactory, rec.Type)
	}
	Island(c, id, d.Type, id, func(c *Composer, _ string) {
		d.Body(c)
	})
	return nil
}
