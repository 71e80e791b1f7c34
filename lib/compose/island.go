package compose

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pthm/summon/lib/action"
	"github.com/pthm/summon/lib/encoding"
)

// IslandRecord is the hydration payload entry of one island.
type IslandRecord struct {
	Type      string                     `json:"type"`
	State     map[string]json.RawMessage `json:"state,omitempty"`
	Callbacks []string                   `json:"callbacks,omitempty"`
}

// CallbackRegistrar stores server callbacks and returns their ids.
type CallbackRegistrar interface {
	Register(fn func()) string
}

// CallbackBinder is implemented by registrars that can bind a closure to an
// id chosen elsewhere. Hydrating roots use it to attach client closures to
// the ids recorded by the server.
type CallbackBinder interface {
	Bind(id string, fn func())
}

// CallbackReleaser is implemented by registrars that can forget an id.
type CallbackReleaser interface {
	Release(id string)
}

type islandFrame struct {
	id  string
	in  *IslandRecord
	out *islandOut
	cb  int
}

type islandOut struct {
	typ       string
	state     map[string]func() any
	order     []string
	callbacks []string
}

// Island composes body as an independently hydratable component: a div
// carrying the island id and type markers. On the server its saved state and
// callback ids are collected for the payload; when hydrating they are read
// back from Options.Records.
func Island[P comparable](c *Composer, id, typ string, props P, body func(c *Composer, props P)) {
	Component(c, islandKey{id}, props, func(c *Composer, props P) {
		out := c.out[id]
		if out == nil || !c.composed {
			out = &islandOut{typ: typ, state: make(map[string]func() any)}
			c.out[id] = out
		}
		isl := &islandFrame{id: id, out: out}

		fallback := false
		if c.Hydrating() {
			if rec, ok := c.opts.Records[id]; ok {
				isl.in = &rec
			} else if fb, ok := c.backend.(Fallback); ok && !c.composed {
				c.log.Warn("island record missing, rendering on client",
					zap.String("island", id),
					zap.String("type", typ),
				)
				fb.BeginFallback()
				fallback = true
			}
		}

		c.islands = append(c.islands, isl)
		defer func() {
			c.islands = c.islands[:len(c.islands)-1]
			if fallback {
				c.backend.(Fallback).EndFallback()
			}
		}()

		c.StartNode(NodeSpec{
			Tag:         "div",
			ComponentID: id,
			Attrs:       []Attr{{Name: AttrType, Value: typ}},
		})
		body(c, props)
		c.EndNode()
	})
	if c.opts.Yield != nil && !c.composed {
		c.opts.Yield()
	}
}

type islandKey struct{ id string }

func (k islandKey) String() string { return k.id }

func (c *Composer) island() *islandFrame {
	if n := len(c.islands); n > 0 {
		return c.islands[n-1]
	}
	return nil
}

// Islands returns the records of every island composed by the root, with
// saved state snapshotted at call time.
func (c *Composer) Islands() (map[string]IslandRecord, error) {
	recs := make(map[string]IslandRecord, len(c.out))
	for id, out := range c.out {
		rec := IslandRecord{Type: out.typ, Callbacks: out.callbacks}
		if len(out.order) > 0 {
			rec.State = make(map[string]json.RawMessage, len(out.order))
			for _, name := range out.order {
				raw, err := json.Marshal(out.state[name]())
				if err != nil {
					return nil, fmt.Errorf("compose: island %s state %q: %w", id, name, err)
				}
				rec.State[name] = raw
			}
		}
		recs[id] = rec
	}
	return recs, nil
}

// SavedState is UseState for island state that travels in the hydration
// payload under name. When hydrating, the initial value is read from the
// island's record.
func SavedState[T comparable](c *Composer, name string, initial T) *State[T] {
	isl := c.island()
	s := Remember(c, func() *State[T] {
		v := initial
		if isl != nil && isl.in != nil {
			if raw, ok := isl.in.State[name]; ok {
				if err := json.Unmarshal(raw, &v); err != nil {
					c.log.Warn("saved state does not decode",
						zap.String("island", isl.id),
						zap.String("state", name),
						zap.Error(err),
					)
					v = initial
				}
			}
		}
		return NewState(c, v)
	})
	if isl != nil {
		if _, seen := isl.out.state[name]; !seen {
			isl.out.order = append(isl.out.order, name)
		}
		isl.out.state[name] = func() any { return s.Peek() }
	}
	return s
}

type callbackCell struct {
	id  string
	fn  func()
	rel CallbackReleaser
}

func (cb *callbackCell) invoke() {
	if cb.fn != nil {
		cb.fn()
	}
}

func (cb *callbackCell) Dispose() {
	if cb.rel != nil && cb.id != "" {
		cb.rel.Release(cb.id)
	}
	cb.fn = nil
}

// Callback returns an RPC action that runs fn. The id is stable across
// recompositions while fn is refreshed on every execution. On the server the
// closure is stored in Options.Callbacks; a hydrating root binds it to the
// id recorded for the same position in the island.
func Callback(c *Composer, fn func()) action.Action {
	isl := c.island()
	cell := Remember(c, func() *callbackCell { return &callbackCell{} })
	cell.fn = fn
	if cell.id == "" {
		reg := c.opts.Callbacks
		if reg == nil {
			panic(ErrNoCallbacks)
		}
		if isl != nil && isl.in != nil && isl.cb < len(isl.in.Callbacks) {
			if b, ok := reg.(CallbackBinder); ok {
				cell.id = isl.in.Callbacks[isl.cb]
				b.Bind(cell.id, cell.invoke)
			}
		}
		if cell.id == "" {
			cell.id = reg.Register(cell.invoke)
		}
		if rel, ok := reg.(CallbackReleaser); ok {
			cell.rel = rel
		}
	}
	if isl != nil {
		isl.cb++
		if !c.composed {
			isl.out.callbacks = append(isl.out.callbacks, cell.id)
		}
	}
	return action.Callback(cell.id)
}

// RPC returns an action calling endpoint with props signed by
// Options.Encoder under the "p" payload key.
func RPC(c *Composer, endpoint string, props encoding.Encodable) action.Action {
	if c.opts.Encoder == nil {
		panic(ErrNoEncoder)
	}
	sealed, err := c.opts.Encoder.Encode(props, encoding.Signed)
	if err != nil {
		panic(err)
	}
	return action.ServerRPC{Endpoint: endpoint, Payload: map[string]any{"p": sealed}}
}

// OnAction returns the attribute binding a to the element's default event.
func OnAction(a action.Action) Attr {
	s, err := action.MarshalString(a)
	if err != nil {
		panic(err)
	}
	return Attr{Name: AttrAction, Value: s}
}

// OnEvent returns the attributes binding a to event.
func OnEvent(event string, a action.Action) []Attr {
	return []Attr{OnAction(a), {Name: AttrEvent, Value: event}}
}
