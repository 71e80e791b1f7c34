// Package dispatch routes user events on hydrated markup to UI actions.
//
// A Dispatcher installs one listener per event type on a root element and
// resolves each event to the nearest ancestor carrying a data-summon-action
// attribute whose trigger matches. The action is decoded and executed; on
// success the event's default behaviour is suppressed. Anything that cannot
// be decoded or executed is logged and left to the host's default handling.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/summon/lib/action"
	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dom"
)

// Events are the event types a dispatcher listens for.
var Events = []string{"click", "input", "change", "submit"}

// installedKey marks a root element in the document's node data.
const installedKey = "summon.dispatcher"

var (
	ErrAlreadyInstalled = errors.New("dispatch: dispatcher already installed on root")
	ErrNoTarget         = errors.New("dispatch: toggle target not found")
	ErrNoTransport      = errors.New("dispatch: no transport for rpc")
	ErrNoNavigator      = errors.New("dispatch: no navigator")
)

// IsAlreadyInstalled reports whether err is ErrAlreadyInstalled.
func IsAlreadyInstalled(err error) bool { return errors.Is(err, ErrAlreadyInstalled) }

// Navigator changes the document location.
type Navigator interface {
	Navigate(url string)
	Reload()
}

// Transport performs server RPCs.
type Transport interface {
	Call(ctx context.Context, endpoint string, payload map[string]any) (action.Directive, error)
}

// Executor runs callbacks bound locally by a client composition. Execute
// reports whether id was known.
type Executor interface {
	Execute(id string) bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for dispatch failures.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithNavigator sets the navigator used by Navigate actions and directives.
func WithNavigator(n Navigator) Option {
	return func(d *Dispatcher) { d.nav = n }
}

// WithTransport sets the transport for RPCs that no local callback handles.
func WithTransport(t Transport) Option {
	return func(d *Dispatcher) { d.transport = t }
}

// WithExecutor sets the local callback executor consulted before the
// transport.
func WithExecutor(e Executor) Option {
	return func(d *Dispatcher) { d.exec = e }
}

// WithHost makes transport calls asynchronous: the call runs on its own
// goroutine and the resulting directive is applied on the host.
func WithHost(h compose.Host) Option {
	return func(d *Dispatcher) { d.host = h }
}

// WithContext sets the context passed to transport calls.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) { d.ctx = ctx }
}

// Dispatcher resolves events to actions and executes them.
type Dispatcher struct {
	doc       *dom.Document
	log       *zap.Logger
	nav       Navigator
	transport Transport
	exec      Executor
	host      compose.Host
	ctx       context.Context
}

// New creates a dispatcher for doc.
func New(doc *dom.Document, opts ...Option) *Dispatcher {
	d := &Dispatcher{doc: doc, ctx: context.Background()}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d
}

// Install attaches the dispatcher's listeners to root. Installing on a root
// that already has a dispatcher returns ErrAlreadyInstalled and changes
// nothing.
func (d *Dispatcher) Install(root *html.Node) error {
	if root == nil {
		return fmt.Errorf("dispatch: install on nil root")
	}
	if _, ok := d.doc.Data(root, installedKey); ok {
		return ErrAlreadyInstalled
	}
	d.doc.SetData(root, installedKey, d)
	for _, typ := range Events {
		d.doc.AddEventListener(root, typ, d.handle)
	}
	return nil
}

func (d *Dispatcher) handle(ev *dom.Event) {
	el := Resolve(ev.Target, ev.CurrentTarget, ev.Type)
	if el == nil {
		return
	}
	raw, _ := dom.Attr(el, compose.AttrAction)
	a, err := action.Unmarshal([]byte(raw))
	if err != nil {
		d.log.Warn("undecodable action",
			zap.String("event", ev.Type),
			zap.String("tag", el.Data),
			zap.Error(err),
		)
		return
	}
	if err := d.Execute(a, el); err != nil {
		d.log.Warn("action failed",
			zap.String("event", ev.Type),
			zap.String("kind", string(a.Kind())),
			zap.Error(err),
		)
		return
	}
	ev.PreventDefault()
}

// Resolve returns the nearest element from target up to root (inclusive)
// carrying an action triggered by typ, or nil.
func Resolve(target, root *html.Node, typ string) *html.Node {
	for n := target; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && dom.HasAttr(n, compose.AttrAction) && Trigger(n) == typ {
			return n
		}
		if n == root {
			break
		}
	}
	return nil
}

// Trigger returns the event type that fires el's action: data-summon-event
// when present, otherwise submit for forms and click for everything else.
func Trigger(el *html.Node) string {
	if ev, ok := dom.Attr(el, compose.AttrEvent); ok && ev != "" {
		return ev
	}
	if el.Data == "form" {
		return "submit"
	}
	return "click"
}

// Execute runs a as if triggered from control.
func (d *Dispatcher) Execute(a action.Action, control *html.Node) error {
	switch a := a.(type) {
	case action.Navigate:
		if d.nav == nil {
			return ErrNoNavigator
		}
		d.nav.Navigate(a.URL)
		return nil
	case action.Toggle:
		return d.toggle(a.TargetID, control)
	case action.ServerRPC:
		return d.call(a)
	}
	return fmt.Errorf("%w: %T", action.ErrUnknownAction, a)
}

func (d *Dispatcher) call(rpc action.ServerRPC) error {
	if id, ok := rpc.CallbackID(); ok && d.exec != nil && d.exec.Execute(id) {
		return nil
	}
	if d.transport == nil {
		return ErrNoTransport
	}
	if d.host == nil {
		dir, err := d.transport.Call(d.ctx, rpc.Endpoint, rpc.Payload)
		if err != nil {
			return err
		}
		return d.apply(dir)
	}
	go func() {
		dir, err := d.transport.Call(d.ctx, rpc.Endpoint, rpc.Payload)
		d.host.Post(func() {
			if err == nil {
				err = d.apply(dir)
			}
			if err != nil {
				d.log.Warn("rpc failed", zap.String("endpoint", rpc.Endpoint), zap.Error(err))
			}
		})
	}()
	return nil
}

func (d *Dispatcher) apply(dir action.Directive) error {
	switch dir.Action {
	case action.DirectiveReload:
		if d.nav == nil {
			return ErrNoNavigator
		}
		d.nav.Reload()
	case action.DirectiveNavigate:
		if d.nav == nil {
			return ErrNoNavigator
		}
		d.nav.Navigate(dir.URL)
	}
	return nil
}

func (d *Dispatcher) toggle(id string, control *html.Node) error {
	target := d.doc.ElementByID(id)
	if target == nil {
		return fmt.Errorf("%w: #%s", ErrNoTarget, id)
	}
	expanded := dom.HasAttr(target, "hidden")
	if expanded {
		dom.RemoveAttr(target, "hidden")
		dom.SetAttr(target, "aria-hidden", "false")
	} else {
		dom.SetAttr(target, "hidden", "")
		dom.SetAttr(target, "aria-hidden", "true")
	}

	state := "false"
	if expanded {
		state = "true"
	}
	if control != nil {
		dom.SetAttr(control, "aria-expanded", state)
	}
	for _, n := range dom.FindAll(d.doc.Root, func(n *html.Node) bool { return controls(n, id) }) {
		dom.SetAttr(n, "aria-expanded", state)
	}
	return nil
}

// controls reports whether n's aria-controls list names id.
func controls(n *html.Node, id string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	v, ok := dom.Attr(n, "aria-controls")
	if !ok {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == id {
			return true
		}
	}
	return false
}
