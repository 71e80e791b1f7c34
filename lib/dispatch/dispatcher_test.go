package dispatch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"

	"github.com/pthm/summon/lib/action"
	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dispatch"
	"github.com/pthm/summon/lib/dom"
	"github.com/pthm/summon/lib/hydrate"
	"github.com/pthm/summon/lib/loop"
	"github.com/pthm/summon/lib/render"
)

type navigator struct {
	urls    []string
	reloads int
}

func (n *navigator) Navigate(url string) { n.urls = append(n.urls, url) }
func (n *navigator) Reload()             { n.reloads++ }

type transport struct {
	calls []string
	dir   action.Directive
	err   error
}

func (t *transport) Call(_ context.Context, endpoint string, _ map[string]any) (action.Directive, error) {
	t.calls = append(t.calls, endpoint)
	return t.dir, t.err
}

type callbacks struct {
	fns  map[string]func()
	next int
}

func newCallbacks() *callbacks { return &callbacks{fns: make(map[string]func())} }

func (c *callbacks) Register(fn func()) string {
	c.next++
	id := fmt.Sprintf("cb-%d", c.next)
	c.fns[id] = fn
	return id
}

func (c *callbacks) Bind(id string, fn func()) { c.fns[id] = fn }

func (c *callbacks) Execute(id string) bool {
	fn, ok := c.fns[id]
	if ok {
		fn()
	}
	return ok
}

func attr(t *testing.T, a action.Action) string {
	t.Helper()
	s, err := action.MarshalString(a)
	require.NoError(t, err)
	return html.EscapeString(s)
}

func byID(doc *dom.Document, id string) *html.Node { return doc.ElementByID(id) }

func value(n *html.Node, name string) string {
	v, _ := dom.Attr(n, name)
	return v
}

func setup(t *testing.T, body string, opts ...dispatch.Option) (*dom.Document, *dispatch.Dispatcher) {
	t.Helper()
	doc, err := dom.ParseString(`<html><body><div id="root">` + body + `</div></body></html>`)
	require.NoError(t, err)
	d := dispatch.New(doc, opts...)
	require.NoError(t, d.Install(byID(doc, "root")))
	return doc, d
}

func TestToggleRoundTrip(t *testing.T) {
	doc, _ := setup(t, `<button id="b" aria-controls="menu" data-summon-action="`+attr(t, action.Toggle{TargetID: "menu"})+`"><span id="label">Menu</span></button>`+
		`<a id="other" aria-controls="nav menu">also</a>`+
		`<ul id="menu" hidden><li>one</li></ul>`)
	menu := byID(doc, "menu")

	ev := doc.Click(byID(doc, "label"))
	assert.True(t, ev.DefaultPrevented())
	assert.False(t, dom.HasAttr(menu, "hidden"))
	assert.Equal(t, "false", value(menu, "aria-hidden"))
	assert.Equal(t, "true", value(byID(doc, "b"), "aria-expanded"))
	assert.Equal(t, "true", value(byID(doc, "other"), "aria-expanded"))

	doc.Click(byID(doc, "b"))
	assert.True(t, dom.HasAttr(menu, "hidden"))
	assert.Equal(t, "true", value(menu, "aria-hidden"))
	assert.Equal(t, "false", value(byID(doc, "b"), "aria-expanded"))
	assert.Equal(t, "false", value(byID(doc, "other"), "aria-expanded"))
}

func TestToggleWidgetsAreIndependent(t *testing.T) {
	doc, _ := setup(t,
		`<button id="b1" data-summon-action="`+attr(t, action.Toggle{TargetID: "m1"})+`">1</button><div id="m1" hidden></div>`+
			`<button id="b2" data-summon-action="`+attr(t, action.Toggle{TargetID: "m2"})+`">2</button><div id="m2" hidden></div>`)

	doc.Click(byID(doc, "b1"))
	assert.False(t, dom.HasAttr(byID(doc, "m1"), "hidden"))
	assert.True(t, dom.HasAttr(byID(doc, "m2"), "hidden"))
	assert.False(t, dom.HasAttr(byID(doc, "b2"), "aria-expanded"))
}

func TestInstallTwice(t *testing.T) {
	doc, _ := setup(t, `<p>x</p>`)
	root := byID(doc, "root")

	err := dispatch.New(doc).Install(root)
	assert.True(t, dispatch.IsAlreadyInstalled(err))
	for _, typ := range dispatch.Events {
		assert.Equal(t, 1, doc.ListenerCount(root, typ), typ)
	}
}

func TestEventsWithoutActionFallThrough(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	doc, _ := setup(t, `<a id="plain" href="/x">x</a><button id="bad" data-summon-action="{nope">x</button>`+
		`<button id="missing" data-summon-action="`+attr(t, action.Toggle{TargetID: "gone"})+`">x</button>`,
		dispatch.WithLogger(zap.New(core)))

	assert.False(t, doc.Click(byID(doc, "plain")).DefaultPrevented())
	assert.False(t, doc.Click(byID(doc, "bad")).DefaultPrevented())
	assert.False(t, doc.Click(byID(doc, "missing")).DefaultPrevented())
	assert.Equal(t, 1, logs.FilterMessage("undecodable action").Len())
	assert.Equal(t, 1, logs.FilterMessage("action failed").Len())
}

func TestTriggers(t *testing.T) {
	nav := &navigator{}
	doc, _ := setup(t,
		`<input id="q" data-summon-event="input" data-summon-action="`+attr(t, action.Navigate{URL: "/search"})+`">`+
			`<form id="f" data-summon-action="`+attr(t, action.Navigate{URL: "/submitted"})+`"><button id="submit">go</button></form>`,
		dispatch.WithNavigator(nav))

	assert.False(t, doc.Click(byID(doc, "q")).DefaultPrevented(), "click does not trigger an input action")
	assert.True(t, doc.Dispatch(byID(doc, "q"), "input").DefaultPrevented())
	assert.False(t, doc.Click(byID(doc, "submit")).DefaultPrevented(), "forms trigger on submit")
	assert.True(t, doc.Dispatch(byID(doc, "f"), "submit").DefaultPrevented())
	assert.Equal(t, []string{"/search", "/submitted"}, nav.urls)
}

func TestNestedActionsResolveToNearest(t *testing.T) {
	nav := &navigator{}
	doc, _ := setup(t,
		`<div data-summon-action="`+attr(t, action.Navigate{URL: "/outer"})+`">`+
			`<button id="inner" data-summon-action="`+attr(t, action.Navigate{URL: "/inner"})+`">x</button>`+
			`<span id="bare">y</span></div>`,
		dispatch.WithNavigator(nav))

	doc.Click(byID(doc, "inner"))
	doc.Click(byID(doc, "bare"))
	assert.Equal(t, []string{"/inner", "/outer"}, nav.urls)
}

func TestRPCPrefersLocalCallbacks(t *testing.T) {
	cbs := newCallbacks()
	ran := 0
	id := cbs.Register(func() { ran++ })
	nav := &navigator{}
	tr := &transport{dir: action.Reload()}
	doc, _ := setup(t,
		`<button id="local" data-summon-action="`+attr(t, action.Callback(id))+`">a</button>`+
			`<button id="remote" data-summon-action="`+attr(t, action.Callback("unknown"))+`">b</button>`+
			`<button id="api" data-summon-action="`+attr(t, action.ServerRPC{Endpoint: "/api/save", Payload: map[string]any{"p": "x"}})+`">c</button>`,
		dispatch.WithExecutor(cbs), dispatch.WithTransport(tr), dispatch.WithNavigator(nav))

	assert.True(t, doc.Click(byID(doc, "local")).DefaultPrevented())
	assert.Equal(t, 1, ran)
	assert.Empty(t, tr.calls)

	doc.Click(byID(doc, "remote"))
	doc.Click(byID(doc, "api"))
	assert.Equal(t, []string{"/summon/callback/unknown", "/api/save"}, tr.calls)
	assert.Equal(t, 2, nav.reloads)
}

func TestRPCOnHost(t *testing.T) {
	l := loop.New()
	nav := &navigator{}
	tr := &transport{dir: action.Redirect("/next")}
	doc, _ := setup(t, `<button id="b" data-summon-action="`+attr(t, action.ServerRPC{Endpoint: "/api"})+`">x</button>`,
		dispatch.WithTransport(tr), dispatch.WithNavigator(nav), dispatch.WithHost(l))

	assert.True(t, doc.Click(byID(doc, "b")).DefaultPrevented())
	assert.Eventually(t, func() bool {
		l.RunPending()
		return len(nav.urls) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, "/next", nav.urls[0])
}

func TestHTTPTransport(t *testing.T) {
	var (
		gotHeader string
		gotBody   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(dispatch.RequestHeader)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		switch r.URL.Path {
		case "/summon/callback/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"action":"reload"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr := &dispatch.HTTPTransport{BaseURL: srv.URL}
	dir, err := tr.Call(context.Background(), "/summon/callback/ok", map[string]any{"p": "abc"})
	require.NoError(t, err)
	assert.Equal(t, action.Reload(), dir)
	assert.Equal(t, "true", gotHeader)
	assert.Equal(t, map[string]any{"p": "abc"}, gotBody)

	_, err = tr.Call(context.Background(), "/summon/callback/missing", nil)
	assert.ErrorIs(t, err, dispatch.ErrStatus)
}

// A hydrated island reacts to clicks through its locally bound callback.
func TestHydratedIslandClick(t *testing.T) {
	counter := func(c *compose.Composer) {
		compose.Island(c, "c1", "counter", 0, func(c *compose.Composer, _ int) {
			n := compose.SavedState(c, "n", 0)
			inc := compose.Callback(c, func() { n.Update(func(v int) int { return v + 1 }) })
			c.El("button", []compose.Attr{{Name: "id", Value: "inc"}, compose.OnAction(inc)}, func() { c.Text("+") })
			c.El("output", []compose.Attr{{Name: "id", Value: "out"}}, func() { c.Text(fmt.Sprint(n.Get())) })
		})
	}

	h := render.NewHTML()
	server := compose.New(compose.Options{Backend: h, Callbacks: newCallbacks()})
	require.NoError(t, server.Compose(counter))
	recs, err := server.Islands()
	require.NoError(t, err)
	payload, err := json.Marshal(recs)
	require.NoError(t, err)

	doc, err := dom.ParseString(`<div id="app" data-summon-root="app">` + h.String() + `</div>` +
		`<script id="summon-state-app" type="application/json">` + string(payload) + `</script>`)
	require.NoError(t, err)

	l := loop.New()
	cbs := newCallbacks()
	_, rep, err := hydrate.Hydrate(doc, "app", counter, hydrate.Options{Host: l, Callbacks: cbs})
	require.NoError(t, err)
	require.Zero(t, rep.Created)

	tr := &transport{}
	require.NoError(t, dispatch.New(doc, dispatch.WithExecutor(cbs), dispatch.WithTransport(tr)).Install(byID(doc, "app")))

	doc.Click(byID(doc, "inc"))
	doc.Click(byID(doc, "inc"))
	l.RunPending()
	assert.Equal(t, "2", dom.TextContent(byID(doc, "out")))
	assert.Empty(t, tr.calls)
}
