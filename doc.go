// Package summon renders declarative UI compositions on the server and
// hydrates them on the client.
//
// A composition is a Go function that emits elements through a
// *compose.Composer. On the server it is rendered to markup together with a
// hydration payload; on the client the same function is run again against
// the parsed document and binds to the existing nodes instead of creating
// new ones.
//
// # Pages
//
// Page wraps a composition root as a templ.Component. The output carries the
// root marker, the markup, the payload block and the client scripts:
//
//	reg := summon.NewCallbackRegistry(summon.WithMaxEntries(10_000))
//	page := summon.Page("app", app, summon.WithCallbacks(reg))
//	summon.Render(w, r, page)
//
// # Islands
//
// Interactive parts of a page are islands. Their saved state and callback
// ids travel in the payload so a client can pick them up where the server
// left off:
//
//	compose.Island(c, "menu", "toggle", 0, func(c *compose.Composer, _ int) {
//	    open := compose.SavedState(c, "open", false)
//	    flip := compose.Callback(c, func() { open.Set(!open.Peek()) })
//	    c.El("button", []compose.Attr{compose.OnAction(flip)}, func() { c.Text("Menu") })
//	})
//
// # Callbacks
//
// Closures captured by compose.Callback on the server live in a
// CallbackRegistry and are executed by POST /summon/callback/{id}, served by
// CallbackHandler. Clients without scripts get a 303 back to the page;
// scripted clients get a JSON directive.
//
// # Client
//
// Hydrate binds a composition to a parsed document and installs the event
// dispatcher on its root. Callbacks bound on the client run locally; other
// RPCs go to the server through the dispatcher's transport.
//
// # Security
//
// RPC props built with compose.RPC are signed with the page's Encoder.
// DecodeRPC verifies them on the way back. The callback endpoint refuses
// cross-site requests.
package summon
