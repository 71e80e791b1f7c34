// Package summonecho provides Echo framework integration for summon.
//
// Mount the callback endpoint and the client bundles onto an Echo instance
// or group:
//
//	e := echo.New()
//	m := summonecho.Mount(e)
//	e.GET("/", func(c echo.Context) error {
//	    return summonecho.Page(c, "app", app, m.PageOptions()...)
//	})
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	m := summonecho.MountGroup(g, summonecho.WithAssets(summon.NewAssets("/app"+summon.StaticPrefix)))
package summonecho

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/summon"
	"github.com/pthm/summon/lib/action"
	"github.com/pthm/summon/lib/compose"
)

// Option configures the Mount and MountGroup functions.
type Option func(*options)

type options struct {
	key     []byte
	reg     *summon.CallbackRegistry
	regOpts []summon.RegistryOption
	hdlOpts []summon.HandlerOption
	assets  *summon.Assets
}

// WithKey sets the key signing RPC props.
// The key should be at least 32 bytes of cryptographically random data.
// If not provided, a random key is generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithRegistry serves callbacks from reg instead of a new registry.
func WithRegistry(reg *summon.CallbackRegistry) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithRegistryOptions configures the registry Mount creates.
func WithRegistryOptions(opts ...summon.RegistryOption) Option {
	return func(o *options) {
		o.regOpts = append(o.regOpts, opts...)
	}
}

// WithHandlerOptions configures the callback handler.
func WithHandlerOptions(opts ...summon.HandlerOption) Option {
	return func(o *options) {
		o.hdlOpts = append(o.hdlOpts, opts...)
	}
}

// WithAssets serves and links the bundles of a. Defaults to
// summon.DefaultAssets().
func WithAssets(a *summon.Assets) Option {
	return func(o *options) {
		o.assets = a
	}
}

// Mounted holds what Mount wired up.
type Mounted struct {
	Callbacks *summon.CallbackRegistry
	Handler   *summon.CallbackHandler
	Assets    *summon.Assets
	Encoder   *summon.Encoder
}

// PageOptions returns the summon.Page options rendering pages against m.
func (m *Mounted) PageOptions() []summon.PageOption {
	return []summon.PageOption{
		summon.WithCallbacks(m.Callbacks),
		summon.WithEncoder(m.Encoder),
		summon.WithAssets(m.Assets),
	}
}

type router interface {
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	Match(methods []string, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) []*echo.Route
}

// Mount registers POST /summon/callback/:id and GET /summon/static/* on e.
//
//	e := echo.New()
//	m := summonecho.Mount(e)
//
//	// With options:
//	m := summonecho.Mount(e, summonecho.WithKey(key))
func Mount(e *echo.Echo, opts ...Option) *Mounted {
	return mount(e, opts)
}

// MountGroup registers the summon routes on an Echo group.
// This allows callbacks to share middleware with the group (auth, logging, etc.).
//
//	g := e.Group("/app", authMiddleware)
//	m := summonecho.MountGroup(g)
func MountGroup(g *echo.Group, opts ...Option) *Mounted {
	return mount(g, opts)
}

func mount(r router, opts []Option) *Mounted {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("summonecho: failed to generate random key: %v", err))
		}
	}
	enc, err := summon.NewEncoder(key)
	if err != nil {
		panic(fmt.Sprintf("summonecho: %v", err))
	}

	reg := o.reg
	if reg == nil {
		reg = summon.NewCallbackRegistry(o.regOpts...)
	}
	assets := o.assets
	if assets == nil {
		assets = summon.DefaultAssets()
	}
	m := &Mounted{
		Callbacks: reg,
		Handler:   summon.NewCallbackHandler(reg, o.hdlOpts...),
		Assets:    assets,
		Encoder:   enc,
	}

	r.POST(action.CallbackPrefix+":id", m.callback)
	r.Match([]string{http.MethodGet, http.MethodHead}, summon.StaticPrefix+"*", m.static)
	return m
}

func (m *Mounted) callback(c echo.Context) error {
	req := c.Request()
	req.SetPathValue("id", c.Param("id"))
	m.Handler.ServeHTTP(c.Response(), req)
	return nil
}

// static rewrites the path onto the assets prefix, since a group mount
// serves them under the group's path.
func (m *Mounted) static(c echo.Context) error {
	req := c.Request().Clone(c.Request().Context())
	req.URL.Path = m.Assets.Prefix() + c.Param("*")
	m.Assets.ServeHTTP(c.Response(), req)
	return nil
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return summonecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}

// Page renders body as composition root rootID.
func Page(c echo.Context, rootID string, body func(c *compose.Composer), opts ...summon.PageOption) error {
	return Render(c, summon.Page(rootID, body, opts...))
}
