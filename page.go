package summon

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/render"
)

// PageOption configures Page.
type PageOption func(*pageConfig)

type pageConfig struct {
	callbacks compose.CallbackRegistrar
	encoder   *Encoder
	assets    *Assets
	scripts   bool
	log       *zap.Logger
	errorSink func(error)
}

// WithCallbacks stores the page's callbacks in reg. Pages composing
// compose.Callback require it.
func WithCallbacks(reg compose.CallbackRegistrar) PageOption {
	return func(c *pageConfig) { c.callbacks = reg }
}

// WithEncoder signs the props of compose.RPC actions with enc.
func WithEncoder(enc *Encoder) PageOption {
	return func(c *pageConfig) { c.encoder = enc }
}

// WithAssets renders script tags for the bundles served by a.
func WithAssets(a *Assets) PageOption {
	return func(c *pageConfig) {
		c.assets = a
		c.scripts = true
	}
}

// WithoutScripts leaves the script tags out, for pages that load the client
// runtime in their layout.
func WithoutScripts() PageOption {
	return func(c *pageConfig) { c.scripts = false }
}

// WithPageLogger sets the composition logger.
func WithPageLogger(l *zap.Logger) PageOption {
	return func(c *pageConfig) { c.log = l }
}

// WithErrorSink receives component failures isolated during rendering.
func WithErrorSink(fn func(error)) PageOption {
	return func(c *pageConfig) { c.errorSink = fn }
}

var defaultAssets = NewAssets(StaticPrefix)

// DefaultAssets returns the bundles served under StaticPrefix.
func DefaultAssets() *Assets { return defaultAssets }

// Page renders body as the composition root rootID: the root container, the
// hydration payload and the client scripts.
//
//	<div data-summon-root="app">...</div>
//	<script id="summon-state-app" type="application/json">{...}</script>
//	<script type="module" src="/summon/static/summon.<hash>.js" defer></script>
//	<script nomodule src="/summon/static/summon.legacy.<hash>.js" defer></script>
//
// Each render runs a fresh composition.
func Page(rootID string, body func(c *compose.Composer), opts ...PageOption) templ.Component {
	cfg := pageConfig{assets: defaultAssets, scripts: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = Logger()
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := render.NewHTML()
		c := compose.New(compose.Options{
			Backend:   h,
			Callbacks: cfg.callbacks,
			Encoder:   cfg.encoder,
			Logger:    cfg.log.With(zap.String("root", rootID)),
			ErrorSink: cfg.errorSink,
		})
		if err := c.Compose(body); err != nil {
			return err
		}
		recs, err := c.Islands()
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<div %s="%s">`, compose.AttrRoot, templ.EscapeString(rootID)); err != nil {
			return err
		}
		if _, err := h.WriteTo(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</div>`); err != nil {
			return err
		}
		if err := templ.JSONScript(compose.PayloadID(rootID), recs).Render(ctx, w); err != nil {
			return err
		}
		if cfg.scripts && cfg.assets != nil {
			return cfg.assets.Scripts().Render(ctx, w)
		}
		return nil
	})
}
