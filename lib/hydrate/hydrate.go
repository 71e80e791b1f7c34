// Package hydrate binds client compositions to server-rendered markup.
//
// A pass walks the existing nodes under a root container in composition
// order and claims them instead of creating new ones. Differences are
// corrected and reported as diagnostics; a pass never aborts because of
// them. After a successful pass the root is marked hydrated, and further
// passes over it return immediately.
package hydrate

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dom"
	"github.com/pthm/summon/lib/encoding"
	"github.com/pthm/summon/lib/render"
)

// Options configures a hydration pass.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Host schedules recompositions after hydration.
	Host compose.Host

	// Callbacks binds the callback ids recorded by the server.
	Callbacks compose.CallbackRegistrar

	// Encoder signs RPC payload props created on the client.
	Encoder *encoding.Encoder

	// ErrorSink receives isolated component failures.
	ErrorSink func(err error)
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Report summarizes a hydration pass.
type Report struct {
	RootID      string
	Skipped     bool
	Created     int
	Claimed     int
	Replaced    int
	Islands     int
	Chunks      int
	Diagnostics []Diagnostic
}

// Clean reports whether the pass matched the server markup exactly.
func (r Report) Clean() bool {
	return len(r.Diagnostics) == 0
}

// pass is one hydration in progress.
type pass struct {
	root    *html.Node
	rootID  string
	matcher *Matcher
	live    *render.Live
	c       *compose.Composer
	log     *zap.Logger
	recs    map[string]compose.IslandRecord
}

func begin(doc *dom.Document, rootID string, opts Options, yield func()) (*pass, Report, error) {
	rep := Report{RootID: rootID}
	root, err := Root(doc, rootID)
	if err != nil {
		return nil, rep, err
	}
	if IsHydrated(root) {
		rep.Skipped = true
		return nil, rep, nil
	}
	log := opts.logger().With(zap.String("root", rootID))
	recs, err := ReadPayload(doc, rootID)
	if err != nil {
		log.Warn("hydration payload unavailable", zap.Error(err))
	}

	p := &pass{root: root, rootID: rootID, log: log, recs: recs}
	p.matcher = NewMatcher(log)
	p.live = render.NewLive(root, p.matcher)
	p.c = compose.New(compose.Options{
		Backend:   p.live,
		Host:      opts.Host,
		ErrorSink: opts.ErrorSink,
		Logger:    log,
		Records:   recs,
		Callbacks: opts.Callbacks,
		Encoder:   opts.Encoder,
		Yield:     yield,
	})
	return p, rep, nil
}

func (p *pass) finish(rep *Report) {
	p.live.SetClaimer(nil)
	MarkHydrated(p.root)
	rep.Created = p.live.Created()
	rep.Claimed = p.live.Claimed()
	rep.Replaced = p.matcher.Replaced()
	rep.Diagnostics = p.matcher.Diagnostics()
	if recs, err := p.c.Islands(); err == nil {
		rep.Islands = len(recs)
	}
	p.log.Debug("hydrated",
		zap.Int("claimed", rep.Claimed),
		zap.Int("created", rep.Created),
		zap.Int("replaced", rep.Replaced),
		zap.Int("diagnostics", len(rep.Diagnostics)),
	)
}

// Hydrate binds body to the server markup of rootID in one pass. It returns
// a nil composer and a skipped report when the root is already hydrated.
func Hydrate(doc *dom.Document, rootID string, body func(c *compose.Composer), opts Options) (*compose.Composer, Report, error) {
	p, rep, err := begin(doc, rootID, opts, nil)
	if err != nil || p == nil {
		return nil, rep, err
	}
	if err := p.c.Compose(body); err != nil {
		return nil, rep, err
	}
	rep.Chunks = 1
	p.finish(&rep)
	return p.c, rep, nil
}

// HydrateIslands hydrates every island of every unhydrated root in doc as an
// independent composition, resolving island types through f. Islands whose
// type is unknown are replaced by an error placeholder.
func HydrateIslands(doc *dom.Document, f *compose.Factories, opts Options) ([]*compose.Composer, []Report, error) {
	var (
		roots   []*compose.Composer
		reports []Report
	)
	log := opts.logger()
	for _, rootID := range Roots(doc) {
		root, err := Root(doc, rootID)
		if err != nil {
			return roots, reports, err
		}
		rep := Report{RootID: rootID}
		if IsHydrated(root) {
			rep.Skipped = true
			reports = append(reports, rep)
			continue
		}
		recs, err := ReadPayload(doc, rootID)
		if err != nil {
			log.Warn("hydration payload unavailable", zap.String("root", rootID), zap.Error(err))
		}

		for _, el := range islandElements(root) {
			id, _ := dom.Attr(el, compose.AttrID)
			rec, ok := recs[id]
			if !ok {
				rec.Type, _ = dom.Attr(el, compose.AttrType)
			}
			matcher := NewMatcher(log)
			live := render.NewLive(el.Parent, matcher)
			c := compose.New(compose.Options{
				Backend:   live,
				Host:      opts.Host,
				ErrorSink: opts.ErrorSink,
				Logger:    log,
				Records:   recs,
				Callbacks: opts.Callbacks,
				Encoder:   opts.Encoder,
			})
			var derr error
			if err := c.Compose(func(c *compose.Composer) {
				derr = compose.Dynamic(c, id, rec, f)
			}); err != nil {
				return roots, reports, err
			}
			if derr != nil {
				log.Warn("island not hydrated", zap.String("island", id), zap.Error(derr))
			}
			live.SetClaimer(nil)
			roots = append(roots, c)
			rep.Islands++
			rep.Created += live.Created()
			rep.Claimed += live.Claimed()
			rep.Replaced += matcher.Replaced()
			rep.Diagnostics = append(rep.Diagnostics, matcher.Diagnostics()...)
		}
		MarkHydrated(root)
		rep.Chunks = rep.Islands
		reports = append(reports, rep)
	}
	return roots, reports, nil
}

// islandElements returns the outermost island elements below root.
func islandElements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && dom.HasAttr(c, compose.AttrID) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return out
}
