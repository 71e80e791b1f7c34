package summon

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dispatch"
	"github.com/pthm/summon/lib/dom"
	"github.com/pthm/summon/lib/hydrate"
)

// ClientOptions configures Hydrate.
type ClientOptions struct {
	// Host schedules recompositions and applies RPC directives. Without a
	// host, recompositions run when the caller calls RunPending.
	Host compose.Host

	// Navigator receives Navigate actions and reload directives.
	Navigator dispatch.Navigator

	// Transport carries RPCs no local callback handles.
	Transport dispatch.Transport

	// Encoder signs RPC props created on the client.
	Encoder *Encoder

	Logger    *zap.Logger
	ErrorSink func(error)
}

// Client is a hydrated composition root with its event dispatcher. A client
// for a root that was already hydrated carries only Doc and a skipped
// Report; its Composer, Callbacks and Dispatcher are nil.
type Client struct {
	Doc        *dom.Document
	Composer   *compose.Composer
	Report     hydrate.Report
	Callbacks  *CallbackRegistry
	Dispatcher *dispatch.Dispatcher
}

// Hydrate binds body to the server markup of rootID in doc and installs the
// event dispatcher on the root. Callbacks recorded by the server are bound
// to the client's closures and run locally when their elements are
// activated.
//
// Hydrating a root twice is a no-op: the second client has a skipped report
// and nil Composer, Callbacks and Dispatcher.
func Hydrate(doc *dom.Document, rootID string, body func(c *compose.Composer), opts ClientOptions) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	cbs := NewCallbackRegistry(WithRegistryLogger(log))

	c, rep, err := hydrate.Hydrate(doc, rootID, body, hydrate.Options{
		Logger:    log,
		Host:      opts.Host,
		Callbacks: cbs,
		Encoder:   opts.Encoder,
		ErrorSink: opts.ErrorSink,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHydrationFailed, err)
	}
	if rep.Skipped {
		return &Client{Doc: doc, Report: rep}, nil
	}

	dopts := []dispatch.Option{dispatch.WithLogger(log), dispatch.WithExecutor(cbs)}
	if opts.Navigator != nil {
		dopts = append(dopts, dispatch.WithNavigator(opts.Navigator))
	}
	if opts.Transport != nil {
		dopts = append(dopts, dispatch.WithTransport(opts.Transport))
	}
	if opts.Host != nil {
		dopts = append(dopts, dispatch.WithHost(opts.Host))
	}
	d := dispatch.New(doc, dopts...)
	root, err := hydrate.Root(doc, rootID)
	if err != nil {
		return nil, err
	}
	if err := d.Install(root); err != nil {
		return nil, err
	}

	return &Client{Doc: doc, Composer: c, Report: rep, Callbacks: cbs, Dispatcher: d}, nil
}

// RunPending runs the composition's pending recomposition batch.
func (cl *Client) RunPending() error {
	if cl.Composer == nil {
		return nil
	}
	return cl.Composer.RunPending()
}
