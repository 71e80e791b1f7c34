package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pthm/summon"
	"github.com/pthm/summon/internal/demo"
	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dispatch"
	"github.com/pthm/summon/lib/dom"
	"github.com/pthm/summon/lib/hydrate"
	"github.com/pthm/summon/lib/loop"
)

// RenderOptions holds the render command flags.
type RenderOptions struct {
	Hydrate bool
	Islands bool
	Clicks  int
	Format  string
}

// CheckResult is the outcome of an in-process hydration.
type CheckResult struct {
	Root        string               `json:"root"`
	Claimed     int                  `json:"claimed"`
	Created     int                  `json:"created"`
	Islands     int                  `json:"islands"`
	Chunks      int                  `json:"chunks"`
	Diagnostics []hydrate.Diagnostic `json:"diagnostics,omitempty"`
	Clicks      int                  `json:"clicks,omitempty"`
	Counter     string               `json:"counter,omitempty"`
	Clean       bool                 `json:"clean"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the demo page",
		Long: `Render the demo page to stdout.

With --hydrate the markup is parsed into an in-memory document and hydrated
in idle chunks on an in-process event loop, then a report of claimed and
created nodes is printed instead. --clicks activates the counter that many
times after hydration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runRender(cmd.Context(), cmd.OutOrStdout(), cfg, log, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Hydrate, "hydrate", false, "hydrate the markup in process and report")
	cmd.Flags().BoolVar(&opts.Islands, "islands", false, "hydrate island by island through the factories")
	cmd.Flags().IntVar(&opts.Clicks, "clicks", 0, "counter clicks to simulate after hydration")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "report format (json|text)")
	return cmd
}

func renderPage(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	page := summon.Page(demo.RootID, demo.Body(demo.NewStore()),
		summon.WithCallbacks(summon.NewCallbackRegistry()),
		summon.WithoutScripts(),
	)
	if err := layout("summon", page).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func runRender(ctx context.Context, w io.Writer, cfg summon.Config, log *zap.Logger, opts *RenderOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	markup, err := renderPage(ctx)
	if err != nil {
		return err
	}
	if !opts.Hydrate && !opts.Islands {
		_, err := io.WriteString(w, markup)
		return err
	}

	doc, err := dom.ParseString(markup)
	if err != nil {
		return err
	}
	var res CheckResult
	if opts.Islands {
		res, err = checkIslands(doc, log, opts.Clicks)
	} else {
		res, err = checkRoot(ctx, doc, log, time.Duration(cfg.Hydration.Timeout), opts.Clicks)
	}
	if err != nil {
		return err
	}
	return writeResult(w, opts.Format, res)
}

// checkRoot hydrates the demo root in idle chunks on an event loop.
func checkRoot(ctx context.Context, doc *dom.Document, log *zap.Logger, timeout time.Duration, clicks int) (CheckResult, error) {
	l := loop.New()
	reg := summon.NewCallbackRegistry(summon.WithRegistryLogger(log))

	type outcome struct {
		c   *compose.Composer
		rep hydrate.Report
		err error
	}
	done := make(chan outcome, 1)
	hydrate.Schedule(doc, demo.RootID, demo.App, l, hydrate.Options{Logger: log, Callbacks: reg}, timeout,
		func(c *compose.Composer, rep hydrate.Report, err error) {
			done <- outcome{c, rep, err}
		})

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = l.Run(lctx) }()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return CheckResult{}, ctx.Err()
	}
	if out.err != nil {
		return CheckResult{}, out.err
	}

	res := reportResult(out.rep)
	if clicks > 0 {
		counter, err := click(doc, reg, clicks, func(fn func()) {
			ran := make(chan struct{})
			l.Post(func() {
				fn()
				close(ran)
			})
			<-ran
		})
		if err != nil {
			return res, err
		}
		res.Clicks, res.Counter = clicks, counter
	}
	return res, nil
}

// checkIslands hydrates each island as its own root.
func checkIslands(doc *dom.Document, log *zap.Logger, clicks int) (CheckResult, error) {
	reg := summon.NewCallbackRegistry(summon.WithRegistryLogger(log))
	roots, reps, err := hydrate.HydrateIslands(doc, demo.Factories(), hydrate.Options{Logger: log, Callbacks: reg})
	if err != nil {
		return CheckResult{}, err
	}
	if len(reps) == 0 {
		return CheckResult{}, fmt.Errorf("no composition roots in markup")
	}

	res := reportResult(reps[0])
	if clicks > 0 {
		counter, err := click(doc, reg, clicks, func(fn func()) {
			fn()
			for _, c := range roots {
				_ = c.RunPending()
			}
		})
		if err != nil {
			return res, err
		}
		res.Clicks, res.Counter = clicks, counter
	}
	return res, nil
}

// click activates the counter button n times through a dispatcher and
// returns the counter's text. run executes fn on the composition's thread.
func click(doc *dom.Document, reg *summon.CallbackRegistry, n int, run func(fn func())) (string, error) {
	root, err := hydrate.Root(doc, demo.RootID)
	if err != nil {
		return "", err
	}
	d := dispatch.New(doc, dispatch.WithExecutor(reg))
	if err := d.Install(root); err != nil && !dispatch.IsAlreadyInstalled(err) {
		return "", err
	}

	island := dom.ElementByAttr(root, compose.AttrID, "clicks")
	if island == nil {
		return "", fmt.Errorf("counter island missing")
	}
	button := dom.Find(island, isElement("button"))
	for i := 0; i < n; i++ {
		run(func() { doc.Click(button) })
	}
	var text string
	run(func() { text = dom.TextContent(dom.Find(island, isElement("output"))) })
	return text, nil
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == tag }
}

func reportResult(rep hydrate.Report) CheckResult {
	return CheckResult{
		Root:        rep.RootID,
		Claimed:     rep.Claimed,
		Created:     rep.Created,
		Islands:     rep.Islands,
		Chunks:      rep.Chunks,
		Diagnostics: rep.Diagnostics,
		Clean:       rep.Clean(),
	}
}

func writeResult(w io.Writer, format string, res CheckResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "root %s: claimed %d, created %d, islands %d, chunks %d\n",
		res.Root, res.Claimed, res.Created, res.Islands, res.Chunks)
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "  %v\n", d)
	}
	if res.Clicks > 0 {
		fmt.Fprintf(w, "counter after %d clicks: %s\n", res.Clicks, res.Counter)
	}
	if res.Clean {
		fmt.Fprintln(w, "clean")
	}
	return nil
}
