package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/summon"
	"github.com/pthm/summon/internal/demo"
	"github.com/pthm/summon/lib/action"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo page",
		Long: `Serve the demo page with the callback endpoint and client bundles.

Callbacks registered by each render expire according to the callbacks
section of the configuration; a background sweep drops expired entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			log, err := newLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			summon.SetLogger(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides config)")
	return cmd
}

// newServer wires the demo page, the callback endpoint and the bundles.
func newServer(cfg summon.Config, log *zap.Logger) (*http.ServeMux, *summon.CallbackRegistry, error) {
	key := []byte(cfg.Key)
	if len(key) == 0 {
		log.Warn("no signing key configured, using a random key")
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, nil, err
		}
	}
	enc, err := summon.NewEncoder(key)
	if err != nil {
		return nil, nil, err
	}

	reg := summon.NewCallbackRegistry(append(cfg.Callbacks.Options(),
		summon.WithRegistryLogger(log.Named("callbacks")))...)
	assets := summon.DefaultAssets()
	body := demo.Body(demo.NewStore())

	mux := http.NewServeMux()
	mux.Handle("POST "+action.CallbackPrefix+"{id}", summon.NewCallbackHandler(reg,
		summon.WithHandlerLogger(log.Named("http"))))
	mux.Handle(assets.Prefix(), assets)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		page := summon.Page(demo.RootID, body,
			summon.WithCallbacks(reg),
			summon.WithEncoder(enc),
			summon.WithAssets(assets),
			summon.WithPageLogger(log.Named("page")),
		)
		if err := summon.Render(w, r, layout("summon", page)); err != nil {
			log.Error("render failed", zap.Error(err))
		}
	})
	return mux, reg, nil
}

func serve(ctx context.Context, cfg summon.Config, log *zap.Logger) error {
	mux, reg, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	if every := time.Duration(cfg.Callbacks.SweepInterval); every > 0 && cfg.Callbacks.TTL > 0 {
		go sweep(ctx, reg, every)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func sweep(ctx context.Context, reg *summon.CallbackRegistry, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			reg.Sweep()
		}
	}
}
