package main

import (
	"github.com/spf13/cobra"

	"github.com/pthm/summon"
)

const version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// load reads the configuration file, if any, and applies flag overrides.
func (o *RootOptions) load() (summon.Config, error) {
	cfg := summon.DefaultConfig()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = summon.LoadConfig(o.ConfigPath); err != nil {
			return cfg, err
		}
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	return cfg, cfg.Validate()
}

// NewRootCommand creates the root command for the summon CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "summon",
		Short: "summon - declarative UI composition with SSR hydration",
		Long: `Serve, render and self-check summon compositions.

The demo page composes a counter, a toggle and a disclosure. serve hosts it
with the callback endpoint and client bundles; render prints its markup and
can hydrate it in process to verify the server output claims cleanly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (auto|console|json)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewAssetsCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("summon version %s\n", version)
		},
	}
}
