package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pthm/summon"
)

// NewAssetsCommand creates the assets command.
func NewAssetsCommand(rootOpts *RootOptions) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List the client bundles and their URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := summon.NewAssets(prefix)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tSIZE\tKIND\tURL")
			for _, asset := range a.List() {
				kind := "nomodule"
				if asset.Module {
					kind = "module"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", asset.File(), asset.Size(), kind, a.URL(asset))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", summon.StaticPrefix, "URL prefix the bundles are served under")
	return cmd
}
