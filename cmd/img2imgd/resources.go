package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"img2imgd/internal/registry"
)

func newResourcesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List model weight files in the resource directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd, nil)
			if err != nil {
				return err
			}
			dir, err := cfg.ResolvedResourceDir()
			if err != nil {
				return err
			}
			res, err := registry.LoadDir(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res) == 0 {
				fmt.Fprintf(out, "no model weights in %s\n", dir)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFORMAT\tSIZE")
			for _, r := range res {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Format, humanize.IBytes(uint64(r.SizeBytes)))
			}
			return tw.Flush()
		},
	}
}
