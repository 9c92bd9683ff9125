package cmd

import (
	"github.com/spf13/cobra"

	"github.com/annolab/annostore/internal/ui"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the search index from the store",
		Long: `Rebuild walks every stored annotation, recomputes its target chain, and
rewrites its index document. Use it to repair the index after a failed
propagation sweep or a crash between store and index writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := eng.Rebuild(cmd.Context())
			if err != nil {
				return err
			}

			printer := ui.NewPrinter(cmd.OutOrStdout())
			printer.Successf("rebuilt index documents for %d annotation(s)", len(report.Updated))
			for _, f := range report.Failures {
				printer.Warnf("annotation %s not reindexed: %v", f.ID, f.Err)
			}
			return nil
		},
	}
}
