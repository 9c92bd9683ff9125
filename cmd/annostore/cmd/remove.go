package cmd

import (
	"github.com/spf13/cobra"

	"github.com/annolab/annostore/internal/ui"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an annotation and reindex its dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			removed, report, err := eng.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printer := ui.NewPrinter(cmd.OutOrStdout())
			printer.Successf("removed annotation %s", removed.ID)
			reportSweep(printer, report)
			return nil
		},
	}
}
