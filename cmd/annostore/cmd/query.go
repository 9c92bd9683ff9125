package cmd

import (
	"github.com/spf13/cobra"

	"github.com/annolab/annostore/internal/index"
	"github.com/annolab/annostore/internal/ui"
)

func newQueryCmd() *cobra.Command {
	var (
		targetID   string
		targetType string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find annotations by target",
		Long: `Query returns every annotation whose resolved target chain contains the
given target. Matches include annotations that reference the target
indirectly, through other annotations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			hits, err := eng.QueryByTarget(cmd.Context(), index.Criteria{
				TargetID:   targetID,
				TargetType: targetType,
			})
			if err != nil {
				return err
			}

			if len(hits) == 0 {
				ui.NewPrinter(cmd.OutOrStdout()).Plainf("no annotations matched")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), hits)
		},
	}

	cmd.Flags().StringVar(&targetID, "target-id", "", "Match annotations targeting this id, directly or through a chain")
	cmd.Flags().StringVar(&targetType, "target-type", "", "Match annotations targeting this type")
	return cmd
}
