package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/annolab/annostore/internal/engine"
	"github.com/annolab/annostore/internal/model"
	"github.com/annolab/annostore/internal/ui"
)

func newAddCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an annotation from a JSON document",
		Long: `Add reads one annotation document (from --file or stdin), stores it,
indexes it with its resolved target chain, and reports the assigned id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(file)
			if err != nil {
				return err
			}

			var a model.Annotation
			if err := json.Unmarshal(data, &a); err != nil {
				return fmt.Errorf("parse annotation: %w", err)
			}

			eng, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			stored, report, err := eng.Add(cmd.Context(), &a)
			if err != nil {
				return err
			}

			printer := ui.NewPrinter(cmd.OutOrStdout())
			printer.Successf("added annotation %s", stored.ID)
			reportSweep(printer, report)
			return printJSON(cmd.OutOrStdout(), stored)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Annotation JSON file (default: stdin)")
	return cmd
}

func readInput(file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportSweep summarizes a propagation report on the status stream.
func reportSweep(printer *ui.Printer, report *engine.Report) {
	if report == nil {
		return
	}
	if n := len(report.Updated); n > 0 {
		printer.Plainf("reindexed %d dependent annotation(s)", n)
	}
	for _, f := range report.Failures {
		printer.Warnf("dependent %s not reindexed: %v (run 'annostore rebuild' to repair)", f.ID, f.Err)
	}
	if report.Truncated {
		printer.Warnf("dependency sweep stopped at the depth bound; run 'annostore rebuild' to repair")
	}
}
