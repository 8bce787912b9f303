package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"readqc/internal/report"
	"readqc/internal/stage"
)

func newSummaryCommand(app *App) *cobra.Command {
	var sampleID string

	cmd := &cobra.Command{
		Use:   "summary <output-dir>",
		Short: "Print the summary of a finished run",
		Long: `Read run_report.yaml from a previous run's output directory and print
its warnings and per-sample outcomes.

With --sample, print the stages, exit codes and logs of one sample instead.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			rr, err := report.ReadFile(stage.Layout{Root: args[0]}.RunReportPath())
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(1)
			}

			if sampleID != "" {
				o, ok := rr.Outcome(sampleID)
				if !ok {
					app.Printer.Error(fmt.Errorf("sample %q is not in the run report", sampleID))
					return NewExitError(1)
				}
				app.Printer.Outcome(rr, o)
				return nil
			}

			for _, w := range rr.Warnings {
				app.Printer.Warning(w)
			}
			app.Printer.Summary(rr)
			return nil
		},
	}

	cmd.Flags().StringVar(&sampleID, "sample", "", "print one sample's outcome")
	return cmd
}
