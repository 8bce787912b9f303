package cli

import (
	"github.com/spf13/cobra"

	"readqc/internal/pipeline"
)

// addRunFlags wires the pipeline run onto the root command.
func addRunFlags(cmd *cobra.Command, app *App) {
	var (
		inputDir  string
		outputDir string
		threads   int
		workers   int
	)

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory containing paired FASTQ files (required)")
	cmd.Flags().StringVarP(&outputDir, "outdir", "o", "", "output directory (required)")
	cmd.Flags().IntVarP(&threads, "threads", "t", 8, "threads passed to each tool")
	cmd.Flags().IntVar(&workers, "workers", 1, "samples processed concurrently within a stage")

	cmd.Args = usageArgs(cobra.NoArgs)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if inputDir == "" || outputDir == "" {
			return usageError(cmd, `required flags "input" and "outdir" must be set`)
		}

		cfg := *app.Config
		if cmd.Flags().Changed("threads") {
			cfg.Threads = threads
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = workers
		}
		if err := cfg.Validate(); err != nil {
			return usageError(cmd, err.Error())
		}

		rc, err := pipeline.NewRunConfig(&cfg, inputDir, outputDir)
		if err != nil {
			app.Printer.Error(err)
			return NewExitError(1)
		}

		orch := pipeline.NewOrchestrator(app.Runner, app.Printer)
		if app.Preflight != nil {
			orch.SetPreflight(app.Preflight)
		}

		rr, err := orch.Run(cmd.Context(), rc)
		if err != nil {
			app.Printer.Error(err)
			return NewExitError(1)
		}

		app.Printer.Summary(rr)
		return nil
	}
}
