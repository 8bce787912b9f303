package cli

import (
	"github.com/spf13/cobra"

	"readqc/internal/pipeline"
	"readqc/internal/sample"
)

func newDiscoverCommand(app *App) *cobra.Command {
	var inputDir string

	cmd := &cobra.Command{
		Use:   "discover -i <input-dir>",
		Short: "List the samples a run would process",
		Long: `Pair forward and reverse reads with the configured naming rules and
print the resulting samples. Reads without a mate are listed as skipped.
No tools are run and no output directories are created.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputDir == "" {
				return usageError(cmd, `required flag "input" must be set`)
			}

			rc, err := pipeline.NewRunConfig(app.Config, inputDir, "")
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(1)
			}

			d, err := sample.Discover(inputDir, rc.Rules)
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(1)
			}
			app.Printer.Discovery(d)

			if err := d.Validate(); err != nil {
				app.Printer.Error(err)
				return NewExitError(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory containing paired FASTQ files (required)")
	return cmd
}
