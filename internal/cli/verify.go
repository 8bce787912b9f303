package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"readqc/internal/report"
)

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <report.html>",
		Short: "Check an aggregate report artifact",
		Long: `Print whether the report is present, empty or missing.

The check is advisory and always exits 0.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], report.Verify(args[0]))
			return nil
		},
	}
}
