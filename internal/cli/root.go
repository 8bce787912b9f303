// Package cli provides the command-line interface for readqc.
//
// The CLI is built on Cobra. [App] carries the injected dependencies so the
// commands can be exercised in tests without spawning real tools, and
// [RunWithConfig] returns the exit code instead of exiting.
//
// Commands:
//   - readqc -i <dir> -o <dir>: run the full QC pipeline
//   - readqc discover -i <dir>: list the samples a run would process
//   - readqc verify <report.html>: check an aggregate report artifact
//   - readqc summary <outdir>: print the summary of a finished run
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"readqc/internal/config"
	"readqc/internal/output"
	"readqc/internal/tool"
)

// App holds the dependencies shared by all commands.
type App struct {
	// Config is the loaded configuration. Flags override it per run.
	Config *config.Config

	// Runner executes external tools.
	Runner tool.Runner

	// Printer renders progress and summaries.
	Printer *output.Printer

	// Preflight checks tool availability before a run. Nil uses
	// [tool.Preflight].
	Preflight func(commands ...string) error

	// ConfigErr is the error from loading the environment and config file.
	// It is reported when a command runs, so help and usage still work
	// with a broken configuration. An explicit --config replaces it.
	ConfigErr error
}

// NewApp creates an App with production dependencies.
func NewApp(cfg *config.Config) *App {
	printer := output.NewPrinter()
	if !cfg.Output.Color {
		printer.SetColor(false)
	}
	return &App{
		Config:  cfg,
		Runner:  tool.NewExecRunner(),
		Printer: printer,
	}
}

// ExecuteResult is the outcome of one CLI invocation.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(app *App) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "readqc -i <input-dir> -o <output-dir>",
		Short: "Paired-end read QC pipeline",
		Long: `Run quality control over a directory of paired-end FASTQ files:
  1. raw-qc    - FastQC on the raw reads
  2. trim      - fastp adapter and quality trimming
  3. post-qc   - FastQC on the trimmed reads
  4. aggregate - one MultiQC report over both QC passes

A failing sample is reported and skipped; the others continue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				if app.ConfigErr != nil {
					app.Printer.Error(app.ConfigErr)
					return NewExitError(1)
				}
				return nil
			}
			cfg, err := config.NewLoader().LoadFromFile(configPath)
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(1)
			}
			app.Config = cfg
			app.ConfigErr = nil
			return nil
		},
	}
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd, err.Error())
	})
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (overrides READQC_CONFIG_PATH)")

	addRunFlags(rootCmd, app)

	rootCmd.AddCommand(
		newDiscoverCommand(app),
		newVerifyCommand(app),
		newSummaryCommand(app),
	)

	return rootCmd
}

// usageError prints msg followed by the command's usage to stdout and
// returns exit code 1.
func usageError(cmd *cobra.Command, msg string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", msg)
	_ = cmd.Usage()
	return NewExitError(1)
}

// usageArgs wraps a positional argument validator so its errors print usage
// like flag errors do.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError(cmd, err.Error())
		}
		return nil
	}
}

// RunWithConfig runs the CLI with args and returns the exit code.
func RunWithConfig(ctx context.Context, cfg *config.Config, args []string) ExecuteResult {
	return runApp(ctx, NewApp(cfg), args)
}

func runApp(ctx context.Context, app *App, args []string) ExecuteResult {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		app.Printer.Error(err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// Execute loads configuration, runs the CLI with os.Args and exits.
//
// A configuration that fails to load is reported by the command that runs,
// not here, so --help still prints usage. SIGINT and SIGTERM cancel the run
// context; running tools are stopped and the remaining samples are marked
// failed.
func Execute() {
	cfg, loadErr := config.NewLoader().Load()
	if loadErr != nil {
		cfg = config.DefaultConfig()
	}
	app := NewApp(cfg)
	app.ConfigErr = loadErr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result := runApp(ctx, app, os.Args[1:])
	stop()

	os.Exit(result.ExitCode)
}
