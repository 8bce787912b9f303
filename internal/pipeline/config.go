package pipeline

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"readqc/internal/config"
	runlog "readqc/internal/log"
	"readqc/internal/sample"
	"readqc/internal/stage"
)

// ErrConfig marks a run that could not start because of its configuration:
// a missing or non-directory input, an unwritable output directory, or a
// sample id collision. The CLI maps it to exit code 1.
var ErrConfig = errors.New("configuration error")

// RunConfig is the immutable configuration of one run.
type RunConfig struct {
	InputDir  string
	OutputDir string

	// Threads is passed to every tool; Workers bounds per-stage fan-out.
	Threads int
	Workers int

	// StageTimeout bounds one tool invocation. Zero means no limit.
	StageTimeout time.Duration

	Rules []sample.Rule

	FastQC  string
	Fastp   string
	MultiQC string

	Trim stage.TrimOptions

	// RawQCTolerant lets a sample continue past a failed pre-trim FastQC.
	RawQCTolerant bool

	ReportFilename string
	ReportModule   string

	LogLevel zapcore.Level
}

// NewRunConfig builds a RunConfig from loaded configuration and the
// directories given on the command line.
func NewRunConfig(cfg *config.Config, inputDir, outputDir string) (RunConfig, error) {
	level, err := runlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return RunConfig{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	rules := make([]sample.Rule, len(cfg.NamingRules))
	for i, r := range cfg.NamingRules {
		rules[i] = sample.Rule{
			ForwardGlob:   r.ForwardGlob,
			ForwardMarker: r.ForwardMarker,
			ReverseMarker: r.ReverseMarker,
		}
	}

	return RunConfig{
		InputDir:     inputDir,
		OutputDir:    outputDir,
		Threads:      cfg.Threads,
		Workers:      cfg.Workers,
		StageTimeout: cfg.StageTimeout,
		Rules:        rules,
		FastQC:       cfg.Tools.FastQC,
		Fastp:        cfg.Tools.Fastp,
		MultiQC:      cfg.Tools.MultiQC,
		Trim: stage.TrimOptions{
			QualifiedQuality:   cfg.Trim.QualifiedQuality,
			LengthRequired:     cfg.Trim.LengthRequired,
			DetectAdapterForPE: cfg.Trim.DetectAdapterForPE,
		},
		RawQCTolerant:  cfg.QC.TolerateRawFailure,
		ReportFilename: cfg.Report.Filename,
		ReportModule:   cfg.Report.Module,
		LogLevel:       level,
	}, nil
}

// commands returns the argument builders for this run.
func (c RunConfig) commands() stage.Commands {
	return stage.Commands{
		Threads:      c.Threads,
		Trim:         c.Trim,
		ReportModule: c.ReportModule,
		ReportName:   c.ReportFilename,
	}
}

// validate checks the parts of the configuration that must hold before any
// tool is looked up. The input directory is checked here so that a typo in
// -i never creates output directories.
func (c RunConfig) validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input directory is required", ErrConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", ErrConfig)
	}
	info, err := os.Stat(c.InputDir)
	if err != nil {
		return fmt.Errorf("%w: input directory %s: %v", ErrConfig, c.InputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: input path is not a directory: %s", ErrConfig, c.InputDir)
	}
	if c.Threads < 1 {
		return fmt.Errorf("%w: threads must be at least 1", ErrConfig)
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("%w: at least one naming rule is required", ErrConfig)
	}
	if c.ReportFilename == "" {
		return fmt.Errorf("%w: report filename must be set", ErrConfig)
	}
	return nil
}

func (c RunConfig) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
