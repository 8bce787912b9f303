// Package config provides configuration loading and management for readqc.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The package provides defaults that match the common
// FastQC → fastp → FastQC → MultiQC layout, with the ability to customize tool
// paths, trimming options, sample naming rules and report settings.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [NamingRuleConfig] describes one forward/reverse naming convention
//   - [ToolsConfig] contains external tool binary settings
//
// Configuration priority (highest to lowest):
//  1. Command-line flags (applied by the cli package)
//  2. Environment variables (READQC_ prefix)
//  3. Config file specified by READQC_CONFIG_PATH
//  4. User config directory (platform-standard):
//     - Linux: ~/.config/readqc/config.yaml
//     - macOS: ~/Library/Application Support/readqc/config.yaml
//     - Windows: %APPDATA%\readqc\config.yaml
//  5. ./readqc.yaml
//  6. [DefaultConfig] defaults
package config

import "time"

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used to
// build the orchestrator's run configuration. Use [DefaultConfig] to get
// sensible defaults.
type Config struct {
	// Threads is passed to every external tool as its own thread count.
	// Default: 8
	Threads int `mapstructure:"threads"`

	// Workers is the number of samples processed concurrently within one
	// stage. Default: 1 (samples run serially).
	Workers int `mapstructure:"workers"`

	// StageTimeout bounds a single tool invocation. Zero disables the limit.
	StageTimeout time.Duration `mapstructure:"stage_timeout"`

	// Tools contains external tool binary configuration.
	Tools ToolsConfig `mapstructure:"tools"`

	// Trim contains fastp trimming options.
	Trim TrimConfig `mapstructure:"trim"`

	// QC contains FastQC stage policy.
	QC QCConfig `mapstructure:"qc"`

	// Report contains MultiQC aggregation settings.
	Report ReportConfig `mapstructure:"report"`

	// NamingRules is the ordered list of forward/reverse naming conventions.
	// Earlier rules win when a file matches more than one.
	NamingRules []NamingRuleConfig `mapstructure:"naming_rules"`

	// Log contains structured run log settings.
	Log LogConfig `mapstructure:"log"`

	// Output contains terminal output configuration.
	Output OutputConfig `mapstructure:"output"`
}

// ToolsConfig contains the binary names or paths of the external tools.
//
// Bare names are resolved through PATH. Each can be overridden with a
// READQC_<TOOL>_PATH environment variable.
type ToolsConfig struct {
	FastQC  string `mapstructure:"fastqc"`
	Fastp   string `mapstructure:"fastp"`
	MultiQC string `mapstructure:"multiqc"`
}

// TrimConfig contains the fastp options used by the trimming stage.
type TrimConfig struct {
	// QualifiedQuality is the phred value a base needs to be qualified (-q).
	// Default: 20
	QualifiedQuality int `mapstructure:"qualified_quality"`

	// LengthRequired drops reads shorter than this after trimming (-l).
	// Default: 50
	LengthRequired int `mapstructure:"length_required"`

	// DetectAdapterForPE enables fastp's paired-end adapter detection.
	// Default: true
	DetectAdapterForPE bool `mapstructure:"detect_adapter_for_pe"`
}

// QCConfig contains FastQC stage policy.
type QCConfig struct {
	// TolerateRawFailure lets a sample continue to trimming when the
	// pre-trim FastQC run exits non-zero. A warning is still emitted.
	TolerateRawFailure bool `mapstructure:"tolerate_raw_failure"`
}

// ReportConfig contains MultiQC aggregation settings.
type ReportConfig struct {
	// Filename is the name of the aggregate HTML artifact under multiqc/.
	// Default: "multiqc_report.html"
	Filename string `mapstructure:"filename"`

	// Module restricts MultiQC to one module (-m). Empty runs all modules.
	// Default: "fastqc"
	Module string `mapstructure:"module"`
}

// NamingRuleConfig describes one paired-end naming convention.
//
// Files matching ForwardGlob inside the input directory are forward reads;
// the reverse read is found by replacing ForwardMarker with ReverseMarker
// in the file name.
type NamingRuleConfig struct {
	ForwardGlob   string `mapstructure:"forward_glob"`
	ForwardMarker string `mapstructure:"forward_marker"`
	ReverseMarker string `mapstructure:"reverse_marker"`
}

// LogConfig contains structured run log settings.
type LogConfig struct {
	// Level is the minimum zap level written to logs/pipeline.jsonl.
	// One of "debug", "info", "warn", "error". Default: "info"
	Level string `mapstructure:"level"`
}

// OutputConfig contains terminal output configuration.
type OutputConfig struct {
	// Color enables colored warning and failure lines.
	// Default: true (still disabled automatically when stdout is not a terminal)
	Color bool `mapstructure:"color"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// The defaults resolve fastqc, fastp and multiqc from PATH and recognise the
// Illumina "_R1_001", plain "_R1." and SRA-style "_1." naming conventions.
func DefaultConfig() *Config {
	return &Config{
		Threads: 8,
		Workers: 1,
		Tools: ToolsConfig{
			FastQC:  "fastqc",
			Fastp:   "fastp",
			MultiQC: "multiqc",
		},
		Trim: TrimConfig{
			QualifiedQuality:   20,
			LengthRequired:     50,
			DetectAdapterForPE: true,
		},
		Report: ReportConfig{
			Filename: "multiqc_report.html",
			Module:   "fastqc",
		},
		NamingRules: []NamingRuleConfig{
			{ForwardGlob: "*_R1_001.fastq.gz", ForwardMarker: "_R1_001", ReverseMarker: "_R2_001"},
			{ForwardGlob: "*_R1.fastq.gz", ForwardMarker: "_R1.", ReverseMarker: "_R2."},
			{ForwardGlob: "*_1.fastq.gz", ForwardMarker: "_1.", ReverseMarker: "_2."},
		},
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Color: true,
		},
	}
}
