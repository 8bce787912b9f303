package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all readqc environment variables.
const EnvPrefix = "READQC"

// appName is the directory name used under the user config directory.
const appName = "readqc"

// configFileName is the config file name looked up in the config directory.
const configFileName = "config.yaml"

// localConfigFile is the config file looked up in the working directory.
const localConfigFile = "readqc.yaml"

// envBindings maps config keys to explicitly named environment variables.
// All other keys are reachable with the READQC_ prefix and "." replaced by "_".
var envBindings = map[string]string{
	"tools.fastqc":  EnvPrefix + "_FASTQC_PATH",
	"tools.fastp":   EnvPrefix + "_FASTP_PATH",
	"tools.multiqc": EnvPrefix + "_MULTIQC_PATH",
	"threads":       EnvPrefix + "_THREADS",
	"workers":       EnvPrefix + "_WORKERS",
	"stage_timeout": EnvPrefix + "_STAGE_TIMEOUT",
	"log.level":     EnvPrefix + "_LOG_LEVEL",
}

// Loader handles Viper-based configuration loading.
//
// Create instances with [NewLoader]. A Loader is single-use: each call to
// [Loader.Load] or [Loader.LoadFromFile] reads into the same Viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new [Loader] with environment bindings configured.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		// BindEnv only fails when no key is given.
		_ = v.BindEnv(key, env)
	}
	return &Loader{v: v}
}

// Load resolves the config file by priority and returns the merged [Config].
//
// A missing config file is not an error; [DefaultConfig] values are used for
// anything the file and environment do not set.
func (l *Loader) Load() (*Config, error) {
	if path := l.resolveConfigFile(); path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadFromFile loads configuration from an explicit file path.
//
// The file format is inferred from the extension (yaml, json, toml).
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	// mapstructure decodes lists element-wise into an existing slice, so a
	// configured list must replace the defaults rather than overlay them.
	if l.v.IsSet("naming_rules") {
		cfg.NamingRules = nil
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigFile returns the highest-priority config file that exists,
// or "" when none does.
func (l *Loader) resolveConfigFile() string {
	if envPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	if path, err := DefaultConfigPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if _, err := os.Stat(localConfigFile); err == nil {
		return localConfigFile
	}
	return ""
}

// ConfigDir returns the platform-standard readqc config directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigPath returns the path of config.yaml inside [ConfigDir].
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Validate reports configuration values that can never produce a working run.
func (c *Config) Validate() error {
	var errs []error
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be at least 1, got %d", c.Threads))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.StageTimeout < 0 {
		errs = append(errs, fmt.Errorf("stage_timeout must not be negative, got %s", c.StageTimeout))
	}
	if c.Tools.FastQC == "" || c.Tools.Fastp == "" || c.Tools.MultiQC == "" {
		errs = append(errs, errors.New("tools.fastqc, tools.fastp and tools.multiqc must all be set"))
	}
	if c.Report.Filename == "" {
		errs = append(errs, errors.New("report.filename must be set"))
	}
	if len(c.NamingRules) == 0 {
		errs = append(errs, errors.New("at least one naming rule is required"))
	}
	for i, r := range c.NamingRules {
		if r.ForwardGlob == "" || r.ForwardMarker == "" || r.ReverseMarker == "" {
			errs = append(errs, fmt.Errorf("naming_rules[%d]: forward_glob, forward_marker and reverse_marker are required", i))
			continue
		}
		if r.ForwardMarker == r.ReverseMarker {
			errs = append(errs, fmt.Errorf("naming_rules[%d]: forward and reverse markers are identical (%q)", i, r.ForwardMarker))
		}
	}
	return errors.Join(errs...)
}
