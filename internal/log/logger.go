// Package log provides the structured run log written to logs/pipeline.jsonl.
//
// The terminal shows progress through the output package; this log keeps
// the same events as JSON lines with run context so a finished run can be
// audited or post-processed. Every entry carries the run_id field.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel converts a config level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// New creates a JSON logger writing to w with the run_id context field.
func New(w io.Writer, level zapcore.Level, runID string) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	return zap.New(core).With(zap.String("run_id", runID))
}

// Open creates the log file at path and returns a logger writing to it.
//
// The returned close function flushes the logger and closes the file.
func Open(path string, level zapcore.Level, runID string) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run log: %w", err)
	}

	logger := New(f, level, runID)
	closeFn := func() error {
		// Sync on a regular file only fails if the write itself failed.
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closeFn, nil
}
