package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Writer writes run reports to YAML files.
type Writer struct {
	path string
}

// NewWriter creates a new Writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{
		path: path,
	}
}

// Path returns the file the writer targets.
func (w *Writer) Path() string {
	return w.path
}

// Write persists r atomically (write to temp, then rename).
func (w *Writer) Write(r *RunReport) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write run report: %w", err)
	}

	return nil
}

// ReadFile loads a run report previously written by [Writer.Write].
func ReadFile(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}

	var r RunReport
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}
	return &r, nil
}
