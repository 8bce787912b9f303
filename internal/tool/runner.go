// Package tool runs the external analysis tools as subprocesses.
//
// Each invocation writes the tool's combined stdout and stderr to a log file
// and reports the exit code as data. A non-zero exit is not an error here;
// deciding whether it is fatal belongs to the caller.
//
// Key types:
//   - [Runner]: Interface for running one tool invocation
//   - [ExecRunner]: Production implementation using os/exec
//   - [Invocation]: What to run and where to log it
//   - [StageResult]: Outcome of one invocation
//
// For testing, use [MockRunner] which implements [Runner] without spawning
// real processes.
package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Sentinel errors for tool execution. Both are distinct from a tool that ran
// and exited non-zero, which is reported through [StageResult.ExitCode].
var (
	// ErrToolUnavailable means the executable could not be located or started.
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrLogWrite means the invocation's log file could not be opened for writing.
	ErrLogWrite = errors.New("log write failure")
)

// ExitTimeout is the exit code recorded when an invocation is killed by its
// timeout or by context cancellation.
const ExitTimeout = -1

// Invocation describes one tool run.
type Invocation struct {
	// SampleID identifies the sample; empty for run-level stages.
	SampleID string

	// Stage is the stage name recorded in the result.
	Stage string

	// Command is the executable name or path. Bare names are resolved via PATH.
	Command string

	// Args are passed to the command verbatim.
	Args []string

	// LogPath receives the combined stdout and stderr. Parent directories
	// are created as needed.
	LogPath string

	// Timeout bounds the run. Zero means no limit.
	Timeout time.Duration
}

// StageResult is the immutable outcome of one [Invocation].
type StageResult struct {
	SampleID   string    `yaml:"sample_id,omitempty"`
	Stage      string    `yaml:"stage"`
	Command    string    `yaml:"command"`
	ExitCode   int       `yaml:"exit_code"`
	LogPath    string    `yaml:"log_path"`
	StartedAt  time.Time `yaml:"started_at"`
	DurationMs int64     `yaml:"duration_ms"`
}

// Succeeded reports whether the tool exited zero.
func (r StageResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Duration returns the wall-clock duration as a [time.Duration].
func (r StageResult) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// Runner is the interface for running one external tool invocation.
//
// Run blocks until the tool exits. It returns an error only when the tool
// could not be started ([ErrToolUnavailable]) or its log could not be opened
// ([ErrLogWrite]); a non-zero exit is reported in the result.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (StageResult, error)
}

// ExecRunner implements [Runner] using os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new [ExecRunner].
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the invocation and records its exit code and duration.
//
// A log file that fails to close is reported as [ErrLogWrite] alongside the
// result, since the log may be incomplete.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (result StageResult, err error) {
	result = StageResult{
		SampleID: inv.SampleID,
		Stage:    inv.Stage,
		Command:  inv.Command,
		LogPath:  inv.LogPath,
	}

	path, err := exec.LookPath(inv.Command)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, inv.Command, err)
	}

	if err := os.MkdirAll(filepath.Dir(inv.LogPath), 0755); err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrLogWrite, inv.LogPath, err)
	}
	logFile, err := os.OpenFile(inv.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrLogWrite, inv.LogPath, err)
	}
	defer closeLog(logFile, inv.LogPath, &err)

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	result.StartedAt = time.Now()
	if err := cmd.Start(); err != nil {
		return result, fmt.Errorf("%w: failed to start %s: %v", ErrToolUnavailable, inv.Command, err)
	}
	waitErr := cmd.Wait()
	result.DurationMs = time.Since(result.StartedAt).Milliseconds()

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			result.ExitCode = ExitTimeout
			fmt.Fprintf(logFile, "\nreadqc: %s stopped: %v\n", inv.Command, ctx.Err())
		case errors.As(waitErr, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			result.ExitCode = 1
		}
	}

	return result, nil
}

// closeLog closes a tool log and records the close error in *errp unless an
// earlier error is already there.
func closeLog(c io.Closer, path string, errp *error) {
	if cerr := c.Close(); cerr != nil && *errp == nil {
		*errp = fmt.Errorf("%w: %s: %v", ErrLogWrite, path, cerr)
	}
}

// Preflight verifies that every command resolves to an executable.
//
// The returned error wraps [ErrToolUnavailable] and lists all missing
// commands, not only the first.
func Preflight(commands ...string) error {
	var missing []string
	for _, c := range commands {
		if _, err := exec.LookPath(c); err != nil {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: not found in PATH: %v", ErrToolUnavailable, missing)
	}
	return nil
}
