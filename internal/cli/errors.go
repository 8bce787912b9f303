package cli

import (
	"errors"
	"fmt"
)

// ExitError carries a process exit code out of a Cobra RunE function.
//
// Commands return NewExitError(code) instead of calling os.Exit, so tests can
// assert on the code. [runApp] extracts it with [IsExitError] and [Execute]
// performs the actual exit.
type ExitError struct {
	// Code is the exit code to return to the shell.
	// 0 = pipeline completed, 1 = usage, configuration or missing tool.
	Code int
}

// Error returns "exit status N", matching the os/exec ExitError format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
//
// The message for the operator is printed before returning; the ExitError
// itself is never shown.
//
//	if err != nil {
//	    app.Printer.Error(err)
//	    return NewExitError(1)
//	}
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if an error is or wraps an [ExitError] and extracts
// its exit code.
//
// Returns (0, false) for nil or non-ExitError errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
