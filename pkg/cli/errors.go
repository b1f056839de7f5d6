// Portions Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

type ErrorCategory string

const (
	// CategoryValidation: bad arguments or flags. Exit code 2.
	CategoryValidation ErrorCategory = "validation"
	// CategoryInternal: anything that went wrong while doing the work.
	CategoryInternal ErrorCategory = "internal"
)

// CommandError is a categorized error returned by command handlers. It
// wraps the underlying error so errors.Is and errors.As still see it.
type CommandError struct {
	Category ErrorCategory
	Err      error
}

func (e *CommandError) Error() string { return e.Err.Error() }

func (e *CommandError) Unwrap() error { return e.Err }

// Validation creates an error for input the user should fix.
func Validation(format string, args ...any) *CommandError {
	return &CommandError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// Internal creates an error for a failure while running the command.
func Internal(format string, args ...any) *CommandError {
	return &CommandError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// ExitError signals a non-zero exit code without printing an extra error
// message; the command has already written its own output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCode maps a command's returned error to a process exit code and
// reports whether the error should still be printed.
func ExitCode(err error) (code int, printErr bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, false
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Category == CategoryValidation {
		return 2, true
	}
	return 1, true
}
