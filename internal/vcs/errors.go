package vcs

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by VCS operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // Handle case where we're outside any VCS repository
//	}
var (
	// ErrNotInVCS is returned when the operation requires being inside
	// a VCS repository but none was found.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the required VCS binary
	// (git or jj) is not installed or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrCommandFailed matches every *CommandError.
	ErrCommandFailed = errors.New("VCS command failed")
)

// CommandError is returned when an external VCS invocation exits non-zero.
// It carries the full command line and whatever the command printed.
type CommandError struct {
	// Command is the argv that was executed, binary first.
	Command []string

	// Output is the command's stderr, or stdout when stderr was empty.
	Output string

	// ExitCode is the process exit status, or -1 if it never started.
	ExitCode int

	// Err is the underlying error from os/exec.
	Err error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed (exit %d)", strings.Join(e.Command, " "), e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is reports ErrCommandFailed as a match so callers need not know the
// concrete type.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}
