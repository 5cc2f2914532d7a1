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
//	if errors.Is(err, vcs.ErrNotARepository) {
//	    // tell the user to run "td init"
//	}
var (
	// ErrNotARepository is returned when the data directory has no .git.
	ErrNotARepository = errors.New("not a git repository")

	// ErrVCSNotAvailable is returned when the git binary is not installed
	// or not in PATH.
	ErrVCSNotAvailable = errors.New("git binary not available")

	// ErrNoRemote is returned when an operation requires a remote
	// but none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrDetached is returned when an operation requires being on
	// a branch but HEAD is detached.
	ErrDetached = errors.New("not on a branch")

	// ErrNoTrackingBranch is returned when the local branch cannot be
	// determined, so no upstream can be configured for it.
	ErrNoTrackingBranch = errors.New("cannot determine local branch to track")

	// ErrNoDefaultBranchFound is returned when the remote has neither a
	// recorded HEAD nor a main or master branch.
	ErrNoDefaultBranchFound = errors.New("no default branch found on remote")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// typically due to non-fast-forward updates.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")

	// ErrSyncLocked is returned when another process holds the sync lock
	// of the same repository.
	ErrSyncLocked = errors.New("another sync is in progress")
)

// CommandError is a git invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed", strings.Join(e.Args, " "))
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		msg += ": " + detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Stderr returns the captured stderr of err if it wraps a CommandError.
func Stderr(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Stderr
	}
	return ""
}

// IsUserActionRequired returns true if the error requires user intervention
// to resolve (missing remote branch, rejected push, etc).
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}

	// Push rejected usually means divergent remote
	if errors.Is(err, ErrPushRejected) {
		return true
	}

	// Tracking can't be set up without a branch to track
	if errors.Is(err, ErrNoDefaultBranchFound) || errors.Is(err, ErrNoTrackingBranch) {
		return true
	}

	return false
}

// IsFatal returns true if the error indicates a non-recoverable state
// that requires manual intervention or re-initialization.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Not a repository means we can't do anything
	if errors.Is(err, ErrNotARepository) {
		return true
	}

	// Binary not available means we can't execute commands
	if errors.Is(err, ErrVCSNotAvailable) {
		return true
	}

	return false
}
