package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mschirtzinger/td/internal/conflict"
	"github.com/mschirtzinger/td/internal/record"
	"github.com/mschirtzinger/td/internal/syncer"
	"github.com/mschirtzinger/td/internal/ui"
	"github.com/mschirtzinger/td/internal/vcs"
)

// WarnError writes a warning to stderr and continues.
func WarnError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarnIcon(), fmt.Sprintf(format, args...))
}

// reportError prints err with an optional hint, in the form
//
//	Error: <message>
//	<git stderr, indented>
//	Hint: <hint>
func reportError(w io.Writer, err error) {
	msg, detail, hint := describeError(err)
	fmt.Fprintf(w, "%s %s\n", ui.RenderFail("Error:"), msg)
	if detail != "" {
		for _, line := range strings.Split(detail, "\n") {
			fmt.Fprintf(w, "  %s\n", ui.RenderMuted(line))
		}
	}
	if hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

// describeError maps err to a short message, the git output that caused
// it and a suggested next step.
func describeError(err error) (msg, detail, hint string) {
	detail = strings.TrimSpace(phaseStderr(err))

	var corrupt *record.CorruptRecordError
	var malformed *conflict.MalformedConflictError

	switch {
	case errors.Is(err, vcs.ErrNotARepository):
		return "data directory is not a git repository", detail, "run `td init` first"
	case errors.Is(err, vcs.ErrVCSNotAvailable):
		return "git is not installed or not on PATH", detail, ""
	case errors.As(err, &corrupt):
		return fmt.Sprintf("store file has an unreadable record on line %d", corrupt.Line), detail,
			"fix or remove that line, then run `td sync` again"
	case errors.As(err, &malformed):
		return fmt.Sprintf("conflict markers are malformed on line %d: %s", malformed.Line, malformed.Reason), detail,
			"edit the store file by hand and commit it"
	case errors.Is(err, conflict.ErrConflictUnresolved):
		return "conflicts were left unresolved", detail, "run `td resolve` or `td sync` again"
	case errors.Is(err, conflict.ErrNoPrompter):
		return "conflicts need an answer but no prompt is available", detail,
			"set conflict.strategy or run td in a terminal"
	case errors.Is(err, vcs.ErrSyncLocked):
		return err.Error(), detail, "wait for the other sync to finish"
	case errors.Is(err, vcs.ErrNoTrackingBranch):
		return "cannot determine the local branch to track", detail, "check out a branch in the data directory"
	case errors.Is(err, vcs.ErrNoDefaultBranchFound):
		return "remote has neither main nor master", detail, "push a branch to the remote or set its HEAD"
	case errors.Is(err, vcs.ErrPushRejected):
		return "push was rejected by the remote", detail, "run `td sync` again to merge the remote changes"
	case errors.Is(err, vcs.ErrTimeout):
		return "a git command timed out", detail, "check the network or raise sync.network-timeout"
	case errors.Is(err, syncer.ErrPushFailed):
		return "push failed", detail, "your changes are committed locally; run `td sync` again"
	case errors.Is(err, syncer.ErrPullFailed):
		return "pull failed", detail, ""
	case errors.Is(err, syncer.ErrCommitFailed):
		return "commit failed", detail, ""
	case errors.Is(err, syncer.ErrStageFailed):
		return "staging the store file failed", detail, ""
	}
	return err.Error(), "", ""
}

func phaseStderr(err error) string {
	var pe *syncer.PhaseError
	if errors.As(err, &pe) && pe.Stderr != "" {
		return pe.Stderr
	}
	return vcs.Stderr(err)
}
