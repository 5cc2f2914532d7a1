package syncer

import (
	"errors"
	"fmt"
)

// Phase names a step of Sync.
type Phase string

const (
	PhaseLocking    Phase = "locking"
	PhaseStaging    Phase = "staging"
	PhaseCommitting Phase = "committing"
	PhasePulling    Phase = "pulling"
	PhaseResolving  Phase = "resolving"
	PhasePushing    Phase = "pushing"
	PhaseValidating Phase = "validating"
)

// Phase failures, matched against a *PhaseError with errors.Is.
var (
	ErrStageFailed  = errors.New("failed to stage changes")
	ErrCommitFailed = errors.New("failed to commit changes")
	ErrPullFailed   = errors.New("failed to pull from remote")
	ErrPushFailed   = errors.New("failed to push to remote")
)

var phaseSentinels = map[Phase]error{
	PhaseStaging:    ErrStageFailed,
	PhaseCommitting: ErrCommitFailed,
	PhasePulling:    ErrPullFailed,
	PhasePushing:    ErrPushFailed,
}

// PhaseError is a failure of one sync phase. Stderr carries whatever git
// printed, for display.
type PhaseError struct {
	Phase  Phase
	Stderr string
	Err    error
}

func (e *PhaseError) Error() string {
	if sentinel, ok := phaseSentinels[e.Phase]; ok {
		return fmt.Sprintf("%s: %v", sentinel, e.Err)
	}
	return fmt.Sprintf("sync %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the failed phase.
func (e *PhaseError) Is(target error) bool {
	sentinel, ok := phaseSentinels[e.Phase]
	return ok && target == sentinel
}
