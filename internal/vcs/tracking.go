package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// defaultBranchCandidates are tried, in order, when the remote does not
// advertise its HEAD.
var defaultBranchCandidates = []string{"main", "master"}

// EnsureTrackingBranch gives the current branch an upstream on remote if it
// has none. An existing upstream is left alone.
//
// The upstream is, in order of preference: the branch the remote's HEAD
// points at, then main, then master.
func EnsureTrackingBranch(ctx context.Context, v VCS, remote string) (string, error) {
	if remote == "" {
		remote = DefaultRemote
	}

	if upstream, err := v.Upstream(ctx); err != nil {
		return "", err
	} else if upstream != "" {
		return upstream, nil
	}

	if _, err := v.CurrentRef(ctx); err != nil {
		if errors.Is(err, ErrDetached) {
			return "", ErrNoTrackingBranch
		}
		return "", fmt.Errorf("%w: %w", ErrNoTrackingBranch, err)
	}

	branch, err := DefaultBranch(ctx, v, remote)
	if err != nil {
		return "", err
	}

	if err := v.SetUpstream(ctx, remote, branch); err != nil {
		return "", fmt.Errorf("failed to set upstream to %s/%s: %w", remote, branch, err)
	}
	return remote + "/" + branch, nil
}

// DefaultBranch returns the branch new clones of remote would check out.
// Returns ErrNoDefaultBranchFound when it cannot be determined.
func DefaultBranch(ctx context.Context, v VCS, remote string) (string, error) {
	head, err := v.RemoteHeadBranch(ctx, remote)
	if err != nil {
		return "", err
	}
	if head != "" {
		return strings.TrimPrefix(head, remote+"/"), nil
	}

	branches, err := v.RemoteBranches(ctx, remote)
	if err != nil {
		return "", err
	}
	for _, candidate := range defaultBranchCandidates {
		for _, b := range branches {
			if b == candidate {
				return candidate, nil
			}
		}
	}
	return "", ErrNoDefaultBranchFound
}
