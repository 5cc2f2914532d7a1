package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mschirtzinger/td/internal/vcs"
)

// Fetch updates remote-tracking refs from remote (default: origin)
func (g *Git) Fetch(ctx context.Context, remote string) error {
	if remote == "" {
		remote = vcs.DefaultRemote
	}

	if _, err := g.runNet(ctx, "fetch", "--prune", remote); err != nil {
		return fmt.Errorf("git fetch failed: %w", err)
	}
	return nil
}

// Pull merges the upstream into the current branch without rebasing.
//
// The returned result always carries both streams when git ran, so a
// content conflict (exit 1 with "CONFLICT" on stdout) can be told apart
// from other failures by the caller.
func (g *Git) Pull(ctx context.Context, opts vcs.PullOptions) (*vcs.PullResult, error) {
	args := []string{"pull", "--no-rebase", "--no-edit"}

	if opts.AllowUnrelated && g.supportsUnrelatedHistories(ctx) {
		args = append(args, "--allow-unrelated-histories")
	}

	if opts.Remote != "" {
		args = append(args, opts.Remote)
		if opts.Ref != "" {
			args = append(args, opts.Ref)
		}
	}

	out, err := g.runNet(ctx, args...)
	result := &vcs.PullResult{}
	if out != nil {
		result.Stdout = string(out.Stdout)
		result.Stderr = string(out.Stderr)
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// Push pushes the current branch (or opts.Ref, which may be a
// "local:remote" refspec) to the remote
func (g *Git) Push(ctx context.Context, opts vcs.PushOptions) error {
	remote := opts.Remote
	if remote == "" {
		remote = vcs.DefaultRemote
	}

	ref := opts.Ref
	if ref == "" {
		var err error
		ref, err = g.CurrentRef(ctx)
		if err != nil {
			return err
		}
	}

	args := []string{"push"}
	if opts.SetUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote, ref)

	if _, err := g.runNet(ctx, args...); err != nil {
		var cmdErr *vcs.CommandError
		if errors.As(err, &cmdErr) && isRejection(cmdErr.Stderr) {
			return fmt.Errorf("%w: %w", vcs.ErrPushRejected, err)
		}
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

func isRejection(stderr string) bool {
	return strings.Contains(stderr, "rejected") || strings.Contains(stderr, "non-fast-forward")
}
