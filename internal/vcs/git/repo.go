package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mschirtzinger/td/internal/vcs"
)

// IsInMerge returns true if a merge was started and not concluded
func (g *Git) IsInMerge(ctx context.Context) (bool, error) {
	result, err := vcs.Detect(g.repoRoot)
	if err != nil {
		return false, err
	}
	return result.MergeInProgress, nil
}

// ConflictedFiles returns the list of files with unmerged index entries
func (g *Git) ConflictedFiles(ctx context.Context) ([]string, error) {
	statuses, err := g.Status(ctx)
	if err != nil {
		return nil, err
	}
	var conflicted []string
	for _, st := range statuses {
		if st.Status == vcs.StatusConflict {
			conflicted = append(conflicted, st.Path)
		}
	}
	return conflicted, nil
}

// HasRemote returns true if the named remote is configured
func (g *Git) HasRemote(ctx context.Context, name string) (bool, error) {
	out, err := g.run(ctx, "remote")
	if err != nil {
		return false, fmt.Errorf("git remote failed: %w", err)
	}
	for _, remote := range vcs.ParseLines(out.Stdout) {
		if remote == name {
			return true, nil
		}
	}
	return false, nil
}

// RemoteURL returns the fetch URL of the named remote
func (g *Git) RemoteURL(ctx context.Context, name string) (string, error) {
	out, err := g.run(ctx, "remote", "get-url", name)
	if err != nil {
		var cmdErr *vcs.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "No such remote") {
			return "", vcs.ErrNoRemote
		}
		return "", err
	}
	return vcs.TrimOutput(out.Stdout), nil
}

// AddRemote registers a new remote
func (g *Git) AddRemote(ctx context.Context, name, url string) error {
	if _, err := g.run(ctx, "remote", "add", name, url); err != nil {
		return fmt.Errorf("failed to add remote %s: %w", name, err)
	}
	return nil
}

// RemoteHeadBranch returns e.g. "origin/main" from refs/remotes/origin/HEAD,
// or "" if the ref does not exist (it is only set by clone or
// "git remote set-head").
func (g *Git) RemoteHeadBranch(ctx context.Context, remote string) (string, error) {
	out, err := g.run(ctx, "symbolic-ref", "--short", "refs/remotes/"+remote+"/HEAD")
	if err != nil {
		if vcs.IsExitError(err) {
			return "", nil
		}
		return "", err
	}
	return vcs.TrimOutput(out.Stdout), nil
}

// RemoteBranches lists branches on the remote via ls-remote
func (g *Git) RemoteBranches(ctx context.Context, remote string) ([]string, error) {
	out, err := g.runNet(ctx, "ls-remote", "--heads", remote)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote branches: %w", err)
	}
	return parseLsRemoteHeads(out.Stdout), nil
}

// parseLsRemoteHeads turns "<hash>\trefs/heads/<name>" lines into names.
func parseLsRemoteHeads(output []byte) []string {
	var branches []string
	for _, line := range vcs.ParseLines(output) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if name, ok := strings.CutPrefix(fields[1], "refs/heads/"); ok {
			branches = append(branches, name)
		}
	}
	return branches
}
