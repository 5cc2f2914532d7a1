package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mschirtzinger/td/internal/vcs"
)

// CurrentRef returns the current branch name.
// Returns vcs.ErrDetached in detached HEAD state.
func (g *Git) CurrentRef(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		branch := vcs.TrimOutput(out.Stdout)
		if branch == "HEAD" {
			return "", vcs.ErrDetached
		}
		return branch, nil
	}

	// An unborn branch has no HEAD commit to abbreviate; symbolic-ref
	// still knows its name.
	out, symErr := g.run(ctx, "symbolic-ref", "--short", "HEAD")
	if symErr != nil {
		if strings.Contains(vcs.Stderr(symErr), "not a symbolic ref") {
			return "", vcs.ErrDetached
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return vcs.TrimOutput(out.Stdout), nil
}

// Upstream returns the upstream of the current branch (e.g. "origin/main"),
// or "" when none is configured.
func (g *Git) Upstream(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		if vcs.IsExitError(err) {
			return "", nil
		}
		return "", err
	}
	return vcs.TrimOutput(out.Stdout), nil
}

// SetUpstream sets the upstream of the current branch.
// The remote-tracking ref must exist, so fetch first.
func (g *Git) SetUpstream(ctx context.Context, remote, branch string) error {
	if _, err := g.run(ctx, "branch", "--set-upstream-to="+remote+"/"+branch); err != nil {
		return fmt.Errorf("git branch --set-upstream-to failed: %w", err)
	}
	return nil
}

// GetCommitHash returns the commit hash for a reference
func (g *Git) GetCommitHash(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	return vcs.TrimOutput(out.Stdout), nil
}

// HasDivergence counts commits unique to each side of localRef...remoteRef
func (g *Git) HasDivergence(ctx context.Context, localRef, remoteRef string) (*vcs.DivergenceInfo, error) {
	out, err := g.run(ctx, "rev-list", "--left-right", "--count", localRef+"..."+remoteRef)
	if err != nil {
		return nil, fmt.Errorf("git rev-list failed: %w", err)
	}
	return parseLeftRight(out.Stdout)
}

// parseLeftRight parses "<ahead>\t<behind>" from rev-list --left-right --count.
func parseLeftRight(output []byte) (*vcs.DivergenceInfo, error) {
	fields := strings.Fields(vcs.TrimOutput(output))
	if len(fields) != 2 {
		return nil, fmt.Errorf("unexpected rev-list output: %q", vcs.TrimOutput(output))
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("unexpected rev-list output: %w", err)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("unexpected rev-list output: %w", err)
	}

	return &vcs.DivergenceInfo{
		LocalAhead:  ahead,
		RemoteAhead: behind,
		IsDiverged:  ahead > 0 && behind > 0,
	}, nil
}
