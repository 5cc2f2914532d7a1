package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/mschirtzinger/td/internal/vcs"
)

// Add stages files for commit
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// HasStagedChanges returns true if the index differs from HEAD.
// "git diff --cached --quiet" exits 1 when there is a difference.
func (g *Git) HasStagedChanges(ctx context.Context) (bool, error) {
	_, err := g.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	if vcs.GetExitCode(err) == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached failed: %w", err)
}

// Status returns the status of files in the working directory
func (g *Git) Status(ctx context.Context) ([]vcs.FileStatus, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return parseStatus(out.Stdout), nil
}

func parseStatus(output []byte) []vcs.FileStatus {
	var statuses []vcs.FileStatus
	for _, line := range strings.Split(string(output), "\n") {
		if len(line) < 4 {
			continue
		}

		// Parse status format: XY filename
		// X = staged status, Y = unstaged status
		xy := line[0:2]
		status := vcs.FileStatus{
			Path:       strings.TrimSpace(line[3:]),
			Status:     parseStatusCode(line[1:2]),
			StagedCode: parseStatusCode(line[0:1]),
		}
		if isUnmerged(xy) {
			status.Status = vcs.StatusConflict
			status.StagedCode = vcs.StatusConflict
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// isUnmerged matches the porcelain codes for unmerged paths
func isUnmerged(xy string) bool {
	switch xy {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}

// parseStatusCode converts git status code to vcs.StatusCode
func parseStatusCode(code string) vcs.StatusCode {
	switch code {
	case "M":
		return vcs.StatusModified
	case "A":
		return vcs.StatusAdded
	case "D":
		return vcs.StatusDeleted
	case "R":
		return vcs.StatusRenamed
	case "?":
		return vcs.StatusUntracked
	case "U":
		return vcs.StatusConflict
	default:
		return vcs.StatusUnmodified
	}
}

// Commit creates a commit with the specified options
func (g *Git) Commit(ctx context.Context, opts vcs.CommitOptions) error {
	if opts.Message == "" {
		return fmt.Errorf("commit message is required")
	}

	args := []string{"commit", "-m", opts.Message}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}

	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}
