package git

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/mschirtzinger/td/internal/vcs"
)

// DefaultRecentCommits is how many commits Inspect reports by default.
const DefaultRecentCommits = 5

// RepoStatus is a read-only snapshot of a data repository.
type RepoStatus struct {
	Branch    string
	RemoteURL string
	Changes   []vcs.FileStatus
	Recent    []CommitSummary
}

// CommitSummary is one line of history.
type CommitSummary struct {
	Hash    string
	Subject string
	Author  string
	When    time.Time
}

// Inspect reads branch, origin URL, uncommitted changes and the most
// recent commits without running git. An unborn branch reports no
// commits.
func Inspect(path string, recent int) (*RepoStatus, error) {
	if !vcs.IsRepository(path) {
		return nil, vcs.ErrNotARepository
	}
	if recent <= 0 {
		recent = DefaultRecentCommits
	}

	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	status := &RepoStatus{}

	head, err := repo.Head()
	switch {
	case err == nil:
		if head.Name().IsBranch() {
			status.Branch = head.Name().Short()
		} else {
			status.Branch = "(detached " + head.Hash().String()[:7] + ")"
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Unborn branch: read the name HEAD points at.
		if ref, refErr := repo.Storer.Reference(plumbing.HEAD); refErr == nil {
			status.Branch = ref.Target().Short()
		}
		head = nil
	default:
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}

	if remote, err := repo.Remote(vcs.DefaultRemote); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			status.RemoteURL = urls[0]
		}
	} else if !errors.Is(err, gogit.ErrRemoteNotFound) {
		return nil, fmt.Errorf("failed to read remote: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	wtStatus, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}
	for file, fs := range wtStatus {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		status.Changes = append(status.Changes, vcs.FileStatus{
			Path:       file,
			Status:     convertStatusCode(fs.Worktree),
			StagedCode: convertStatusCode(fs.Staging),
		})
	}
	sort.Slice(status.Changes, func(i, j int) bool {
		return status.Changes[i].Path < status.Changes[j].Path
	})

	if head == nil {
		return status, nil
	}

	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	for len(status.Recent) < recent {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate commits: %w", err)
		}
		subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		status.Recent = append(status.Recent, CommitSummary{
			Hash:    c.Hash.String()[:7],
			Subject: subject,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
	}

	return status, nil
}

// convertStatusCode maps go-git's status letters onto vcs.StatusCode
func convertStatusCode(code gogit.StatusCode) vcs.StatusCode {
	switch code {
	case gogit.Modified:
		return vcs.StatusModified
	case gogit.Added:
		return vcs.StatusAdded
	case gogit.Deleted:
		return vcs.StatusDeleted
	case gogit.Renamed:
		return vcs.StatusRenamed
	case gogit.Untracked:
		return vcs.StatusUntracked
	case gogit.UpdatedButUnmerged:
		return vcs.StatusConflict
	default:
		return vcs.StatusUnmodified
	}
}
