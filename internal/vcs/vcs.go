// Package vcs defines the repository operations the sync layer needs.
//
// The interface covers staging and committing the store file, talking to a
// single remote, and reporting the state of an in-progress merge.
//
// # Implementations
//
//   - internal/vcs/git: runs the git binary as a subprocess
//   - internal/vcs/vcstest: scripted in-memory fake for tests
//
// # Usage
//
//	repo, err := git.New(dataDir, git.Options{})
//	if err != nil {
//	    return err
//	}
//	if err := repo.Add(ctx, "todos.json"); err != nil {
//	    return err
//	}
package vcs

import (
	"context"
	"time"
)

// DefaultTimeout bounds local git commands.
const DefaultTimeout = 30 * time.Second

// DefaultNetworkTimeout bounds commands that talk to a remote.
const DefaultNetworkTimeout = 2 * time.Minute

// DefaultRemote is the only remote the sync layer uses.
const DefaultRemote = "origin"

// VCS is a working tree bound to at most one remote.
type VCS interface {
	// ===================
	// Repository
	// ===================

	// RepoRoot returns the absolute path of the working tree.
	RepoRoot() string

	// Version returns the backend's version string (e.g. "2.43.0").
	Version(ctx context.Context) (string, error)

	// IsInMerge reports whether a merge was started and not concluded.
	IsInMerge(ctx context.Context) (bool, error)

	// ConflictedFiles lists paths with unmerged index entries.
	ConflictedFiles(ctx context.Context) ([]string, error)

	// ===================
	// Staging & Commits
	// ===================

	// Add stages the given paths, relative to RepoRoot.
	Add(ctx context.Context, paths ...string) error

	// HasStagedChanges reports whether the index differs from HEAD.
	// A repository without commits reports true if anything is staged.
	HasStagedChanges(ctx context.Context) (bool, error)

	// Commit records the staged changes.
	Commit(ctx context.Context, opts CommitOptions) error

	// GetCommitHash resolves ref to a full commit hash.
	GetCommitHash(ctx context.Context, ref string) (string, error)

	// ===================
	// Branches
	// ===================

	// CurrentRef returns the checked-out branch name.
	// Returns ErrDetached when HEAD does not point at a branch.
	CurrentRef(ctx context.Context) (string, error)

	// Upstream returns the upstream of the current branch
	// (e.g. "origin/main"), or "" when none is configured.
	Upstream(ctx context.Context) (string, error)

	// SetUpstream makes remote/branch the upstream of the current branch.
	SetUpstream(ctx context.Context, remote, branch string) error

	// HasDivergence compares localRef against remoteRef.
	HasDivergence(ctx context.Context, localRef, remoteRef string) (*DivergenceInfo, error)

	// ===================
	// Remote
	// ===================

	// HasRemote reports whether the named remote exists.
	HasRemote(ctx context.Context, name string) (bool, error)

	// RemoteURL returns the fetch URL of the named remote.
	RemoteURL(ctx context.Context, name string) (string, error)

	// AddRemote registers a new remote.
	AddRemote(ctx context.Context, name, url string) error

	// RemoteHeadBranch returns the branch the remote's HEAD points at as
	// recorded locally, or "" if it is not known.
	RemoteHeadBranch(ctx context.Context, remote string) (string, error)

	// RemoteBranches lists branch names that exist on the remote.
	RemoteBranches(ctx context.Context, remote string) ([]string, error)

	// Fetch updates remote-tracking refs.
	Fetch(ctx context.Context, remote string) error

	// Pull merges the upstream into the current branch. The result carries
	// both output streams even when err is non-nil, so callers can tell a
	// content conflict from other failures.
	Pull(ctx context.Context, opts PullOptions) (*PullResult, error)

	// Push sends the current branch to the remote.
	Push(ctx context.Context, opts PushOptions) error
}

// FileStatus represents the status of a file in the working directory
type FileStatus struct {
	// Path is the file path relative to repository root
	Path string

	// Status is the working directory status
	Status StatusCode

	// StagedCode is the staging area status
	StagedCode StatusCode
}

// StatusCode represents file status codes
type StatusCode string

const (
	StatusUnmodified StatusCode = " " // No changes
	StatusModified   StatusCode = "M" // Modified
	StatusAdded      StatusCode = "A" // Added/new file
	StatusDeleted    StatusCode = "D" // Deleted
	StatusRenamed    StatusCode = "R" // Renamed
	StatusUntracked  StatusCode = "?" // Untracked
	StatusConflict   StatusCode = "U" // Unmerged/conflict
)

// CommitOptions configures a commit operation
type CommitOptions struct {
	// Message is the commit message (required)
	Message string

	// AllowEmpty permits a commit with no changes
	AllowEmpty bool
}

// PullOptions configures a pull operation
type PullOptions struct {
	// Remote is the remote name (default: "origin")
	Remote string

	// Ref is the branch to merge (default: the upstream)
	Ref string

	// AllowUnrelated merges histories without a common ancestor.
	// Implementations drop the flag when the backend predates it.
	AllowUnrelated bool
}

// PullResult holds the raw output of a pull.
type PullResult struct {
	Stdout string
	Stderr string
}

// Output returns both streams joined.
func (r *PullResult) Output() string {
	if r == nil {
		return ""
	}
	return r.Stdout + "\n" + r.Stderr
}

// PushOptions configures a push operation
type PushOptions struct {
	// Remote is the remote name (default: "origin")
	Remote string

	// Ref is the branch to push (default: current branch)
	Ref string

	// SetUpstream records the pushed branch as upstream
	SetUpstream bool
}

// DivergenceInfo describes how two refs differ.
type DivergenceInfo struct {
	// LocalAhead is the number of commits local is ahead of remote
	LocalAhead int

	// RemoteAhead is the number of commits remote is ahead of local
	RemoteAhead int

	// IsDiverged is true if both local and remote have unique commits
	IsDiverged bool
}

// Identity is the author recorded on commits.
type Identity struct {
	Name  string
	Email string
}

// IsZero reports whether no identity is configured.
func (i Identity) IsZero() bool {
	return i.Name == "" && i.Email == ""
}
