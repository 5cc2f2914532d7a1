// Package vcstest provides a scripted vcs.VCS for tests that must not
// depend on a git binary.
package vcstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mschirtzinger/td/internal/vcs"
)

// Fake is an in-memory repository with a single remote. Fields describe
// the current state and may be set directly before use. Commits and pushes
// move the hashes and ahead/behind counters the way git would.
type Fake struct {
	mu sync.Mutex

	Root          string
	VersionString string

	// Branch is the checked-out branch; "" means detached HEAD.
	Branch      string
	UpstreamRef string

	Remotes          map[string]string
	RemoteHead       string
	RemoteBranchList []string

	// Dirty makes the next Add stage a change.
	Dirty  bool
	Staged bool

	InMerge    bool
	Conflicted []string

	Head         string
	UpstreamHash string
	Ahead        int
	Behind       int

	// PullFunc overrides the default pull. It runs with the lock released.
	PullFunc func(ctx context.Context, opts vcs.PullOptions) (*vcs.PullResult, error)

	// Errors makes the named operation (e.g. "Push") fail.
	Errors map[string]error

	Calls   []string
	Commits []vcs.CommitOptions
	Added   [][]string

	seq int
}

var _ vcs.VCS = (*Fake)(nil)

// New returns a fake on branch main with no remote and one commit.
func New(root string) *Fake {
	return &Fake{
		Root:          root,
		VersionString: "2.43.0",
		Branch:        "main",
		Remotes:       map[string]string{},
		Head:          "c0",
	}
}

// WithRemote adds origin with the given branches. The first branch becomes
// the remote HEAD and the local upstream, in sync with the local branch.
func (f *Fake) WithRemote(url string, branches ...string) *Fake {
	f.Remotes[vcs.DefaultRemote] = url
	f.RemoteBranchList = branches
	if len(branches) > 0 {
		f.RemoteHead = branches[0]
		f.UpstreamRef = vcs.DefaultRemote + "/" + branches[0]
		f.UpstreamHash = f.Head
	}
	return f
}

// Called reports whether op was invoked.
func (f *Fake) Called(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c == op {
			return true
		}
	}
	return false
}

func (f *Fake) enter(op string) error {
	f.Calls = append(f.Calls, op)
	if err, ok := f.Errors[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) nextHash() string {
	f.seq++
	return fmt.Sprintf("c%d", f.seq)
}

func (f *Fake) RepoRoot() string { return f.Root }

func (f *Fake) Version(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Version"); err != nil {
		return "", err
	}
	return f.VersionString, nil
}

func (f *Fake) IsInMerge(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("IsInMerge"); err != nil {
		return false, err
	}
	return f.InMerge, nil
}

func (f *Fake) ConflictedFiles(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ConflictedFiles"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.Conflicted...), nil
}

func (f *Fake) Add(_ context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Add"); err != nil {
		return err
	}
	f.Added = append(f.Added, paths)
	if f.Dirty {
		f.Staged = true
		f.Dirty = false
	}
	// Staging a conflicted path marks it resolved.
	remaining := f.Conflicted[:0]
	for _, c := range f.Conflicted {
		if !contains(paths, c) {
			remaining = append(remaining, c)
		}
	}
	f.Conflicted = remaining
	return nil
}

func (f *Fake) HasStagedChanges(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("HasStagedChanges"); err != nil {
		return false, err
	}
	return f.Staged, nil
}

func (f *Fake) Commit(_ context.Context, opts vcs.CommitOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Commit"); err != nil {
		return err
	}
	if len(f.Conflicted) > 0 {
		return &vcs.CommandError{Args: []string{"commit"}, ExitCode: 128, Stderr: "error: Committing is not possible because you have unmerged files."}
	}
	f.Commits = append(f.Commits, opts)
	f.Head = f.nextHash()
	f.Staged = false
	if f.InMerge {
		f.InMerge = false
	}
	f.Ahead++
	return nil
}

func (f *Fake) GetCommitHash(_ context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetCommitHash"); err != nil {
		return "", err
	}
	switch ref {
	case "HEAD":
		return f.Head, nil
	case "@{u}", f.UpstreamRef:
		if f.UpstreamRef == "" {
			return "", &vcs.CommandError{Args: []string{"rev-parse", ref}, ExitCode: 128, Stderr: "fatal: no upstream configured"}
		}
		return f.UpstreamHash, nil
	}
	return "", &vcs.CommandError{Args: []string{"rev-parse", ref}, ExitCode: 128, Stderr: "fatal: unknown revision"}
}

func (f *Fake) CurrentRef(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CurrentRef"); err != nil {
		return "", err
	}
	if f.Branch == "" {
		return "", vcs.ErrDetached
	}
	return f.Branch, nil
}

func (f *Fake) Upstream(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Upstream"); err != nil {
		return "", err
	}
	return f.UpstreamRef, nil
}

func (f *Fake) SetUpstream(_ context.Context, remote, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SetUpstream"); err != nil {
		return err
	}
	if !contains(f.RemoteBranchList, branch) {
		return &vcs.CommandError{Args: []string{"branch", "--set-upstream-to", remote + "/" + branch}, ExitCode: 128,
			Stderr: fmt.Sprintf("fatal: the requested upstream branch '%s/%s' does not exist", remote, branch)}
	}
	f.UpstreamRef = remote + "/" + branch
	return nil
}

func (f *Fake) HasDivergence(_ context.Context, _, _ string) (*vcs.DivergenceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("HasDivergence"); err != nil {
		return nil, err
	}
	return &vcs.DivergenceInfo{
		LocalAhead:  f.Ahead,
		RemoteAhead: f.Behind,
		IsDiverged:  f.Ahead > 0 && f.Behind > 0,
	}, nil
}

func (f *Fake) HasRemote(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("HasRemote"); err != nil {
		return false, err
	}
	_, ok := f.Remotes[name]
	return ok, nil
}

func (f *Fake) RemoteURL(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RemoteURL"); err != nil {
		return "", err
	}
	url, ok := f.Remotes[name]
	if !ok {
		return "", vcs.ErrNoRemote
	}
	return url, nil
}

func (f *Fake) AddRemote(_ context.Context, name, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddRemote"); err != nil {
		return err
	}
	if _, ok := f.Remotes[name]; ok {
		return &vcs.CommandError{Args: []string{"remote", "add", name, url}, ExitCode: 3, Stderr: "error: remote " + name + " already exists."}
	}
	f.Remotes[name] = url
	return nil
}

func (f *Fake) RemoteHeadBranch(_ context.Context, remote string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RemoteHeadBranch"); err != nil {
		return "", err
	}
	if f.RemoteHead == "" {
		return "", nil
	}
	return remote + "/" + f.RemoteHead, nil
}

func (f *Fake) RemoteBranches(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RemoteBranches"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.RemoteBranchList...), nil
}

func (f *Fake) Fetch(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("Fetch")
}

// Pull fast-forwards when only the remote moved and reports a merge
// commit when both sides moved. Set PullFunc to script conflicts.
func (f *Fake) Pull(ctx context.Context, opts vcs.PullOptions) (*vcs.PullResult, error) {
	f.mu.Lock()
	if err := f.enter("Pull"); err != nil {
		f.mu.Unlock()
		return &vcs.PullResult{Stderr: err.Error()}, err
	}
	if fn := f.PullFunc; fn != nil {
		f.mu.Unlock()
		return fn(ctx, opts)
	}
	defer f.mu.Unlock()

	switch {
	case f.Behind == 0:
		return &vcs.PullResult{Stdout: "Already up to date.\n"}, nil
	case f.Ahead == 0:
		f.Head = f.UpstreamHash
		f.Behind = 0
		return &vcs.PullResult{Stdout: "Updating c0..c1\nFast-forward\n todos.json | 1 +\n"}, nil
	default:
		f.Head = f.nextHash()
		f.Ahead++
		f.Behind = 0
		return &vcs.PullResult{Stdout: "Merge made by the 'ort' strategy.\n"}, nil
	}
}

func (f *Fake) Push(_ context.Context, opts vcs.PushOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Push"); err != nil {
		return err
	}
	if f.Behind > 0 {
		return fmt.Errorf("%w: remote has %d new commits", vcs.ErrPushRejected, f.Behind)
	}
	if !contains(f.RemoteBranchList, f.Branch) {
		f.RemoteBranchList = append(f.RemoteBranchList, f.Branch)
		if f.RemoteHead == "" {
			f.RemoteHead = f.Branch
		}
	}
	if opts.SetUpstream {
		f.UpstreamRef = vcs.DefaultRemote + "/" + f.Branch
	}
	f.UpstreamHash = f.Head
	f.Ahead = 0
	return nil
}

// Lock exposes the mutex to PullFunc implementations that mutate state.
func (f *Fake) Lock() { f.mu.Lock() }

// Unlock releases the mutex taken by Lock.
func (f *Fake) Unlock() { f.mu.Unlock() }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
