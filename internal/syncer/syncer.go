// Package syncer replicates the record store through its git repository.
//
// One Sync call stages and commits the store file, pulls from origin,
// hands merge conflicts in the store to a conflict.Resolver, and pushes.
// Calls never retry on their own; every failure is returned to the caller.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mschirtzinger/td/internal/conflict"
	"github.com/mschirtzinger/td/internal/record"
	"github.com/mschirtzinger/td/internal/vcs"
)

const (
	// DefaultCommitMessage is used for local changes.
	DefaultCommitMessage = "Update todos"

	// DefaultMergeMessage concludes a merge whose conflicts were resolved.
	DefaultMergeMessage = "Resolve sync conflicts"

	// IgnoreFileName is staged alongside the store when present.
	IgnoreFileName = ".gitignore"
)

// Outcome says how the local branch was reconciled with origin.
type Outcome string

const (
	OutcomeNoRemote    Outcome = "no-remote"
	OutcomeUpToDate    Outcome = "up-to-date"
	OutcomeFastForward Outcome = "fast-forward"
	OutcomeMerged      Outcome = "merged"
	OutcomeResolved    Outcome = "resolved"

	// OutcomeFirstPush means origin had no branches yet.
	OutcomeFirstPush Outcome = "first-push"
)

// Options configures a Syncer.
type Options struct {
	Repo vcs.VCS

	// Store is the record store inside Repo's working tree.
	Store *record.Store

	// Resolver handles conflicts in the store file. Without one a
	// conflicting pull fails with conflict.ErrConflictUnresolved.
	Resolver *conflict.Resolver

	// Remote defaults to vcs.DefaultRemote
	Remote string

	// LockTimeout is how long to wait for another sync. Zero means
	// DefaultLockTimeout; negative tries the lock once.
	LockTimeout time.Duration

	CommitMessage string
	Logger        *slog.Logger
}

// Result reports what a Sync did.
type Result struct {
	Committed bool
	Outcome   Outcome
	Resolved  bool
	Pushed    bool

	// Records is the number of records in the store after the sync.
	Records int

	// Phases lists the phases that ran, in order.
	Phases []Phase

	// PullOutput is git's combined pull output, if a pull ran.
	PullOutput string
}

func (r *Result) enter(p Phase) {
	r.Phases = append(r.Phases, p)
}

// Syncer runs syncs for one repository. Syncs of the same repository are
// serialized through a lock file, also across processes.
type Syncer struct {
	repo     vcs.VCS
	store    *record.Store
	resolver *conflict.Resolver
	remote   string
	lockWait time.Duration
	message  string
	logger   *slog.Logger
}

// New returns a Syncer for opts.
func New(opts Options) (*Syncer, error) {
	if opts.Repo == nil {
		return nil, errors.New("syncer: repository is required")
	}
	if opts.Store == nil {
		return nil, errors.New("syncer: store is required")
	}
	if opts.Remote == "" {
		opts.Remote = vcs.DefaultRemote
	}
	switch {
	case opts.LockTimeout == 0:
		opts.LockTimeout = DefaultLockTimeout
	case opts.LockTimeout < 0:
		opts.LockTimeout = 0
	}
	if opts.CommitMessage == "" {
		opts.CommitMessage = DefaultCommitMessage
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Syncer{
		repo:     opts.Repo,
		store:    opts.Store,
		resolver: opts.Resolver,
		remote:   opts.Remote,
		lockWait: opts.LockTimeout,
		message:  opts.CommitMessage,
		logger:   opts.Logger,
	}, nil
}

// storeRel is the store path relative to the working tree, as git wants it.
func (s *Syncer) storeRel() string {
	rel, err := filepath.Rel(s.repo.RepoRoot(), s.store.Path())
	if err != nil {
		return s.store.Path()
	}
	return filepath.ToSlash(rel)
}

// Sync runs one full replication cycle.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	root := s.repo.RepoRoot()
	if !vcs.IsRepository(root) {
		return nil, vcs.ErrNotARepository
	}

	res := &Result{}
	res.enter(PhaseLocking)
	lock := newSyncLock(root)
	if err := lock.acquire(ctx, s.lockWait); err != nil {
		return res, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			s.logger.Warn("failed to release sync lock", "error", err)
		}
	}()

	start := time.Now()
	s.logger.Info("sync started", "repo", root)

	if err := s.run(ctx, res); err != nil {
		s.logger.Error("sync failed", "phases", res.Phases, "error", err)
		return res, err
	}

	s.logger.Info("sync finished",
		"outcome", res.Outcome,
		"committed", res.Committed,
		"resolved", res.Resolved,
		"pushed", res.Pushed,
		"records", res.Records,
		"duration", time.Since(start))
	return res, nil
}

func (s *Syncer) run(ctx context.Context, res *Result) error {
	resumed, err := s.resumePending(ctx, res)
	if err != nil {
		return err
	}

	if !resumed {
		if err := s.commitLocal(ctx, res, s.message); err != nil {
			return err
		}
	}

	hasRemote, err := s.repo.HasRemote(ctx, s.remote)
	if err != nil {
		return err
	}
	if !hasRemote {
		res.Outcome = OutcomeNoRemote
		return s.validate(res)
	}

	if !resumed {
		if err := s.pull(ctx, res); err != nil {
			return err
		}
	} else {
		res.Outcome = OutcomeResolved
	}

	if err := s.validate(res); err != nil {
		return err
	}
	return s.push(ctx, res)
}

// resumePending finishes a merge an earlier run left behind: if the tree is
// mid-merge and the store still has conflict markers, resolve and commit.
func (s *Syncer) resumePending(ctx context.Context, res *Result) (bool, error) {
	inMerge, err := s.repo.IsInMerge(ctx)
	if err != nil {
		return false, err
	}
	if !inMerge {
		return false, nil
	}

	// #nosec G304 - store path comes from configuration
	raw, err := os.ReadFile(s.store.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read store: %w", err)
	}
	if !conflict.HasMarkers(raw) {
		return false, nil
	}

	s.logger.Info("resuming interrupted merge", "path", s.store.Path())
	if err := s.resolve(ctx, res); err != nil {
		return false, err
	}
	return true, nil
}

// commitLocal stages the store and commits if the index differs from HEAD.
// A pending merge is always concluded, even when the resolved tree equals
// HEAD.
func (s *Syncer) commitLocal(ctx context.Context, res *Result, message string) error {
	res.enter(PhaseStaging)
	paths := []string{s.storeRel()}
	if _, err := os.Stat(filepath.Join(s.repo.RepoRoot(), IgnoreFileName)); err == nil {
		paths = append(paths, IgnoreFileName)
	}
	if err := s.repo.Add(ctx, paths...); err != nil {
		return &PhaseError{Phase: PhaseStaging, Stderr: vcs.Stderr(err), Err: err}
	}

	res.enter(PhaseCommitting)
	staged, err := s.repo.HasStagedChanges(ctx)
	if err != nil {
		return &PhaseError{Phase: PhaseCommitting, Stderr: vcs.Stderr(err), Err: err}
	}
	inMerge, err := s.repo.IsInMerge(ctx)
	if err != nil {
		return &PhaseError{Phase: PhaseCommitting, Stderr: vcs.Stderr(err), Err: err}
	}
	if !staged && !inMerge {
		s.logger.Debug("nothing to commit")
		return nil
	}
	if inMerge {
		message = DefaultMergeMessage
	}
	if err := s.repo.Commit(ctx, vcs.CommitOptions{Message: message}); err != nil {
		return &PhaseError{Phase: PhaseCommitting, Stderr: vcs.Stderr(err), Err: err}
	}
	res.Committed = true
	return nil
}

func (s *Syncer) pull(ctx context.Context, res *Result) error {
	res.enter(PhasePulling)
	pullErr := func(err error) error {
		return &PhaseError{Phase: PhasePulling, Stderr: vcs.Stderr(err), Err: err}
	}

	branches, err := s.repo.RemoteBranches(ctx, s.remote)
	if err != nil {
		return pullErr(err)
	}
	if len(branches) == 0 {
		s.logger.Info("remote has no branches, skipping pull", "remote", s.remote)
		res.Outcome = OutcomeFirstPush
		return nil
	}

	if err := s.repo.Fetch(ctx, s.remote); err != nil {
		return pullErr(err)
	}
	upstream, err := vcs.EnsureTrackingBranch(ctx, s.repo, s.remote)
	if err != nil {
		return pullErr(err)
	}

	head, err := s.repo.GetCommitHash(ctx, "HEAD")
	if err != nil {
		return pullErr(err)
	}
	upstreamHash, err := s.repo.GetCommitHash(ctx, "@{u}")
	if err != nil {
		return pullErr(err)
	}
	if head == upstreamHash {
		res.Outcome = OutcomeUpToDate
		return nil
	}

	div, err := s.repo.HasDivergence(ctx, "HEAD", "@{u}")
	if err != nil {
		return pullErr(err)
	}
	if div.RemoteAhead == 0 {
		res.Outcome = OutcomeUpToDate
		return nil
	}

	_, branch, _ := strings.Cut(upstream, "/")
	result, err := s.repo.Pull(ctx, vcs.PullOptions{
		Remote:         s.remote,
		Ref:            branch,
		AllowUnrelated: true,
	})
	if result != nil {
		res.PullOutput = result.Output()
	}

	if result != nil && isConflict(result.Output()) {
		s.logger.Info("merge conflict detected", "upstream", upstream)
		if err := s.resolve(ctx, res); err != nil {
			return err
		}
		res.Outcome = OutcomeResolved
		return nil
	}
	if err != nil {
		return pullErr(err)
	}

	if div.LocalAhead == 0 {
		res.Outcome = OutcomeFastForward
	} else {
		res.Outcome = OutcomeMerged
	}
	return nil
}

// isConflict recognizes git's conflict report on either stream.
func isConflict(output string) bool {
	return strings.Contains(output, "CONFLICT") || strings.Contains(output, "Automatic merge failed")
}

// resolve runs the Resolver on the store and commits the result. Conflicts
// in any other file cannot be resolved here.
func (s *Syncer) resolve(ctx context.Context, res *Result) error {
	res.enter(PhaseResolving)

	conflicted, err := s.repo.ConflictedFiles(ctx)
	if err != nil {
		return &PhaseError{Phase: PhaseResolving, Err: err}
	}
	storeRel := s.storeRel()
	var others []string
	for _, f := range conflicted {
		if f != storeRel {
			others = append(others, f)
		}
	}
	if len(others) > 0 {
		return &PhaseError{
			Phase: PhaseResolving,
			Err:   fmt.Errorf("%w: conflicts outside the store: %s", conflict.ErrConflictUnresolved, strings.Join(others, ", ")),
		}
	}

	if s.resolver == nil {
		return &PhaseError{Phase: PhaseResolving, Err: fmt.Errorf("%w: no resolver configured", conflict.ErrConflictUnresolved)}
	}
	outcome, err := s.resolver.ResolveFile(ctx, s.store.Path())
	if err != nil {
		return &PhaseError{Phase: PhaseResolving, Err: err}
	}
	s.logger.Info("store conflicts resolved", "blocks", outcome.Blocks())

	if err := s.commitLocal(ctx, res, DefaultMergeMessage); err != nil {
		return err
	}
	res.Resolved = true
	return nil
}

// validate loads the store so a corrupt merge result surfaces now.
func (s *Syncer) validate(res *Result) error {
	res.enter(PhaseValidating)
	records, err := s.store.Load()
	if err != nil {
		return err
	}
	res.Records = len(records)
	return nil
}

// push sends local commits to the upstream. The first push to an empty
// remote also sets the upstream.
func (s *Syncer) push(ctx context.Context, res *Result) error {
	pushErr := func(err error) error {
		return &PhaseError{Phase: PhasePushing, Stderr: vcs.Stderr(err), Err: err}
	}

	branch, err := s.repo.CurrentRef(ctx)
	if err != nil {
		return pushErr(err)
	}

	upstream, err := s.repo.Upstream(ctx)
	if err != nil {
		return pushErr(err)
	}

	opts := vcs.PushOptions{Remote: s.remote, Ref: branch}
	if upstream == "" {
		opts.SetUpstream = true
	} else {
		div, err := s.repo.HasDivergence(ctx, "HEAD", "@{u}")
		if err != nil {
			return pushErr(err)
		}
		if div.LocalAhead == 0 {
			return nil
		}
		if _, remoteBranch, ok := strings.Cut(upstream, "/"); ok && remoteBranch != branch {
			opts.Ref = branch + ":" + remoteBranch
		}
	}

	res.enter(PhasePushing)
	if err := s.repo.Push(ctx, opts); err != nil {
		return pushErr(err)
	}
	res.Pushed = true
	return nil
}
