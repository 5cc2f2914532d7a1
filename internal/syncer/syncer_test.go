package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/mschirtzinger/td/internal/conflict"
	"github.com/mschirtzinger/td/internal/record"
	"github.com/mschirtzinger/td/internal/vcs"
	"github.com/mschirtzinger/td/internal/vcs/vcstest"
)

var fixedTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// line encodes a record with a fixed creation time.
func line(t *testing.T, title string) string {
	t.Helper()
	s, err := record.EncodeLine(record.Record{Title: title, CreatedAt: fixedTime})
	if err != nil {
		t.Fatalf("EncodeLine() failed: %v", err)
	}
	return s
}

type fixture struct {
	root  string
	fake  *vcstest.Fake
	store *record.Store
}

// setupFixture creates a data directory with a .git entry, a fake
// repository bound to it and a store file holding titles.
func setupFixture(t *testing.T, titles ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatalf("failed to create .git: %v", err)
	}

	var content string
	for _, title := range titles {
		content += line(t, title) + "\n"
	}
	path := filepath.Join(root, "todos.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write store: %v", err)
	}

	return &fixture{
		root:  root,
		fake:  vcstest.New(root),
		store: record.NewStore(path),
	}
}

func (f *fixture) syncer(t *testing.T, resolver *conflict.Resolver) *Syncer {
	t.Helper()
	s, err := New(Options{Repo: f.fake, Store: f.store, Resolver: resolver, LockTimeout: -1})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return s
}

func (f *fixture) read(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.store.Path())
	if err != nil {
		t.Fatalf("failed to read store: %v", err)
	}
	return string(data)
}

// conflictPull scripts a pull that leaves content in the store with the
// given paths unmerged.
func (f *fixture) conflictPull(t *testing.T, content string, paths ...string) {
	f.fake.PullFunc = func(ctx context.Context, opts vcs.PullOptions) (*vcs.PullResult, error) {
		if err := os.WriteFile(f.store.Path(), []byte(content), 0644); err != nil {
			t.Errorf("failed to write conflict: %v", err)
		}
		f.fake.Lock()
		f.fake.InMerge = true
		f.fake.Conflicted = paths
		f.fake.Behind = 0
		f.fake.Unlock()

		out := &vcs.PullResult{
			Stdout: "Auto-merging todos.json\nCONFLICT (content): Merge conflict in todos.json\nAutomatic merge failed; fix conflicts and then commit the result.\n",
		}
		return out, &vcs.CommandError{Args: []string{"pull"}, ExitCode: 1, Stdout: out.Stdout}
	}
}

// remoteMoved makes origin one commit ahead of the local branch.
func (f *fixture) remoteMoved() {
	f.fake.UpstreamHash = "r1"
	f.fake.Behind = 1
}

type scriptedPrompter struct {
	answers []string
	calls   int
}

func (p *scriptedPrompter) PromptChoice(ctx context.Context, options []string) (string, error) {
	if p.calls >= len(p.answers) {
		return "", errors.New("no more answers")
	}
	p.calls++
	return p.answers[p.calls-1], nil
}

func hasPhase(phases []Phase, p Phase) bool {
	for _, ph := range phases {
		if ph == p {
			return true
		}
	}
	return false
}

func TestNewRequiresRepoAndStore(t *testing.T) {
	if _, err := New(Options{Store: record.NewStore("x")}); err == nil {
		t.Error("New() without repo should fail")
	}
	if _, err := New(Options{Repo: vcstest.New(t.TempDir())}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestSyncNotARepository(t *testing.T) {
	root := t.TempDir()
	s, err := New(Options{
		Repo:  vcstest.New(root),
		Store: record.NewStore(filepath.Join(root, "todos.json")),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, err := s.Sync(context.Background()); !errors.Is(err, vcs.ErrNotARepository) {
		t.Errorf("Sync() error = %v, want ErrNotARepository", err)
	}
}

func TestSyncNoRemote(t *testing.T) {
	f := setupFixture(t, "a", "b")
	f.fake.Dirty = true

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	if !res.Committed {
		t.Error("Committed = false, want true")
	}
	if res.Outcome != OutcomeNoRemote {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeNoRemote)
	}
	if res.Records != 2 {
		t.Errorf("Records = %d, want 2", res.Records)
	}
	if res.Pushed || f.fake.Called("Push") || f.fake.Called("Pull") {
		t.Error("Sync() without remote must not pull or push")
	}
	if len(f.fake.Commits) != 1 || f.fake.Commits[0].Message != DefaultCommitMessage {
		t.Errorf("Commits = %+v", f.fake.Commits)
	}
	if len(f.fake.Added) != 1 || strings.Join(f.fake.Added[0], ",") != "todos.json" {
		t.Errorf("Added = %v, want [[todos.json]]", f.fake.Added)
	}
}

func TestSyncStagesIgnoreFile(t *testing.T) {
	f := setupFixture(t)
	if err := os.WriteFile(filepath.Join(f.root, IgnoreFileName), []byte("*.tmp\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := f.syncer(t, nil).Sync(context.Background()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if len(f.fake.Added) != 1 || strings.Join(f.fake.Added[0], ",") != "todos.json,.gitignore" {
		t.Errorf("Added = %v", f.fake.Added)
	}
}

func TestSyncNothingToCommit(t *testing.T) {
	f := setupFixture(t, "a")

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if res.Committed {
		t.Error("Committed = true with nothing staged")
	}
	if f.fake.Called("Commit") {
		t.Error("Commit called with nothing staged")
	}
}

func TestSyncUpToDateLeavesStoreUntouched(t *testing.T) {
	f := setupFixture(t, "a", "b", "c")
	f.fake.WithRemote("https://example.com/todos.git", "main")

	before := f.read(t)
	info, err := os.Stat(f.store.Path())
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	if res.Outcome != OutcomeUpToDate {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeUpToDate)
	}
	if f.fake.Called("Pull") {
		t.Error("Pull called although HEAD equals upstream")
	}
	if res.Pushed {
		t.Error("Pushed = true with nothing to push")
	}
	if !f.fake.Called("Fetch") {
		t.Error("Fetch not called")
	}

	if after := f.read(t); after != before {
		t.Errorf("store changed:\nbefore %q\nafter  %q", before, after)
	}
	info2, err := os.Stat(f.store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ModTime().Equal(info.ModTime()) {
		t.Error("store file was rewritten")
	}
}

func TestSyncLocalAheadPushesWithoutPull(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.fake.Dirty = true

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if !res.Committed || !res.Pushed {
		t.Errorf("Result = %+v, want committed and pushed", res)
	}
	if res.Outcome != OutcomeUpToDate {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeUpToDate)
	}
	if f.fake.Called("Pull") {
		t.Error("Pull called although remote is not ahead")
	}
}

func TestSyncFastForward(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.remoteMoved()

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if res.Outcome != OutcomeFastForward {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeFastForward)
	}
	if res.Pushed {
		t.Error("Pushed = true after fast-forward only")
	}
	if !hasPhase(res.Phases, PhasePulling) || hasPhase(res.Phases, PhasePushing) {
		t.Errorf("Phases = %v", res.Phases)
	}
}

func TestSyncMergedAndPushed(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.fake.Dirty = true
	f.remoteMoved()

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if res.Outcome != OutcomeMerged {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeMerged)
	}
	if !res.Committed || !res.Pushed || res.Resolved {
		t.Errorf("Result = %+v", res)
	}
}

func TestSyncConflictKeepBoth(t *testing.T) {
	f := setupFixture(t, "A", "local1", "B")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.fake.Dirty = true
	f.remoteMoved()

	conflicted := strings.Join([]string{
		line(t, "A"),
		"<<<<<<< HEAD",
		line(t, "local1"),
		"=======",
		line(t, "remote1"),
		">>>>>>> origin/main",
		line(t, "B"),
	}, "\n") + "\n"
	f.conflictPull(t, conflicted, "todos.json")

	prompter := &scriptedPrompter{answers: []string{"keep-both"}}
	resolver := conflict.New(conflict.Options{Prompter: prompter})

	res, err := f.syncer(t, resolver).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	want := strings.Join([]string{line(t, "A"), line(t, "local1"), line(t, "remote1"), line(t, "B")}, "\n") + "\n"
	if got := f.read(t); got != want {
		t.Errorf("store =\n%s\nwant\n%s", got, want)
	}
	if res.Outcome != OutcomeResolved || !res.Resolved || !res.Pushed {
		t.Errorf("Result = %+v", res)
	}
	if res.Records != 4 {
		t.Errorf("Records = %d, want 4", res.Records)
	}
	if !strings.Contains(res.PullOutput, "CONFLICT") {
		t.Errorf("PullOutput = %q", res.PullOutput)
	}
	last := f.fake.Commits[len(f.fake.Commits)-1]
	if last.Message != DefaultMergeMessage {
		t.Errorf("last commit = %q, want %q", last.Message, DefaultMergeMessage)
	}
	if prompter.calls != 1 {
		t.Errorf("prompted %d times, want 1", prompter.calls)
	}
}

func TestSyncConflictWithoutResolver(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.remoteMoved()
	conflicted := "<<<<<<< HEAD\n" + line(t, "x") + "\n=======\n" + line(t, "y") + "\n>>>>>>> origin/main\n"
	f.conflictPull(t, conflicted, "todos.json")

	res, err := f.syncer(t, nil).Sync(context.Background())
	if !errors.Is(err, conflict.ErrConflictUnresolved) {
		t.Fatalf("Sync() error = %v, want ErrConflictUnresolved", err)
	}
	if res.Pushed {
		t.Error("Pushed after unresolved conflict")
	}
	if got := f.read(t); got != conflicted {
		t.Errorf("store modified after unresolved conflict: %q", got)
	}
}

func TestSyncConflictInterrupted(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.remoteMoved()
	conflicted := "<<<<<<< HEAD\n" + line(t, "x") + "\n=======\n" + line(t, "y") + "\n>>>>>>> origin/main\n"
	f.conflictPull(t, conflicted, "todos.json")

	resolver := conflict.New(conflict.Options{Prompter: &scriptedPrompter{}})
	_, err := f.syncer(t, resolver).Sync(context.Background())
	if !errors.Is(err, conflict.ErrConflictUnresolved) {
		t.Fatalf("Sync() error = %v, want ErrConflictUnresolved", err)
	}
	if got := f.read(t); got != conflicted {
		t.Error("store rewritten after interrupted resolution")
	}
	if f.fake.Called("Push") {
		t.Error("Push called after interrupted resolution")
	}
}

func TestSyncConflictOutsideStore(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.remoteMoved()
	conflicted := "<<<<<<< HEAD\n" + line(t, "x") + "\n=======\n" + line(t, "y") + "\n>>>>>>> origin/main\n"
	f.conflictPull(t, conflicted, "todos.json", "notes.txt")

	resolver := conflict.New(conflict.Options{Strategy: conflict.StrategyOurs})
	_, err := f.syncer(t, resolver).Sync(context.Background())
	if !errors.Is(err, conflict.ErrConflictUnresolved) {
		t.Fatalf("Sync() error = %v, want ErrConflictUnresolved", err)
	}
	if !strings.Contains(err.Error(), "notes.txt") {
		t.Errorf("error %q does not name notes.txt", err)
	}
}

func TestSyncResumesInterruptedMerge(t *testing.T) {
	f := setupFixture(t)
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.fake.InMerge = true
	f.fake.Conflicted = []string{"todos.json"}

	conflicted := "<<<<<<< HEAD\n" + line(t, "mine") + "\n=======\n" + line(t, "theirs") + "\n>>>>>>> origin/main\n"
	if err := os.WriteFile(f.store.Path(), []byte(conflicted), 0644); err != nil {
		t.Fatal(err)
	}

	resolver := conflict.New(conflict.Options{Strategy: conflict.StrategyOurs})
	res, err := f.syncer(t, resolver).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	if got, want := f.read(t), line(t, "mine")+"\n"; got != want {
		t.Errorf("store = %q, want %q", got, want)
	}
	if f.fake.Called("Pull") {
		t.Error("Pull called while resuming a merge")
	}
	if !res.Resolved || res.Outcome != OutcomeResolved || !res.Pushed {
		t.Errorf("Result = %+v", res)
	}
	if res.Phases[1] != PhaseResolving {
		t.Errorf("Phases = %v, want resolving right after locking", res.Phases)
	}
}

func TestSyncConcludesMergeWithNothingStaged(t *testing.T) {
	f := setupFixture(t, "mine")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.fake.InMerge = true

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if f.fake.InMerge {
		t.Error("merge still pending after Sync")
	}
	if len(f.fake.Commits) != 1 || f.fake.Commits[0].Message != DefaultMergeMessage {
		t.Errorf("Commits = %+v, want one merge commit", f.fake.Commits)
	}
	if !res.Committed || !res.Pushed {
		t.Errorf("Result = %+v", res)
	}
}

func TestSyncPushFailureKeepsCommit(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.fake.Dirty = true
	f.fake.Errors = map[string]error{
		"Push": &vcs.CommandError{Args: []string{"push"}, ExitCode: 128, Stderr: "fatal: unable to access remote"},
	}

	res, err := f.syncer(t, nil).Sync(context.Background())
	if !errors.Is(err, ErrPushFailed) {
		t.Fatalf("Sync() error = %v, want ErrPushFailed", err)
	}
	var phaseErr *PhaseError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("expected *PhaseError, got %T", err)
	}
	if phaseErr.Stderr != "fatal: unable to access remote" {
		t.Errorf("Stderr = %q", phaseErr.Stderr)
	}
	if !res.Committed || len(f.fake.Commits) != 1 {
		t.Error("local commit should survive a failed push")
	}
}

func TestSyncPushRejected(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.fake.Dirty = true
	f.remoteMoved()
	// Pull succeeds but leaves the remote ahead.
	f.fake.PullFunc = func(ctx context.Context, opts vcs.PullOptions) (*vcs.PullResult, error) {
		return &vcs.PullResult{Stdout: "Merge made by the 'ort' strategy.\n"}, nil
	}

	_, err := f.syncer(t, nil).Sync(context.Background())
	if !errors.Is(err, ErrPushFailed) || !errors.Is(err, vcs.ErrPushRejected) {
		t.Errorf("Sync() error = %v, want ErrPushFailed wrapping ErrPushRejected", err)
	}
}

func TestSyncPullFailure(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.remoteMoved()
	f.fake.PullFunc = func(ctx context.Context, opts vcs.PullOptions) (*vcs.PullResult, error) {
		stderr := "fatal: Could not read from remote repository."
		return &vcs.PullResult{Stderr: stderr}, &vcs.CommandError{Args: []string{"pull"}, ExitCode: 128, Stderr: stderr}
	}

	_, err := f.syncer(t, nil).Sync(context.Background())
	if !errors.Is(err, ErrPullFailed) {
		t.Fatalf("Sync() error = %v, want ErrPullFailed", err)
	}
	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) && !strings.Contains(phaseErr.Stderr, "Could not read") {
		t.Errorf("Stderr = %q", phaseErr.Stderr)
	}
}

func TestSyncCorruptStoreAfterPull(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git", "main")
	f.remoteMoved()
	f.fake.PullFunc = func(ctx context.Context, opts vcs.PullOptions) (*vcs.PullResult, error) {
		content := line(t, "a") + "\n" + line(t, "b") + "\n{not json\n"
		if err := os.WriteFile(f.store.Path(), []byte(content), 0644); err != nil {
			t.Errorf("write failed: %v", err)
		}
		return &vcs.PullResult{Stdout: "Fast-forward\n"}, nil
	}

	_, err := f.syncer(t, nil).Sync(context.Background())
	var corrupt *record.CorruptRecordError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Sync() error = %v, want *record.CorruptRecordError", err)
	}
	if corrupt.Line != 3 {
		t.Errorf("Line = %d, want 3", corrupt.Line)
	}
}

func TestSyncFirstPushToEmptyRemote(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.WithRemote("https://example.com/todos.git")

	res, err := f.syncer(t, nil).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if res.Outcome != OutcomeFirstPush || !res.Pushed {
		t.Errorf("Result = %+v", res)
	}
	if f.fake.Called("Pull") || f.fake.Called("Fetch") {
		t.Error("pull phase should be skipped for an empty remote")
	}
	if f.fake.UpstreamRef != "origin/main" {
		t.Errorf("UpstreamRef = %q, want origin/main", f.fake.UpstreamRef)
	}
}

func TestSyncNoDefaultBranch(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.Remotes["origin"] = "https://example.com/todos.git"
	f.fake.RemoteBranchList = []string{"feature"}

	_, err := f.syncer(t, nil).Sync(context.Background())
	if !errors.Is(err, vcs.ErrNoDefaultBranchFound) {
		t.Fatalf("Sync() error = %v, want ErrNoDefaultBranchFound", err)
	}
	if !errors.Is(err, ErrPullFailed) {
		t.Error("error should also match ErrPullFailed")
	}
}

func TestSyncStageFailure(t *testing.T) {
	f := setupFixture(t, "a")
	f.fake.Errors = map[string]error{"Add": &vcs.CommandError{Args: []string{"add"}, ExitCode: 128, Stderr: "fatal: index.lock exists"}}

	_, err := f.syncer(t, nil).Sync(context.Background())
	if !errors.Is(err, ErrStageFailed) {
		t.Errorf("Sync() error = %v, want ErrStageFailed", err)
	}
}

func TestSyncLocked(t *testing.T) {
	f := setupFixture(t, "a")

	other := flock.New(filepath.Join(f.root, ".git", LockFileName))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("failed to take lock: %v", err)
	}
	defer other.Unlock()

	_, err = f.syncer(t, nil).Sync(context.Background())
	if !errors.Is(err, vcs.ErrSyncLocked) {
		t.Errorf("Sync() error = %v, want ErrSyncLocked", err)
	}
	if f.fake.Called("Add") {
		t.Error("Sync() ran without the lock")
	}
}

func TestSyncReleasesLock(t *testing.T) {
	f := setupFixture(t, "a")
	s := f.syncer(t, nil)

	for i := 0; i < 2; i++ {
		if _, err := s.Sync(context.Background()); err != nil {
			t.Fatalf("Sync() #%d failed: %v", i+1, err)
		}
	}
}

func TestPhaseErrorIs(t *testing.T) {
	tests := []struct {
		phase Phase
		want  error
	}{
		{PhaseStaging, ErrStageFailed},
		{PhaseCommitting, ErrCommitFailed},
		{PhasePulling, ErrPullFailed},
		{PhasePushing, ErrPushFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			err := &PhaseError{Phase: tt.phase, Err: errors.New("boom")}
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			for _, other := range tests {
				if other.phase != tt.phase && errors.Is(err, other.want) {
					t.Errorf("matched %v", other.want)
				}
			}
		})
	}

	resolving := &PhaseError{Phase: PhaseResolving, Err: conflict.ErrConflictUnresolved}
	if !errors.Is(resolving, conflict.ErrConflictUnresolved) {
		t.Error("PhaseError should unwrap to its cause")
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"CONFLICT (content): Merge conflict in todos.json", true},
		{"Automatic merge failed; fix conflicts", true},
		{"Already up to date.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isConflict(tt.output); got != tt.want {
			t.Errorf("isConflict(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}
