package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mschirtzinger/td/internal/record"
	"github.com/mschirtzinger/td/internal/vcs"
)

// DefaultIgnoreContent is written to .gitignore in new repositories.
const DefaultIgnoreContent = "# td data repository\n*.tmp\n*.tmp.*\n*.bak\n.DS_Store\n"

// InitialCommitMessage is the message of the commit created by Setup.
const InitialCommitMessage = "Initialize td repository"

// SetupOptions configures Setup.
type SetupOptions struct {
	// Path is the data directory
	Path string

	// RemoteURL is the optional origin URL
	RemoteURL string

	// StoreFile is the store file name inside Path (default: todos.json)
	StoreFile string

	// IgnoreContent overrides DefaultIgnoreContent
	IgnoreContent string

	Options
}

// SetupResult reports what Setup did.
type SetupResult struct {
	Repo *Git

	Created     bool
	Cloned      bool
	RemoteAdded bool
	TrackedAs   string

	// Warnings are non-fatal problems, e.g. an existing origin that
	// differs from the requested URL.
	Warnings []string
}

func (r *SetupResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Setup makes opts.Path a repository and binds it to opts.RemoteURL.
// It is idempotent:
//
//   - an existing repository is kept; origin is added only if missing and
//     never overwritten
//   - otherwise the remote is cloned when a URL is given
//   - otherwise a new repository is initialized with an empty store file,
//     an ignore file and exactly one commit
func Setup(ctx context.Context, opts SetupOptions) (*SetupResult, error) {
	if opts.StoreFile == "" {
		opts.StoreFile = "todos.json"
	}
	if opts.IgnoreContent == "" {
		opts.IgnoreContent = DefaultIgnoreContent
	}
	opts.Options = opts.Options.withDefaults()

	absPath, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	opts.Path = absPath

	result := &SetupResult{}
	switch {
	case vcs.IsRepository(opts.Path):
		err = setupExisting(ctx, opts, result)
	case opts.RemoteURL != "":
		err = setupClone(ctx, opts, result)
	default:
		err = setupInit(ctx, opts, result)
	}
	if err != nil {
		return nil, err
	}

	for _, w := range result.Warnings {
		opts.Logger.Warn("setup", "path", opts.Path, "warning", w)
	}
	return result, nil
}

func setupExisting(ctx context.Context, opts SetupOptions, result *SetupResult) error {
	g, err := New(opts.Path, opts.Options)
	if err != nil {
		return err
	}
	result.Repo = g

	if err := record.NewStore(filepath.Join(opts.Path, opts.StoreFile)).EnsureExists(); err != nil {
		return err
	}

	if opts.RemoteURL == "" {
		return nil
	}

	hasOrigin, err := g.HasRemote(ctx, vcs.DefaultRemote)
	if err != nil {
		return err
	}
	if hasOrigin {
		current, err := g.RemoteURL(ctx, vcs.DefaultRemote)
		if err != nil {
			return err
		}
		if current != opts.RemoteURL {
			result.warn("origin already points at %s; leaving it unchanged (requested %s)", current, opts.RemoteURL)
		}
		return nil
	}

	if err := g.AddRemote(ctx, vcs.DefaultRemote, opts.RemoteURL); err != nil {
		return err
	}
	result.RemoteAdded = true
	return connectRemote(ctx, g, result)
}

// connectRemote fetches a freshly added origin and sets up tracking.
// An empty remote is not an error: the first sync creates its branch.
func connectRemote(ctx context.Context, g *Git, result *SetupResult) error {
	branches, err := g.RemoteBranches(ctx, vcs.DefaultRemote)
	if err != nil {
		return err
	}
	if len(branches) == 0 {
		result.warn("remote has no branches yet; the first sync will push")
		return nil
	}

	if err := g.Fetch(ctx, vcs.DefaultRemote); err != nil {
		return err
	}
	tracked, err := vcs.EnsureTrackingBranch(ctx, g, vcs.DefaultRemote)
	if err != nil {
		return err
	}
	result.TrackedAs = tracked
	return nil
}

func setupClone(ctx context.Context, opts SetupOptions, result *SetupResult) error {
	if err := ensureCloneTarget(opts.Path); err != nil {
		return err
	}

	parent := filepath.Dir(opts.Path)
	if _, err := vcs.ExecContext(ctx, opts.NetworkTimeout, parent, "git", "clone", opts.RemoteURL, opts.Path); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	result.Cloned = true

	g, err := New(opts.Path, opts.Options)
	if err != nil {
		return err
	}
	result.Repo = g

	if upstream, err := g.Upstream(ctx); err == nil {
		result.TrackedAs = upstream
	}
	if result.TrackedAs == "" {
		result.warn("cloned an empty repository; the first sync will push")
	}

	return record.NewStore(filepath.Join(opts.Path, opts.StoreFile)).EnsureExists()
}

// ensureCloneTarget accepts a missing or empty directory.
func ensureCloneTarget(path string) error {
	entries, err := os.ReadDir(path)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(filepath.Dir(path), 0755)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("cannot clone into %s: directory is not empty and is not a repository", path)
	}
	return nil
}

func setupInit(ctx context.Context, opts SetupOptions, result *SetupResult) error {
	if err := os.MkdirAll(opts.Path, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.Path, err)
	}

	if _, err := vcs.ExecContext(ctx, opts.Timeout, opts.Path, "git", "-c", "init.defaultBranch=main", "init"); err != nil {
		return fmt.Errorf("git init failed: %w", err)
	}
	result.Created = true

	g, err := New(opts.Path, opts.Options)
	if err != nil {
		return err
	}
	result.Repo = g

	if err := record.NewStore(filepath.Join(opts.Path, opts.StoreFile)).EnsureExists(); err != nil {
		return err
	}
	ignorePath := filepath.Join(opts.Path, ".gitignore")
	if _, err := os.Stat(ignorePath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignorePath, []byte(opts.IgnoreContent), 0644); err != nil {
			return fmt.Errorf("failed to write .gitignore: %w", err)
		}
	}

	if err := g.Add(ctx, opts.StoreFile, ".gitignore"); err != nil {
		return err
	}
	return g.Commit(ctx, vcs.CommitOptions{Message: InitialCommitMessage, AllowEmpty: true})
}
