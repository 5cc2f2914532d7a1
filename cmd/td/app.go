package main

import (
	"context"
	"os"
	"time"

	"github.com/mschirtzinger/td/internal/conflict"
	"github.com/mschirtzinger/td/internal/record"
	"github.com/mschirtzinger/td/internal/syncer"
	"github.com/mschirtzinger/td/internal/ui"
	"github.com/mschirtzinger/td/internal/vcs"
	"github.com/mschirtzinger/td/internal/vcs/git"
)

// gitOptions are the binding options derived from the loaded config.
func gitOptions() git.Options {
	return git.Options{
		NetworkTimeout: cfg.Sync.NetworkTimeout,
		Identity:       cfg.Identity(),
		Logger:         logger.With("component", "git"),
	}
}

func openRepo() (*git.Git, error) {
	if !vcs.IsRepository(cfg.DataDir) {
		return nil, vcs.ErrNotARepository
	}
	return git.New(cfg.DataDir, gitOptions())
}

func newResolver() *conflict.Resolver {
	return conflict.New(conflict.Options{
		Strategy:   cfg.Conflict.Strategy,
		Renderer:   &ui.SideBySide{Out: os.Stdout},
		Prompter:   ui.NewPrompter(os.Stdin, os.Stdout),
		MaxPrompts: cfg.Conflict.MaxPrompts,
		Logger:     logger.With("component", "resolver"),
	})
}

func newSyncer(repo vcs.VCS, store *record.Store) (*syncer.Syncer, error) {
	return syncer.New(syncer.Options{
		Repo:        repo,
		Store:       store,
		Resolver:    newResolver(),
		LockTimeout: lockTimeout(cfg.Sync.LockTimeout),
		Logger:      logger.With("component", "sync"),
	})
}

// lockTimeout maps sync.lock-timeout onto syncer.Options, where zero means
// the default. A configured zero or negative value tries the lock once.
func lockTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}

// openStore returns the configured store. With sync.auto on and a
// repository present, every save is followed by a sync.
func openStore(ctx context.Context) (*record.Store, error) {
	store := record.NewStore(cfg.StorePath())
	if !cfg.Sync.Auto || !vcs.IsRepository(cfg.DataDir) {
		return store, nil
	}

	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	s, err := newSyncer(repo, store)
	if err != nil {
		return nil, err
	}
	auto := syncer.NewAutoSync(ctx, s)
	auto.OnResult = func(res *syncer.Result, err error) {
		if err != nil {
			msg, _, _ := describeError(err)
			WarnError("auto-sync failed: %s", msg)
			return
		}
		printSyncResult(res)
	}
	store.Subscribe(auto)
	return store, nil
}
