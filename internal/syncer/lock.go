package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/mschirtzinger/td/internal/vcs"
)

const (
	// LockFileName lives inside .git so it is never committed.
	LockFileName = "td-sync.lock"

	// DefaultLockTimeout bounds how long Sync waits for another sync.
	DefaultLockTimeout = 5 * time.Second
)

var errLockBusy = errors.New("lock busy")

// syncLock is an exclusive advisory lock on .git/td-sync.lock.
type syncLock struct {
	flock *flock.Flock
}

func newSyncLock(repoRoot string) *syncLock {
	return &syncLock{flock: flock.New(filepath.Join(repoRoot, ".git", LockFileName))}
}

// acquire retries with exponential backoff until timeout. A timeout of 0
// tries exactly once. Contention ends in vcs.ErrSyncLocked.
func (l *syncLock) acquire(ctx context.Context, timeout time.Duration) error {
	try := func() error {
		locked, err := l.flock.TryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to lock %s: %w", l.flock.Path(), err))
		}
		if !locked {
			return errLockBusy
		}
		return nil
	}

	var bo backoff.BackOff
	if timeout <= 0 {
		bo = &backoff.StopBackOff{}
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 50 * time.Millisecond
		exp.MaxInterval = time.Second
		exp.MaxElapsedTime = timeout
		bo = exp
	}

	err := backoff.Retry(try, backoff.WithContext(bo, ctx))
	if errors.Is(err, errLockBusy) {
		return fmt.Errorf("%w (lock file %s)", vcs.ErrSyncLocked, l.flock.Path())
	}
	return err
}

func (l *syncLock) release() error {
	return l.flock.Unlock()
}
