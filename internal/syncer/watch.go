package syncer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mschirtzinger/td/internal/vcs"
)

// DefaultDebounce is how long the store must stay quiet before a sync.
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	// Debounce defaults to DefaultDebounce
	Debounce time.Duration

	// OnResult, if set, receives the result of every sync Watch runs.
	OnResult func(*Result, error)
}

// storeWatcher turns fsnotify events for the store's directory into a
// stream of change times for the store file only.
type storeWatcher struct {
	watcher *fsnotify.Watcher
	file    string
	changes chan time.Time
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func newStoreWatcher(path string) (*storeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	return &storeWatcher{
		watcher: watcher,
		file:    abs,
		changes: make(chan time.Time, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// start watches the directory holding the store. The directory, not the
// file, is watched because saves replace the file by rename.
func (w *storeWatcher) start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}
	dir := filepath.Dir(w.file)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

func (w *storeWatcher) stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	close(w.changes)
	close(w.errors)
	return nil
}

func (w *storeWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			select {
			case w.changes <- time.Now():
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// relevant keeps create and write events on the store file. Temp files
// written next to it are ignored; their rename shows up as a create.
func (w *storeWatcher) relevant(event fsnotify.Event) bool {
	abs, err := filepath.Abs(event.Name)
	if err != nil || abs != w.file {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write)
}

// Watch syncs once, then again whenever the store file changes and has
// been quiet for the debounce interval. Syncs run one at a time on the
// calling goroutine. A change is only acted on if the store content
// differs from what the last sync left behind, so writes made by a sync
// do not trigger another one. Sync failures are logged and watching
// continues, except for fatal ones (see vcs.IsFatal), which are returned.
// Otherwise Watch returns nil when ctx is done.
func (s *Syncer) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := newStoreWatcher(s.store.Path())
	if err != nil {
		return err
	}
	if err := w.start(); err != nil {
		_ = w.stop()
		return err
	}
	defer func() {
		if err := w.stop(); err != nil {
			s.logger.Warn("failed to stop watcher", "error", err)
		}
	}()

	var lastSum []byte
	runSync := func() error {
		res, err := s.Sync(ctx)
		if err != nil && ctx.Err() == nil {
			if vcs.IsUserActionRequired(err) {
				s.logger.Warn("watch sync needs attention", "error", err)
			} else {
				s.logger.Warn("watch sync failed", "error", err)
			}
		}
		lastSum = s.storeSum()
		if opts.OnResult != nil {
			opts.OnResult(res, err)
		}
		if vcs.IsFatal(err) {
			return err
		}
		return nil
	}

	s.logger.Info("watching store", "path", s.store.Path(), "debounce", opts.Debounce)
	if err := runSync(); err != nil {
		return err
	}

	ticker := time.NewTicker(opts.Debounce / 2)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case changed, ok := <-w.changes:
			if !ok {
				return nil
			}
			pending = changed

		case err, ok := <-w.errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < opts.Debounce {
				continue
			}
			pending = time.Time{}
			if sum := s.storeSum(); bytes.Equal(sum, lastSum) {
				s.logger.Debug("store unchanged since last sync")
				continue
			}
			if err := runSync(); err != nil {
				return err
			}
		}
	}
}

// storeSum hashes the store content; a missing file hashes as empty.
func (s *Syncer) storeSum() []byte {
	// #nosec G304 - store path comes from configuration
	data, err := os.ReadFile(s.store.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	sum := sha256.Sum256(data)
	return sum[:]
}
