package syncer

import (
	"context"

	"github.com/mschirtzinger/td/internal/record"
)

// AutoSync is a record.Notifier that runs a sync after every save.
// Sync failures are logged; the save itself already succeeded.
type AutoSync struct {
	ctx    context.Context
	syncer *Syncer

	// OnResult, if set, receives every sync result.
	OnResult func(*Result, error)
}

var _ record.Notifier = (*AutoSync)(nil)

// NewAutoSync returns a notifier that syncs with s under ctx.
func NewAutoSync(ctx context.Context, s *Syncer) *AutoSync {
	return &AutoSync{ctx: ctx, syncer: s}
}

// Notify implements record.Notifier.
func (a *AutoSync) Notify(path string) {
	res, err := a.syncer.Sync(a.ctx)
	if err != nil {
		a.syncer.logger.Warn("auto-sync failed", "path", path, "error", err)
	}
	if a.OnResult != nil {
		a.OnResult(res, err)
	}
}
