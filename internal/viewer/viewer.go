package viewer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Viewer owns the whole view subsystem for one process: the cache, the
// load coordinator and the idle evictor. It replaces what would otherwise
// be package globals with an explicit context object that has a defined
// init and teardown.
type Viewer struct {
	cache   *Cache
	loader  *Loader
	evictor *Evictor
	log     *zap.Logger
}

// Config holds viewer subsystem settings.
type Config struct {
	IdleTimeout time.Duration
}

// New creates a viewer subsystem with empty state.
func New(cfg Config, svcs Services, render RenderFunc, log *zap.Logger) *Viewer {
	if log == nil {
		log = zap.NewNop()
	}
	cache := NewCache()
	return &Viewer{
		cache:   cache,
		loader:  NewLoader(cache, svcs, render, log),
		evictor: NewEvictor(cache, cfg.IdleTimeout, log),
		log:     log,
	}
}

// EnsureViews loads at least the representative view for a part. Safe to
// call repeatedly and concurrently; see Loader.EnsureViews.
func (v *Viewer) EnsureViews(ctx context.Context, part PartID) error {
	return v.loader.EnsureViews(ctx, part)
}

// Open returns a drag interaction controller for one displayed part and
// starts its idle tracking.
func (v *Viewer) Open(part PartID) *Interaction {
	v.evictor.Touch(part)
	return newInteraction(part, v.cache, v.loader, v.evictor, v.log)
}

// Cache exposes the view cache for read access.
func (v *Viewer) Cache() *Cache {
	return v.cache
}

// VisibilityLost evicts all cached views except the representative ones,
// immediately. Wire this to window hide/minimize events.
func (v *Viewer) VisibilityLost() {
	v.evictor.VisibilityLost()
}

// Close tears the subsystem down: timers cancelled, background work
// drained, every image handle revoked.
func (v *Viewer) Close() {
	v.evictor.Close()
	v.loader.Close()
	v.cache.Clear()
	v.log.Debug("viewer subsystem closed")
}
