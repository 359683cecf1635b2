package viewer

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long a part's views stay fully cached without
// interaction before being pruned down to the representative view.
const DefaultIdleTimeout = 5 * time.Minute

// Evictor prunes idle parts from the cache. One timer runs per touched
// part; touching again restarts it, timers never stack. Each restart bumps
// the part's generation so a timer that already fired but lost the lock
// race to a Touch cannot evict on stale authority.
type Evictor struct {
	cache   *Cache
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	timers map[PartID]*time.Timer
	gens   map[PartID]uint64
	closed bool
}

// NewEvictor creates an evictor for the cache. A non-positive timeout
// falls back to DefaultIdleTimeout.
func NewEvictor(cache *Cache, timeout time.Duration, log *zap.Logger) *Evictor {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Evictor{
		cache:   cache,
		timeout: timeout,
		log:     log,
		timers:  make(map[PartID]*time.Timer),
		gens:    make(map[PartID]uint64),
	}
}

// Touch marks the part as active, cancelling and restarting its idle timer.
func (e *Evictor) Touch(part PartID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if t, ok := e.timers[part]; ok {
		t.Stop()
	}
	e.gens[part]++
	gen := e.gens[part]
	e.timers[part] = time.AfterFunc(e.timeout, func() { e.expire(part, gen) })
}

// expire evicts the part's extra views, unless the firing timer was
// superseded: Stop cannot cancel a timer whose callback already started,
// so the generation check is what protects a freshly touched part.
func (e *Evictor) expire(part PartID, gen uint64) {
	e.mu.Lock()
	if e.closed || e.gens[part] != gen {
		e.mu.Unlock()
		return
	}
	delete(e.timers, part)
	e.mu.Unlock()

	e.cache.EvictExceptFirst(part)
	e.log.Debug("idle views evicted", zap.String("part", string(part)))
}

// VisibilityLost evicts every cached part immediately, without waiting for
// timers. Used when the hosting window is hidden or minimized. Parts that
// were populated but never displayed are pruned too.
func (e *Evictor) VisibilityLost() {
	e.mu.Lock()
	for part, t := range e.timers {
		t.Stop()
		e.gens[part]++
	}
	e.timers = make(map[PartID]*time.Timer)
	e.mu.Unlock()

	parts := e.cache.Parts()
	for _, part := range parts {
		e.cache.EvictExceptFirst(part)
	}
	if len(parts) > 0 {
		e.log.Debug("visibility lost, views evicted", zap.Int("parts", len(parts)))
	}
}

// Close stops every timer without evicting.
func (e *Evictor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = make(map[PartID]*time.Timer)
	e.closed = true
}
