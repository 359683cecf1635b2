package viewer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DragThreshold is the horizontal travel, in pixels, that moves the view
// one station.
const DragThreshold = 40

// Interaction is the per-viewer-instance drag state machine. Dragging left
// advances the station index, dragging right retreats it, wrapping modulo
// NumViews. The controller only reads the cache; misses are filled by
// routing on-demand fetches through the loader.
type Interaction struct {
	part    PartID
	cache   *Cache
	loader  *Loader
	evictor *Evictor
	log     *zap.Logger

	threshold int

	mu         sync.Mutex
	index      int
	dragging   bool
	startX     int
	startIndex int
	interacted bool
	inflight   map[int]bool
}

func newInteraction(part PartID, cache *Cache, loader *Loader, evictor *Evictor, log *zap.Logger) *Interaction {
	return &Interaction{
		part:      part,
		cache:     cache,
		loader:    loader,
		evictor:   evictor,
		log:       log.With(zap.String("part", string(part))),
		threshold: DragThreshold,
		inflight:  make(map[int]bool),
	}
}

// Part returns the part this controller displays.
func (c *Interaction) Part() PartID {
	return c.part
}

// Index returns the currently displayed station index.
func (c *Interaction) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// BeginDrag starts a drag at pixel column x. The first drag since display
// triggers a background prefetch of the remaining views.
func (c *Interaction) BeginDrag(x int) {
	c.evictor.Touch(c.part)

	c.mu.Lock()
	c.dragging = true
	c.startX = x
	c.startIndex = c.index
	first := !c.interacted
	c.interacted = true
	c.mu.Unlock()

	if first {
		c.loader.PrefetchRemaining(c.part)
	}
}

// DragTo updates the station index for the pointer at pixel column x.
// Every threshold crossing moves one station; several crossings in one
// motion move several stations. The index changes even when the target
// image is not cached yet. Returns the index and whether it changed.
func (c *Interaction) DragTo(x int) (index int, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dragging {
		return c.index, false
	}
	steps := (c.startX - x) / c.threshold
	next := wrapIndex(c.startIndex + steps)
	if next == c.index {
		return c.index, false
	}
	c.index = next
	return next, true
}

// EndDrag finishes the current drag.
func (c *Interaction) EndDrag() {
	c.mu.Lock()
	c.dragging = false
	c.mu.Unlock()
}

// CurrentImage returns the image bytes of the displayed station. When the
// view is absent or its handle was revoked, it reports ready=false and
// issues one on-demand fetch in the background; the caller shows a loading
// affordance and polls again.
func (c *Interaction) CurrentImage() (data []byte, ready bool) {
	c.mu.Lock()
	index := c.index
	c.mu.Unlock()

	if h, ok := c.cache.View(c.part, index); ok {
		if data, ok := h.Bytes(); ok {
			return data, true
		}
	}
	c.requestView(index)
	return nil, false
}

// requestView starts at most one background fetch per station index.
func (c *Interaction) requestView(index int) {
	c.mu.Lock()
	if c.inflight[index] {
		c.mu.Unlock()
		return
	}
	c.inflight[index] = true
	c.mu.Unlock()

	scheduled := c.loader.goBackground(func() {
		// Station 0 missing means the whole part was never loaded or has
		// been dropped, so rerun the full load chain for it.
		var err error
		if index == 0 {
			err = c.loader.EnsureViews(context.Background(), c.part)
		} else {
			err = c.loader.EnsureView(context.Background(), c.part, index)
		}
		if err != nil {
			c.log.Warn("on-demand view fetch failed", zap.Int("view", index), zap.Error(err))
		}
		c.mu.Lock()
		delete(c.inflight, index)
		c.mu.Unlock()
	})
	if !scheduled {
		c.mu.Lock()
		delete(c.inflight, index)
		c.mu.Unlock()
	}
}

// wrapIndex wraps a station index into [0, NumViews).
func wrapIndex(i int) int {
	return ((i % NumViews) + NumViews) % NumViews
}
