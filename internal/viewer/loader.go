package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Loader orchestrates view loading for parts: it deduplicates concurrent
// requests per part and runs the manifest-check, blob-fetch, render
// fallback chain. All cache writes flow through the loader.
type Loader struct {
	cache  *Cache
	svcs   Services
	render RenderFunc
	log    *zap.Logger

	mu      sync.Mutex
	pending map[PartID]*pendingLoad
	closed  bool

	bg sync.WaitGroup
}

// pendingLoad is the single in-flight load for a part. Concurrent callers
// attach to done and share err instead of starting new work.
type pendingLoad struct {
	id   string
	done chan struct{}
	err  error
}

// NewLoader creates a loader writing into cache through the given
// collaborators and render function.
func NewLoader(cache *Cache, svcs Services, render RenderFunc, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		cache:   cache,
		svcs:    svcs,
		render:  render,
		log:     log,
		pending: make(map[PartID]*pendingLoad),
	}
}

// EnsureViews blocks until at least view 0 of the part is cached, or the
// load fails. Concurrent calls for the same part share one load: the
// pending check and registration happen in a single critical section, so
// exactly one fetch or render runs no matter how many callers race.
func (l *Loader) EnsureViews(ctx context.Context, part PartID) error {
	if l.cache.Has(part, 0) {
		return nil
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.cache.Has(part, 0) {
		l.mu.Unlock()
		return nil
	}
	if p, ok := l.pending[part]; ok {
		l.mu.Unlock()
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p := &pendingLoad{id: uuid.NewString(), done: make(chan struct{})}
	l.pending[part] = p
	l.mu.Unlock()

	p.err = l.load(ctx, part, p.id)

	// Always clear the entry so a later call can retry after a failure.
	l.mu.Lock()
	delete(l.pending, part)
	l.mu.Unlock()
	close(p.done)

	return p.err
}

// load runs the decision chain for one part.
func (l *Loader) load(ctx context.Context, part PartID, loadID string) error {
	log := l.log.With(zap.String("part", string(part)), zap.String("load_id", loadID))

	manifest, err := l.svcs.Manifests.ViewManifest(ctx, part)
	if err != nil {
		// Fails open: a transient manifest outage and "no views exist" are
		// treated identically, matching the backend contract.
		log.Warn("manifest unavailable, falling back to render path", zap.Error(err))
		manifest = Manifest{}
	}

	if manifest.HasViews {
		data, err := l.svcs.Views.View(ctx, part, 0)
		if err != nil {
			return fmt.Errorf("%w: view 0: %v", ErrViewFetch, err)
		}
		l.cache.Put(part, 0, data)
		l.goBackground(func() { l.fetchRemaining(part, log) })
		log.Info("representative view fetched", zap.Int("view_count", manifest.ViewCount))
		return nil
	}

	modelData, err := l.svcs.Models.ModelBytes(ctx, part)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelFetch, err)
	}

	views, err := l.render(modelData, func(index int, png []byte) {
		// Publish the representative view as soon as it exists so the UI
		// can display something before the full cycle completes.
		if index == 0 {
			l.cache.Put(part, 0, png)
		}
	})
	if err != nil {
		l.cache.Remove(part)
		return fmt.Errorf("%w: %v", ErrRender, err)
	}

	for i, v := range views {
		if i == 0 && l.cache.Has(part, 0) {
			continue
		}
		l.cache.Put(part, i, v)
	}
	log.Info("views rendered", zap.Int("views", len(views)))

	if l.svcs.Uploader != nil {
		l.goBackground(func() {
			if err := l.svcs.Uploader.UploadViews(context.Background(), part, views); err != nil {
				log.Warn("view upload failed", zap.Error(err))
			}
		})
	}
	return nil
}

// EnsureView fetches a single pre-rendered view on demand through the
// shared cache-write path. Already-cached views return immediately.
func (l *Loader) EnsureView(ctx context.Context, part PartID, index int) error {
	if l.cache.Has(part, index) {
		return nil
	}
	data, err := l.svcs.Views.View(ctx, part, index)
	if err != nil {
		return fmt.Errorf("%w: view %d: %v", ErrViewFetch, index, err)
	}
	l.cache.Put(part, index, data)
	return nil
}

// PrefetchRemaining fetches any missing views 1 and up in the background.
// Failures are logged, never surfaced.
func (l *Loader) PrefetchRemaining(part PartID) {
	log := l.log.With(zap.String("part", string(part)))
	l.goBackground(func() { l.fetchRemaining(part, log) })
}

func (l *Loader) fetchRemaining(part PartID, log *zap.Logger) {
	for i := 1; i < NumViews; i++ {
		if l.cache.Has(part, i) {
			continue
		}
		data, err := l.svcs.Views.View(context.Background(), part, i)
		if err != nil {
			log.Warn("background view fetch failed", zap.Int("view", i), zap.Error(err))
			continue
		}
		l.cache.Put(part, i, data)
	}
}

// goBackground runs fn on a tracked goroutine. Reports false without
// running anything when the loader is closed, so callers can undo any
// bookkeeping the task was meant to clear.
func (l *Loader) goBackground(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.bg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.bg.Done()
		fn()
	}()
	return true
}

// Wait blocks until all background fetches and uploads have finished.
func (l *Loader) Wait() {
	l.bg.Wait()
}

// Close stops accepting work and waits for background tasks. In-flight
// loads are not cancelled; they complete and still populate the cache.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.bg.Wait()
}
