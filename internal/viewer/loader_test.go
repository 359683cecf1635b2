package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeBackend implements the collaborator interfaces for tests.
type fakeBackend struct {
	mu sync.Mutex

	manifest    Manifest
	manifestErr error

	views    map[int][]byte
	viewErrs map[int]error

	model    []byte
	modelErr error

	uploadErr error

	manifestCalls int
	modelCalls    int
	viewCalls     map[int]int
	uploadCalls   int
	uploaded      [][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		views:     make(map[int][]byte),
		viewErrs:  make(map[int]error),
		viewCalls: make(map[int]int),
	}
}

func (f *fakeBackend) ViewManifest(ctx context.Context, part PartID) (Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manifestCalls++
	return f.manifest, f.manifestErr
}

func (f *fakeBackend) View(ctx context.Context, part PartID, index int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewCalls[index]++
	if err, ok := f.viewErrs[index]; ok {
		return nil, err
	}
	data, ok := f.views[index]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *fakeBackend) ModelBytes(ctx context.Context, part PartID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modelCalls++
	return f.model, f.modelErr
}

func (f *fakeBackend) UploadViews(ctx context.Context, part PartID, views [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	f.uploaded = views
	return f.uploadErr
}

func (f *fakeBackend) services() Services {
	return Services{Manifests: f, Views: f, Models: f, Uploader: f}
}

func (f *fakeBackend) serveAllViews() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < NumViews; i++ {
		f.views[i] = []byte(fmt.Sprintf("served%d", i))
	}
}

// fakeRender returns a RenderFunc producing NumViews synthetic images and
// counting invocations.
func fakeRender(calls *atomic.Int32) RenderFunc {
	return func(modelData []byte, onView func(int, []byte)) ([][]byte, error) {
		calls.Add(1)
		views := make([][]byte, NumViews)
		for i := range views {
			views[i] = []byte(fmt.Sprintf("rendered%d", i))
			if onView != nil {
				onView(i, views[i])
			}
		}
		return views, nil
	}
}

func TestLoaderRenderPath(t *testing.T) {
	backend := newFakeBackend()
	backend.model = []byte("model bytes")

	var renders atomic.Int32
	cache := NewCache()
	l := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l.Close()

	if err := l.EnsureViews(context.Background(), "p1"); err != nil {
		t.Fatalf("EnsureViews failed: %v", err)
	}
	if renders.Load() != 1 {
		t.Errorf("expected 1 render, got %d", renders.Load())
	}
	for i := 0; i < NumViews; i++ {
		if !cache.Has("p1", i) {
			t.Errorf("expected view %d cached after render", i)
		}
	}

	// Rendered views are uploaded best-effort.
	l.Wait()
	backend.mu.Lock()
	uploads := backend.uploadCalls
	backend.mu.Unlock()
	if uploads != 1 {
		t.Errorf("expected 1 upload, got %d", uploads)
	}
}

func TestLoaderCacheHitSkipsWork(t *testing.T) {
	backend := newFakeBackend()
	var renders atomic.Int32
	cache := NewCache()
	cache.Put("p1", 0, []byte("already here"))

	l := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l.Close()

	if err := l.EnsureViews(context.Background(), "p1"); err != nil {
		t.Fatalf("EnsureViews failed: %v", err)
	}
	backend.mu.Lock()
	calls := backend.manifestCalls + backend.modelCalls
	backend.mu.Unlock()
	if calls != 0 || renders.Load() != 0 {
		t.Error("cache hit must not touch the backend or render")
	}
}

func TestLoaderDedup(t *testing.T) {
	backend := newFakeBackend()
	backend.model = []byte("model bytes")

	var renders atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	render := func(modelData []byte, onView func(int, []byte)) ([][]byte, error) {
		renders.Add(1)
		close(started)
		<-release
		views := make([][]byte, NumViews)
		for i := range views {
			views[i] = []byte("img")
		}
		return views, nil
	}

	cache := NewCache()
	l := NewLoader(cache, backend.services(), render, nil)
	defer l.Close()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.EnsureViews(context.Background(), "p1")
		}()
	}

	<-started
	// Give the remaining callers time to attach to the pending load.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("caller observed error: %v", err)
		}
	}
	if renders.Load() != 1 {
		t.Errorf("expected exactly 1 render for %d concurrent calls, got %d", n, renders.Load())
	}
}

func TestLoaderManifestHitFetchesViewZeroThenRest(t *testing.T) {
	backend := newFakeBackend()
	backend.manifest = Manifest{HasViews: true, ViewCount: NumViews}
	backend.serveAllViews()

	var renders atomic.Int32
	cache := NewCache()
	l := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l.Close()

	if err := l.EnsureViews(context.Background(), "p1"); err != nil {
		t.Fatalf("EnsureViews failed: %v", err)
	}

	// View 0 is available as soon as EnsureViews returns.
	if !cache.Has("p1", 0) {
		t.Fatal("expected view 0 cached synchronously")
	}
	if renders.Load() != 0 {
		t.Error("manifest hit must not render")
	}

	// The remaining views arrive in the background.
	l.Wait()
	for i := 1; i < NumViews; i++ {
		if !cache.Has("p1", i) {
			t.Errorf("expected view %d fetched in background", i)
		}
	}
}

func TestLoaderManifestErrorFallsThroughToRender(t *testing.T) {
	backend := newFakeBackend()
	backend.manifestErr = errors.New("manifest service down")
	backend.model = []byte("model bytes")

	var renders atomic.Int32
	cache := NewCache()
	l := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l.Close()

	if err := l.EnsureViews(context.Background(), "p1"); err != nil {
		t.Fatalf("manifest errors must be soft, got %v", err)
	}
	if renders.Load() != 1 {
		t.Errorf("expected fallback render, got %d renders", renders.Load())
	}
}

func TestLoaderModelFetchError(t *testing.T) {
	backend := newFakeBackend()
	backend.modelErr = errors.New("connection refused")

	var renders atomic.Int32
	cache := NewCache()
	l := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l.Close()

	err := l.EnsureViews(context.Background(), "p1")
	if !errors.Is(err, ErrModelFetch) {
		t.Errorf("expected ErrModelFetch, got %v", err)
	}
	if cache.Has("p1", 0) {
		t.Error("failed load must not leave cache state")
	}
}

func TestLoaderRenderErrorLeavesNoPartialState(t *testing.T) {
	backend := newFakeBackend()
	backend.model = []byte("model bytes")

	render := func(modelData []byte, onView func(int, []byte)) ([][]byte, error) {
		// Representative view published early, then the cycle fails.
		onView(0, []byte("early"))
		return nil, errors.New("GPU context lost")
	}

	cache := NewCache()
	l := NewLoader(cache, backend.services(), render, nil)
	defer l.Close()

	err := l.EnsureViews(context.Background(), "p1")
	if !errors.Is(err, ErrRender) {
		t.Errorf("expected ErrRender, got %v", err)
	}
	if cache.Has("p1", 0) {
		t.Error("render failure must roll back the early representative view")
	}

	// The pending entry is cleared, so a retry is possible and can succeed.
	var renders atomic.Int32
	l2 := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l2.Close()
	if err := l2.EnsureViews(context.Background(), "p1"); err != nil {
		t.Fatalf("retry after failure should work: %v", err)
	}
}

func TestLoaderRetryAfterFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.modelErr = errors.New("flaky network")

	var renders atomic.Int32
	cache := NewCache()
	l := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l.Close()

	if err := l.EnsureViews(context.Background(), "p1"); err == nil {
		t.Fatal("expected first attempt to fail")
	}

	backend.mu.Lock()
	backend.modelErr = nil
	backend.model = []byte("model bytes")
	backend.mu.Unlock()

	if err := l.EnsureViews(context.Background(), "p1"); err != nil {
		t.Fatalf("second attempt should succeed: %v", err)
	}
}

func TestLoaderEnsureViewOnDemand(t *testing.T) {
	backend := newFakeBackend()
	backend.serveAllViews()

	cache := NewCache()
	l := NewLoader(cache, backend.services(), nil, nil)
	defer l.Close()

	if err := l.EnsureView(context.Background(), "p1", 3); err != nil {
		t.Fatalf("EnsureView failed: %v", err)
	}
	if !cache.Has("p1", 3) {
		t.Error("expected view 3 cached")
	}

	// Cached views do not refetch.
	if err := l.EnsureView(context.Background(), "p1", 3); err != nil {
		t.Fatalf("EnsureView on cached view failed: %v", err)
	}
	backend.mu.Lock()
	calls := backend.viewCalls[3]
	backend.mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 fetch of view 3, got %d", calls)
	}
}

func TestLoaderEnsureViewError(t *testing.T) {
	backend := newFakeBackend()

	cache := NewCache()
	l := NewLoader(cache, backend.services(), nil, nil)
	defer l.Close()

	err := l.EnsureView(context.Background(), "p1", 5)
	if !errors.Is(err, ErrViewFetch) {
		t.Errorf("expected ErrViewFetch, got %v", err)
	}
	if cache.Has("p1", 5) {
		t.Error("failed fetch must not cache")
	}
}

// Scenario from the subsystem contract: no manifest, render all eight,
// evict to the representative view, regain one view on demand.
func TestScenarioRenderEvictRegain(t *testing.T) {
	backend := newFakeBackend()
	backend.model = []byte("model bytes")
	backend.serveAllViews()

	var renders atomic.Int32
	cache := NewCache()
	l := NewLoader(cache, backend.services(), fakeRender(&renders), nil)
	defer l.Close()

	if err := l.EnsureViews(context.Background(), "p1"); err != nil {
		t.Fatalf("EnsureViews failed: %v", err)
	}
	for i := 0; i < NumViews; i++ {
		if !cache.Has("p1", i) {
			t.Fatalf("expected all views cached, missing %d", i)
		}
	}

	cache.EvictExceptFirst("p1")
	if !cache.Has("p1", 0) {
		t.Fatal("view 0 must survive eviction")
	}
	for i := 1; i < NumViews; i++ {
		if cache.Has("p1", i) {
			t.Fatalf("view %d should be evicted", i)
		}
	}

	if err := l.EnsureView(context.Background(), "p1", 3); err != nil {
		t.Fatalf("on-demand fetch failed: %v", err)
	}
	if !cache.Has("p1", 3) {
		t.Error("cache should regain view 3")
	}
}
