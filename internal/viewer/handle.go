package viewer

import "sync"

// Handle is a revocable reference to one encoded view image. The cache
// exclusively owns handles; consumers read through Bytes and must
// re-request from the cache when it reports the handle revoked.
type Handle struct {
	mu      sync.Mutex
	data    []byte
	revoked bool
}

func newHandle(data []byte) *Handle {
	return &Handle{data: data}
}

// Bytes returns the image bytes, or ok=false if the handle was revoked.
func (h *Handle) Bytes() (data []byte, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.revoked {
		return nil, false
	}
	return h.data, true
}

// revoke invalidates the handle and releases the underlying bytes.
func (h *Handle) revoke() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revoked = true
	h.data = nil
}
