package viewer

import "errors"

// Load pipeline errors. ErrNotFound marks an unknown part or view index at
// a collaborator; the rest classify which step of a load attempt failed.
// Manifest failures are deliberately absent: they are soft and fall through
// to the render path.
var (
	ErrNotFound   = errors.New("not found")
	ErrModelFetch = errors.New("model fetch failed")
	ErrRender     = errors.New("render failed")
	ErrViewFetch  = errors.New("view fetch failed")
	ErrClosed     = errors.New("viewer closed")
)
