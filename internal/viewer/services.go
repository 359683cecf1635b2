package viewer

import "context"

// Manifest is a remote record of whether pre-rendered views exist for a
// part.
type Manifest struct {
	HasViews  bool
	ViewCount int
}

// ManifestService answers whether a part already has server-stored views.
// Callers treat any error as "no views" (the manifest fails open).
type ManifestService interface {
	ViewManifest(ctx context.Context, part PartID) (Manifest, error)
}

// ViewService fetches one pre-rendered view image. Returns ErrNotFound for
// an unknown part or index.
type ViewService interface {
	View(ctx context.Context, part PartID, index int) ([]byte, error)
}

// ModelSource fetches the raw 3D model bytes for a part.
type ModelSource interface {
	ModelBytes(ctx context.Context, part PartID) ([]byte, error)
}

// ViewUploader submits a freshly rendered view set upstream. Best-effort:
// failures are logged by the caller, never surfaced to the viewing user.
type ViewUploader interface {
	UploadViews(ctx context.Context, part PartID, views [][]byte) error
}

// Services bundles the external collaborators the viewer core talks to.
// Uploader may be nil when the backend does not persist views.
type Services struct {
	Manifests ManifestService
	Views     ViewService
	Models    ModelSource
	Uploader  ViewUploader
}

// RenderFunc rasterizes model bytes into the eight station views. onView
// fires as each view completes, station 0 first.
type RenderFunc func(modelData []byte, onView func(index int, png []byte)) ([][]byte, error)
