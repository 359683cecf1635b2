package render

import (
	"fmt"
	"image/color"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/frc3322/aerie-partview/internal/engine/camera"
	"github.com/frc3322/aerie-partview/internal/engine/lighting"
	"github.com/frc3322/aerie-partview/pkg/formats"
	"github.com/frc3322/aerie-partview/pkg/math"
)

// unitSize is the canonical largest dimension every model is scaled to
// before camera planning, so fit distances are model-size-independent.
const unitSize = 2.0

// Config holds the fixed raster parameters for a renderer.
type Config struct {
	Width      int
	Height     int
	Padding    int
	Background color.NRGBA
	BaseColor  color.NRGBA
}

// DefaultConfig returns the raster settings used by the part viewer.
func DefaultConfig() Config {
	return Config{
		Width:      800,
		Height:     600,
		Padding:    40,
		Background: color.NRGBA{R: 236, G: 238, B: 240, A: 255},
		BaseColor:  color.NRGBA{R: 168, G: 178, B: 186, A: 255},
	}
}

// Renderer rasterizes a part model into the eight station views. The
// renderer itself holds only configuration; every call to RenderViews
// builds and tears down its own scene.
type Renderer struct {
	cfg Config
	log *zap.Logger
}

// New creates a renderer with the given raster configuration.
func New(cfg Config, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{cfg: cfg, log: log}
}

// RenderViews parses the model, normalizes it, and captures one PNG image
// per camera station. onView, when non-nil, fires as each view completes,
// station 0 first. All buffers allocated for the cycle are released before
// returning, on success and on failure.
func (r *Renderer) RenderViews(modelData []byte, onView func(index int, png []byte)) ([][]byte, error) {
	stl, err := formats.ParseSTL(modelData)
	if err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}

	mesh := buildMesh(stl)
	defer mesh.release()
	if mesh.count() == 0 {
		return nil, fmt.Errorf("model has no renderable faces")
	}

	bounds := mesh.normalize()
	poses := camera.PlanStations(bounds, camera.Frame{
		Width:   r.cfg.Width,
		Height:  r.cfg.Height,
		Padding: r.cfg.Padding,
	})

	target := NewTarget(r.cfg.Width, r.cfg.Height)
	defer target.Destroy()

	r.log.Debug("render cycle started",
		zap.Int("triangles", mesh.count()),
		zap.Int("width", r.cfg.Width),
		zap.Int("height", r.cfg.Height))

	views := make([][]byte, camera.NumStations)
	for i, pose := range poses {
		target.Clear(r.cfg.Background)
		r.drawMesh(target, mesh, pose)

		encoded, err := target.EncodePNG()
		if err != nil {
			return nil, fmt.Errorf("encoding view %d: %w", i, err)
		}
		views[i] = encoded
		if onView != nil {
			onView(i, encoded)
		}
	}
	return views, nil
}

// drawMesh rasterizes every triangle from the given pose with flat lambert
// shading from the fixed light rig.
func (r *Renderer) drawMesh(target *Target, mesh *meshBuffer, pose camera.Pose) {
	toTarget := pose.Eye.Sub(pose.Target)
	dist := toTarget.Length()
	near := math32.Max(0.01, dist-unitSize)
	far := dist + unitSize

	aspect := float32(r.cfg.Width) / float32(r.cfg.Height)
	view := math.LookAt(pose.Eye, pose.Target, pose.Up)
	proj := math.Perspective(pose.FOV, aspect, near, far)
	mvp := proj.Mul(view)

	rig := lighting.PartRig(toTarget)
	base := r.cfg.BaseColor

	for i := 0; i < mesh.count(); i++ {
		v0, ok0 := projectVertex(mvp, mesh.positions[i*3], r.cfg.Width, r.cfg.Height)
		v1, ok1 := projectVertex(mvp, mesh.positions[i*3+1], r.cfg.Width, r.cfg.Height)
		v2, ok2 := projectVertex(mvp, mesh.positions[i*3+2], r.cfg.Width, r.cfg.Height)
		if !ok0 || !ok1 || !ok2 {
			continue
		}

		shade := rig.Shade(mesh.normals[i])
		target.rasterTriangle(v0, v1, v2,
			uint8(float32(base.R)*shade),
			uint8(float32(base.G)*shade),
			uint8(float32(base.B)*shade))
	}
}

// meshBuffer holds the geometry built for one render cycle: three positions
// per triangle plus one face normal per triangle.
type meshBuffer struct {
	positions []math.Vec3
	normals   []math.Vec3
}

// buildMesh converts STL facets into flat geometry buffers. Face normals
// are recomputed from the vertices since exporter-written STL normals are
// frequently wrong; degenerate facets are dropped.
func buildMesh(stl *formats.STL) *meshBuffer {
	mesh := &meshBuffer{
		positions: make([]math.Vec3, 0, len(stl.Triangles)*3),
		normals:   make([]math.Vec3, 0, len(stl.Triangles)),
	}
	for i := range stl.Triangles {
		tri := &stl.Triangles[i]
		e1 := tri.V[1].Sub(tri.V[0])
		e2 := tri.V[2].Sub(tri.V[0])
		n := e1.Cross(e2)
		if n.Length() < 1e-10 {
			continue
		}
		mesh.positions = append(mesh.positions, tri.V[0], tri.V[1], tri.V[2])
		mesh.normals = append(mesh.normals, n.Normalize())
	}
	return mesh
}

func (m *meshBuffer) count() int {
	return len(m.normals)
}

// normalize recenters the mesh at the origin and scales its largest
// dimension to unitSize. A degenerate (zero-volume) mesh keeps scale 1.
// Returns the bounding box after normalization.
func (m *meshBuffer) normalize() formats.Bounds {
	b := formats.Bounds{
		Min: math.Vec3{X: 1e10, Y: 1e10, Z: 1e10},
		Max: math.Vec3{X: -1e10, Y: -1e10, Z: -1e10},
	}
	for _, p := range m.positions {
		b.Min = math.Min(b.Min, p)
		b.Max = math.Max(b.Max, p)
	}

	center := b.Center()
	maxDim := 2 * b.HalfExtents().MaxComponent()
	scale := float32(1)
	if maxDim > 1e-6 {
		scale = unitSize / maxDim
	}

	for i, p := range m.positions {
		m.positions[i] = p.Sub(center).Scale(scale)
	}
	return formats.Bounds{
		Min: b.Min.Sub(center).Scale(scale),
		Max: b.Max.Sub(center).Scale(scale),
	}
}

// release drops the geometry buffers.
func (m *meshBuffer) release() {
	m.positions = nil
	m.normals = nil
}
