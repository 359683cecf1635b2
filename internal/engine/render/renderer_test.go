package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/png"
	"testing"

	"github.com/frc3322/aerie-partview/internal/engine/camera"
	"github.com/frc3322/aerie-partview/pkg/formats"
	"github.com/frc3322/aerie-partview/pkg/math"
)

// encodeBinarySTL builds binary STL bytes from triangles.
func encodeBinarySTL(tris []formats.Triangle) []byte {
	buf := new(bytes.Buffer)
	buf.Write(make([]byte, 80))
	binary.Write(buf, binary.LittleEndian, uint32(len(tris)))
	for _, tri := range tris {
		for _, v := range append([]math.Vec3{tri.Normal}, tri.V[0], tri.V[1], tri.V[2]) {
			binary.Write(buf, binary.LittleEndian, v.X)
			binary.Write(buf, binary.LittleEndian, v.Y)
			binary.Write(buf, binary.LittleEndian, v.Z)
		}
		binary.Write(buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

// cubeSTL returns a closed cube spanning [-s, s] on every axis.
func cubeSTL(s float32) []byte {
	corners := [8]math.Vec3{
		{X: -s, Y: -s, Z: -s}, {X: s, Y: -s, Z: -s},
		{X: s, Y: s, Z: -s}, {X: -s, Y: s, Z: -s},
		{X: -s, Y: -s, Z: s}, {X: s, Y: -s, Z: s},
		{X: s, Y: s, Z: s}, {X: -s, Y: s, Z: s},
	}
	quads := [6][4]int{
		{0, 1, 2, 3}, // back
		{5, 4, 7, 6}, // front
		{4, 0, 3, 7}, // left
		{1, 5, 6, 2}, // right
		{3, 2, 6, 7}, // top
		{4, 5, 1, 0}, // bottom
	}
	var tris []formats.Triangle
	for _, q := range quads {
		tris = append(tris,
			formats.Triangle{V: [3]math.Vec3{corners[q[0]], corners[q[1]], corners[q[2]]}},
			formats.Triangle{V: [3]math.Vec3{corners[q[0]], corners[q[2]], corners[q[3]]}},
		)
	}
	return encodeBinarySTL(tris)
}

func TestRenderViews_CubeProducesEightViews(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Padding = 200, 160, 16
	r := New(cfg, nil)

	views, err := r.RenderViews(cubeSTL(5), nil)
	if err != nil {
		t.Fatalf("RenderViews failed: %v", err)
	}
	if len(views) != camera.NumStations {
		t.Fatalf("expected %d views, got %d", camera.NumStations, len(views))
	}

	for i, data := range views {
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("view %d: PNG decode failed: %v", i, err)
		}
		b := img.Bounds()
		if b.Dx() != cfg.Width || b.Dy() != cfg.Height {
			t.Errorf("view %d: size %dx%d, want %dx%d", i, b.Dx(), b.Dy(), cfg.Width, cfg.Height)
		}

		// The part covers the image center; the padding band stays background.
		cr, cg, cb, _ := img.At(cfg.Width/2, cfg.Height/2).RGBA()
		br, bg2, bb, _ := img.At(2, 2).RGBA()
		if cr == br && cg == bg2 && cb == bb {
			t.Errorf("view %d: center pixel matches background, part not drawn", i)
		}
		wantBG := cfg.Background
		if uint8(br>>8) != wantBG.R || uint8(bg2>>8) != wantBG.G || uint8(bb>>8) != wantBG.B {
			t.Errorf("view %d: padding pixel is not background", i)
		}
	}
}

func TestRenderViews_OnViewOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Padding = 64, 64, 4
	r := New(cfg, nil)

	var order []int
	_, err := r.RenderViews(cubeSTL(1), func(index int, data []byte) {
		if len(data) == 0 {
			t.Errorf("view %d delivered empty image", index)
		}
		order = append(order, index)
	})
	if err != nil {
		t.Fatalf("RenderViews failed: %v", err)
	}
	if len(order) != camera.NumStations {
		t.Fatalf("expected %d callbacks, got %d", camera.NumStations, len(order))
	}
	for i, idx := range order {
		if idx != i {
			t.Errorf("callback %d delivered view %d, want views in station order", i, idx)
		}
	}
}

func TestRenderViews_InvalidModel(t *testing.T) {
	r := New(DefaultConfig(), nil)
	if _, err := r.RenderViews([]byte("not a model"), nil); err == nil {
		t.Error("expected error for unparseable model")
	}
}

func TestRenderViews_DegenerateModel(t *testing.T) {
	// One zero-area facet: parses fine, but nothing is renderable.
	p := math.Vec3{X: 1, Y: 1, Z: 1}
	data := encodeBinarySTL([]formats.Triangle{{V: [3]math.Vec3{p, p, p}}})

	r := New(DefaultConfig(), nil)
	if _, err := r.RenderViews(data, nil); err == nil {
		t.Error("expected error for model with no renderable faces")
	}
}

func TestMeshNormalize(t *testing.T) {
	stl, err := formats.ParseSTL(cubeSTL(5))
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}
	mesh := buildMesh(stl)
	defer mesh.release()

	b := mesh.normalize()
	if c := b.Center(); c.Length() > 1e-4 {
		t.Errorf("normalized center = %v, want origin", c)
	}
	half := b.HalfExtents()
	if half.MaxComponent() < 0.999 || half.MaxComponent() > 1.001 {
		t.Errorf("normalized half extent = %v, want 1", half.MaxComponent())
	}
}

func TestTargetDestroy(t *testing.T) {
	target := NewTarget(8, 8)
	target.Destroy()
	if _, err := target.EncodePNG(); !errors.Is(err, ErrTargetDestroyed) {
		t.Errorf("expected ErrTargetDestroyed, got %v", err)
	}
}

func TestRasterTriangleDepthTest(t *testing.T) {
	target := NewTarget(16, 16)
	defer target.Destroy()
	target.Clear(DefaultConfig().Background)

	full := func(z float32) (screenVertex, screenVertex, screenVertex) {
		return screenVertex{x: 0, y: 0, z: z},
			screenVertex{x: 16, y: 0, z: z},
			screenVertex{x: 8, y: 16, z: z}
	}

	// Far triangle first (red), then a nearer one (green) must win.
	a, b, c := full(0.8)
	target.rasterTriangle(a, b, c, 200, 0, 0)
	a, b, c = full(0.2)
	target.rasterTriangle(a, b, c, 0, 200, 0)

	idx := (8*16 + 8) * 4
	if target.color[idx] != 0 || target.color[idx+1] != 200 {
		t.Errorf("nearer triangle should win depth test, got pixel (%d,%d,%d)",
			target.color[idx], target.color[idx+1], target.color[idx+2])
	}

	// Drawing the far triangle again must not overwrite the near one.
	a, b, c = full(0.8)
	target.rasterTriangle(a, b, c, 200, 0, 0)
	if target.color[idx+1] != 200 {
		t.Error("farther triangle overwrote nearer pixels")
	}
}
