package render

import (
	"github.com/chewxy/math32"

	"github.com/frc3322/aerie-partview/pkg/math"
)

// screenVertex is a vertex after perspective divide and viewport transform.
// x and y are pixel coordinates, z is the depth value used for hidden
// surface removal.
type screenVertex struct {
	x, y, z float32
}

// projectVertex maps a world-space point through mvp to screen space.
// Returns ok=false when the point is behind the camera.
func projectVertex(mvp math.Mat4, p math.Vec3, width, height int) (screenVertex, bool) {
	clip := mvp.MulVec4(math.Vec4{p.X, p.Y, p.Z, 1})
	if clip[3] <= 1e-5 {
		return screenVertex{}, false
	}
	invW := 1 / clip[3]
	ndcX := clip[0] * invW
	ndcY := clip[1] * invW
	ndcZ := clip[2] * invW

	return screenVertex{
		x: (ndcX + 1) * 0.5 * float32(width),
		y: (1 - ndcY) * 0.5 * float32(height),
		z: ndcZ,
	}, true
}

// edge returns twice the signed area of triangle (a, b, p).
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// rasterTriangle draws a filled triangle with depth testing. Both windings
// are accepted: STL files carry no consistent orientation, so every face is
// rendered two-sided.
func (t *Target) rasterTriangle(v0, v1, v2 screenVertex, r, g, b uint8) {
	area := edge(v0.x, v0.y, v1.x, v1.y, v2.x, v2.y)
	if area == 0 {
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}

	minX := int(math32.Floor(math32.Min(v0.x, math32.Min(v1.x, v2.x))))
	maxX := int(math32.Ceil(math32.Max(v0.x, math32.Max(v1.x, v2.x))))
	minY := int(math32.Floor(math32.Min(v0.y, math32.Min(v1.y, v2.y))))
	maxY := int(math32.Ceil(math32.Max(v0.y, math32.Max(v1.y, v2.y))))

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > t.width-1 {
		maxX = t.width - 1
	}
	if maxY > t.height-1 {
		maxY = t.height - 1
	}

	invArea := 1 / area
	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5

			w0 := edge(v1.x, v1.y, v2.x, v2.y, px, py)
			w1 := edge(v2.x, v2.y, v0.x, v0.y, px, py)
			w2 := edge(v0.x, v0.y, v1.x, v1.y, px, py)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			depth := (w0*v0.z + w1*v1.z + w2*v2.z) * invArea

			idx := y*t.width + x
			if depth >= t.depth[idx] {
				continue
			}
			t.depth[idx] = depth

			off := idx * 4
			t.color[off] = r
			t.color[off+1] = g
			t.color[off+2] = b
			t.color[off+3] = 255
		}
	}
}
