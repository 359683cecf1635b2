// Package camera plans the fixed camera stations used to capture part views.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/frc3322/aerie-partview/pkg/formats"
	"github.com/frc3322/aerie-partview/pkg/math"
)

// NumStations is the number of fixed azimuths around the vertical axis.
// Station 0 faces the part from the front; each following station is 45
// degrees clockwise, wrapping back to front-left at station 7.
const NumStations = 8

// VerticalFOV is the fixed vertical field of view for every station, radians.
const VerticalFOV = math32.Pi / 4

// minHalfExtent floors degenerate bounding boxes so the fit math never
// divides by zero.
const minHalfExtent = 1e-4

// Frame describes the output raster: pixel dimensions plus the padding
// margin the part must stay inside on each side.
type Frame struct {
	Width   int
	Height  int
	Padding int
}

// Pose is one planned camera: position, aim point and up vector.
type Pose struct {
	Eye    math.Vec3
	Target math.Vec3
	Up     math.Vec3
	FOV    float32
}

// PlanStations computes the eight camera poses framing the given bounding
// box inside the frame's content area. The tightest-fitting axis touches
// the padded content edge; the other axis may under-fill.
func PlanStations(b formats.Bounds, frame Frame) [NumStations]Pose {
	center := b.Center()
	half := b.HalfExtents()
	half.X = math32.Max(half.X, minHalfExtent)
	half.Y = math32.Max(half.Y, minHalfExtent)
	half.Z = math32.Max(half.Z, minHalfExtent)

	var poses [NumStations]Pose
	for i := 0; i < NumStations; i++ {
		azimuth := float32(i) * (2 * math32.Pi / NumStations)
		dir := math.Vec3{X: math32.Sin(azimuth), Y: 0, Z: math32.Cos(azimuth)}

		distH, distW := fitDistances(half, azimuth, frame)
		dist := math32.Max(distH, distW)

		poses[i] = Pose{
			Eye:    center.Add(dir.Scale(dist)),
			Target: center,
			Up:     math.Vec3{Y: 1},
			FOV:    VerticalFOV,
		}
	}
	return poses
}

// fitDistances returns the camera distances that make the box exactly fill
// the padded content height and the padded content width. Each fit includes
// the box's depth along the view axis so the near face cannot overflow.
func fitDistances(half math.Vec3, azimuth float32, frame Frame) (distH, distW float32) {
	contentW := math32.Max(float32(frame.Width-2*frame.Padding), 1)
	contentH := math32.Max(float32(frame.Height-2*frame.Padding), 1)
	w := float32(frame.Width)
	h := float32(frame.Height)

	// Visible tangents shrunk by the content fraction of the viewport.
	tanV := math32.Tan(VerticalFOV/2) * (contentH / h)
	tanH := math32.Tan(VerticalFOV/2) * (w / h) * (contentW / w)

	s := math32.Abs(math32.Sin(azimuth))
	c := math32.Abs(math32.Cos(azimuth))
	projW := half.X*c + half.Z*s // half width across the view axis
	projD := half.X*s + half.Z*c // half depth along the view axis

	distH = half.Y/tanV + projD
	distW = projW/tanH + projD
	return distH, distW
}
