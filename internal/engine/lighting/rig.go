// Package lighting provides the fixed light rig used for part visualization.
package lighting

import (
	"github.com/chewxy/math32"

	"github.com/frc3322/aerie-partview/pkg/math"
)

// Rig is the two-light setup every view is captured with: a constant
// ambient term plus one directional light. Intensities are tuned for shop
// part legibility, not physical accuracy.
type Rig struct {
	Ambient   float32
	Diffuse   float32
	Direction math.Vec3 // unit vector pointing towards the light
}

// PartRig returns the rig for a camera at eye looking at the origin. The
// directional light rides with the camera, raised above it so top faces
// stay brighter than sides regardless of station.
func PartRig(eye math.Vec3) Rig {
	dir := eye
	dir.Y += eye.Length() * 0.5
	return Rig{
		Ambient:   0.35,
		Diffuse:   0.65,
		Direction: dir.Normalize(),
	}
}

// Shade returns the light intensity in [0,1] for a surface normal. Faces
// are lit from either side so thin unoriented geometry stays visible.
func (r Rig) Shade(normal math.Vec3) float32 {
	d := math32.Abs(normal.Dot(r.Direction))
	v := r.Ambient + r.Diffuse*d
	return math32.Min(v, 1)
}
