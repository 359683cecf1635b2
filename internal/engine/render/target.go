// Package render rasterizes part models into the eight station views.
package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"

	"github.com/chewxy/math32"
)

// ErrTargetDestroyed is returned when capturing from a released target.
var ErrTargetDestroyed = errors.New("render target destroyed")

// Target is an offscreen raster target with color and depth buffers. It is
// allocated per render cycle and must be released with Destroy.
type Target struct {
	width  int
	height int
	color  []uint8 // RGBA, row-major, top-left origin
	depth  []float32
}

// NewTarget allocates a target with the given dimensions.
func NewTarget(width, height int) *Target {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Target{
		width:  width,
		height: height,
		color:  make([]uint8, width*height*4),
		depth:  make([]float32, width*height),
	}
}

// Size returns the target dimensions.
func (t *Target) Size() (width, height int) {
	return t.width, t.height
}

// Clear fills the color buffer and resets the depth buffer.
func (t *Target) Clear(c color.NRGBA) {
	for i := 0; i < len(t.color); i += 4 {
		t.color[i] = c.R
		t.color[i+1] = c.G
		t.color[i+2] = c.B
		t.color[i+3] = c.A
	}
	for i := range t.depth {
		t.depth[i] = math32.MaxFloat32
	}
}

// EncodePNG serializes the current color buffer to a PNG image.
func (t *Target) EncodePNG() ([]byte, error) {
	if t.color == nil {
		return nil, ErrTargetDestroyed
	}

	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	copy(img.Pix, t.color)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Destroy releases the pixel buffers. The target must not be used after.
func (t *Target) Destroy() {
	t.color = nil
	t.depth = nil
}
