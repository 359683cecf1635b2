// Package blit presents a captured view image as a textured quad.
package blit

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
)

const vertexShaderSource = `
	#version 410 core

	layout (location = 0) in vec3 aPos;
	layout (location = 1) in vec2 aTexCoord;

	uniform mat4 uProjection;

	out vec2 vTexCoord;

	void main() {
		gl_Position = uProjection * vec4(aPos, 1.0);
		vTexCoord = aTexCoord;
	}
` + "\x00"

const fragmentShaderSource = `
	#version 410 core

	uniform sampler2D uTexture;
	uniform float uDim;

	in vec2 vTexCoord;
	out vec4 FragColor;

	void main() {
		vec4 color = texture(uTexture, vTexCoord);
		FragColor = vec4(color.rgb * uDim, color.a);
	}
` + "\x00"

// Presenter uploads PNG view images to a texture and draws them
// letterboxed into the window.
type Presenter struct {
	screenWidth  int
	screenHeight int

	program uint32
	vao     uint32
	vbo     uint32
	texture uint32

	texWidth  int
	texHeight int

	dim    float32
	failed bool
}

// New initializes OpenGL and creates the presenter. Must be called on the
// thread that owns the GL context.
func New(screenWidth, screenHeight int) (*Presenter, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}

	p := &Presenter{
		screenWidth:  screenWidth,
		screenHeight: screenHeight,
		dim:          1,
	}

	var err error
	p.program, err = linkProgram(vertexShaderSource, fragmentShaderSource)
	if err != nil {
		return nil, fmt.Errorf("quad shader: %w", err)
	}

	gl.GenVertexArrays(1, &p.vao)
	gl.BindVertexArray(p.vao)

	gl.GenBuffers(1, &p.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, p.vbo)

	// Vertex format: pos(3) + texcoord(2) = 5 floats, 20 bytes
	stride := int32(5 * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.GenTextures(1, &p.texture)
	gl.BindTexture(gl.TEXTURE_2D, p.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	return p, nil
}

// SetDimmed dims the displayed image while a replacement view is loading.
func (p *Presenter) SetDimmed(dimmed bool) {
	if dimmed {
		p.dim = 0.55
	} else {
		p.dim = 1
	}
}

// SetFailed switches the empty window to the failure shade, shown when the
// initial load produced no image at all.
func (p *Presenter) SetFailed(failed bool) {
	p.failed = failed
}

// Resize updates the presenter for a new window size.
func (p *Presenter) Resize(width, height int) {
	p.screenWidth = width
	p.screenHeight = height
	gl.Viewport(0, 0, int32(width), int32(height))
}

// SetImage decodes a PNG view image and uploads it to the texture.
func (p *Presenter) SetImage(data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode view image: %w", err)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		bounds := img.Bounds()
		rgba = image.NewRGBA(bounds)
		draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	}

	p.texWidth = rgba.Rect.Dx()
	p.texHeight = rgba.Rect.Dy()

	gl.BindTexture(gl.TEXTURE_2D, p.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(p.texWidth), int32(p.texHeight), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	return nil
}

// Draw clears the window and draws the current image letterboxed to
// preserve its aspect ratio. With no image uploaded it clears to the
// normal background, or the failure shade after SetFailed.
func (p *Presenter) Draw() {
	if p.failed && p.texWidth == 0 {
		gl.ClearColor(0.24, 0.11, 0.11, 1.0)
	} else {
		gl.ClearColor(0.12, 0.12, 0.14, 1.0)
	}
	gl.Clear(gl.COLOR_BUFFER_BIT)

	if p.texWidth == 0 || p.texHeight == 0 {
		return
	}

	x, y, w, h := p.fitRect()

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	gl.UseProgram(p.program)
	proj := orthoMatrix(0, float32(p.screenWidth), float32(p.screenHeight), 0, -1, 1)
	projLoc := gl.GetUniformLocation(p.program, gl.Str("uProjection\x00"))
	gl.UniformMatrix4fv(projLoc, 1, false, &proj[0])

	texLoc := gl.GetUniformLocation(p.program, gl.Str("uTexture\x00"))
	gl.Uniform1i(texLoc, 0)

	dimLoc := gl.GetUniformLocation(p.program, gl.Str("uDim\x00"))
	gl.Uniform1f(dimLoc, p.dim)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, p.texture)

	vertices := []float32{
		x, y, 0, 0, 0,
		x + w, y, 0, 1, 0,
		x + w, y + h, 0, 1, 1,
		x, y, 0, 0, 0,
		x + w, y + h, 0, 1, 1,
		x, y + h, 0, 0, 1,
	}

	gl.BindVertexArray(p.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, p.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)

	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.UseProgram(0)
}

// fitRect returns the largest rect with the image's aspect ratio that
// fits the window, centered.
func (p *Presenter) fitRect() (x, y, w, h float32) {
	sw := float32(p.screenWidth)
	sh := float32(p.screenHeight)
	iw := float32(p.texWidth)
	ih := float32(p.texHeight)

	scale := sw / iw
	if s := sh / ih; s < scale {
		scale = s
	}

	w = iw * scale
	h = ih * scale
	x = (sw - w) / 2
	y = (sh - h) / 2
	return
}

// Close releases GL resources.
func (p *Presenter) Close() {
	if p.texture != 0 {
		gl.DeleteTextures(1, &p.texture)
	}
	if p.vbo != 0 {
		gl.DeleteBuffers(1, &p.vbo)
	}
	if p.vao != 0 {
		gl.DeleteVertexArrays(1, &p.vao)
	}
	if p.program != 0 {
		gl.DeleteProgram(p.program)
	}
}

// orthoMatrix creates an orthographic projection matrix.
func orthoMatrix(left, right, bottom, top, near, far float32) [16]float32 {
	return [16]float32{
		2 / (right - left), 0, 0, 0,
		0, 2 / (top - bottom), 0, 0,
		0, 0, -2 / (far - near), 0,
		-(right + left) / (right - left), -(top + bottom) / (top - bottom), -(far + near) / (far - near), 1,
	}
}

// linkProgram compiles vertex and fragment shaders and links them.
func linkProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertShader)

	fragShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertShader)
	gl.AttachShader(program, fragShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", string(log))
	}

	return program, nil
}

// compileShader compiles a single shader of the given type.
func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, string(log))
	}

	return shader, nil
}
