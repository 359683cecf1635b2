// Package formats provides parsers for part model file formats.
// STL (stereolithography) parser, binary and ASCII variants.
package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"
	"strconv"
	"strings"

	"github.com/frc3322/aerie-partview/pkg/math"
)

// STL format errors.
var (
	ErrTruncatedSTL = errors.New("truncated STL data")
	ErrEmptySTL     = errors.New("STL contains no triangles")
	ErrInvalidSTL   = errors.New("invalid STL data")
)

// Triangle is one facet of an STL mesh.
type Triangle struct {
	Normal math.Vec3
	V      [3]math.Vec3
}

// STL holds a parsed STL mesh.
type STL struct {
	Triangles []Triangle
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Center returns the box midpoint.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// HalfExtents returns the half-size of the box on each axis.
func (b Bounds) HalfExtents() math.Vec3 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

const (
	binaryHeaderSize   = 84 // 80-byte header + uint32 triangle count
	binaryTriangleSize = 50 // 12 floats + uint16 attribute count
)

// ParseSTL parses STL model data, detecting the binary and ASCII variants.
func ParseSTL(data []byte) (*STL, error) {
	if looksASCII(data) {
		return parseASCII(data)
	}
	return parseBinary(data)
}

// looksASCII reports whether the data is an ASCII STL file. The "solid"
// prefix alone is not enough: some binary exporters write it into the
// 80-byte header, so the facet keyword must appear too.
func looksASCII(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("solid")) && bytes.Contains(head, []byte("facet"))
}

func parseBinary(data []byte) (*STL, error) {
	if len(data) < binaryHeaderSize {
		return nil, ErrTruncatedSTL
	}

	count := binary.LittleEndian.Uint32(data[80:84])
	if count == 0 {
		return nil, ErrEmptySTL
	}
	need := binaryHeaderSize + int(count)*binaryTriangleSize
	if len(data) < need {
		return nil, fmt.Errorf("%w: want %d bytes for %d triangles, have %d",
			ErrTruncatedSTL, need, count, len(data))
	}

	stl := &STL{Triangles: make([]Triangle, count)}
	off := binaryHeaderSize
	for i := range stl.Triangles {
		tri := &stl.Triangles[i]
		tri.Normal = readVec3(data[off:])
		tri.V[0] = readVec3(data[off+12:])
		tri.V[1] = readVec3(data[off+24:])
		tri.V[2] = readVec3(data[off+36:])
		off += binaryTriangleSize
	}
	return stl, nil
}

func readVec3(b []byte) math.Vec3 {
	return math.Vec3{
		X: gomath.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		Y: gomath.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		Z: gomath.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
	}
}

func parseASCII(data []byte) (*STL, error) {
	stl := &STL{}

	var tri Triangle
	vertexIdx := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "facet":
			// "facet normal nx ny nz"
			if len(fields) >= 5 && fields[1] == "normal" {
				n, err := parseVec3(fields[2:5])
				if err != nil {
					return nil, fmt.Errorf("%w: facet normal: %v", ErrInvalidSTL, err)
				}
				tri.Normal = n
			}
			vertexIdx = 0

		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: vertex needs 3 coordinates", ErrInvalidSTL)
			}
			if vertexIdx >= 3 {
				return nil, fmt.Errorf("%w: more than 3 vertices in facet", ErrInvalidSTL)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("%w: vertex: %v", ErrInvalidSTL, err)
			}
			tri.V[vertexIdx] = v
			vertexIdx++

		case "endfacet":
			if vertexIdx != 3 {
				return nil, fmt.Errorf("%w: facet has %d vertices", ErrInvalidSTL, vertexIdx)
			}
			stl.Triangles = append(stl.Triangles, tri)
			tri = Triangle{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
	}
	if len(stl.Triangles) == 0 {
		return nil, ErrEmptySTL
	}
	return stl, nil
}

func parseVec3(fields []string) (math.Vec3, error) {
	var out [3]float32
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return math.Vec3{}, err
		}
		out[i] = float32(v)
	}
	return math.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Bounds returns the axis-aligned bounding box of all vertices.
func (s *STL) Bounds() Bounds {
	b := Bounds{
		Min: math.Vec3{X: 1e10, Y: 1e10, Z: 1e10},
		Max: math.Vec3{X: -1e10, Y: -1e10, Z: -1e10},
	}
	for i := range s.Triangles {
		for _, v := range s.Triangles[i].V {
			b.Min = math.Min(b.Min, v)
			b.Max = math.Max(b.Max, v)
		}
	}
	return b
}
