// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"
)

// Vertex buffer layout shared by every backend.
const (
	VertexStride         = 20
	VertexPosOffset      = 0
	VertexTexCoordOffset = 8
	VertexColorOffset    = 16
)

// Vertex is one corner of a triangle in a draw batch.
type Vertex struct {
	Pos      [2]float32
	TexCoord [2]float32
	Color    [4]uint8
}

// V is shorthand for a vertex with a position, texture coordinate and color.
func V(x, y, u, v float32, c Color) Vertex {
	return Vertex{Pos: [2]float32{x, y}, TexCoord: [2]float32{u, v}, Color: c.Bytes()}
}

// NormalizedColor returns the vertex color divided by 255, the value a
// fragment stage sees.
func (v Vertex) NormalizedColor() Color {
	return ColorFromBytes(v.Color)
}

// AppendVertices encodes vertices in the fixed little-endian layout.
func AppendVertices(dst []byte, vs ...Vertex) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Pos[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Pos[1]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.TexCoord[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.TexCoord[1]))
		dst = append(dst, v.Color[:]...)
	}
	return dst
}

// DecodeVertices is the inverse of AppendVertices. Trailing bytes that do
// not form a whole vertex are ignored.
func DecodeVertices(b []byte) []Vertex {
	n := len(b) / VertexStride
	vs := make([]Vertex, n)
	for i := range vs {
		p := b[i*VertexStride:]
		vs[i].Pos[0] = math.Float32frombits(binary.LittleEndian.Uint32(p[0:]))
		vs[i].Pos[1] = math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))
		vs[i].TexCoord[0] = math.Float32frombits(binary.LittleEndian.Uint32(p[8:]))
		vs[i].TexCoord[1] = math.Float32frombits(binary.LittleEndian.Uint32(p[12:]))
		copy(vs[i].Color[:], p[16:20])
	}
	return vs
}

// VertexBufferLayout describes the vertex layout for GPU pipelines.
func VertexBufferLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: VertexPosOffset, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: VertexTexCoordOffset, ShaderLocation: 1},
			{Format: gputypes.VertexFormatUnorm8x4, Offset: VertexColorOffset, ShaderLocation: 2},
		},
	}
}

// Quad returns two triangles covering the rectangle (x0,y0)-(x1,y1) with
// texture coordinates spanning 0..1 and a uniform color.
func Quad(x0, y0, x1, y1 float32, c Color) []Vertex {
	return []Vertex{
		V(x0, y0, 0, 0, c), V(x1, y0, 1, 0, c), V(x1, y1, 1, 1, c),
		V(x0, y0, 0, 0, c), V(x1, y1, 1, 1, c), V(x0, y1, 0, 1, c),
	}
}
