// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "golang.org/x/image/math/f32"

// Matrix is a 4x4 float32 matrix stored column-major, the layout of the
// transform and fill-texture-transform uniform slots.
type Matrix [16]float32

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// FromAffine converts a 2D affine transform to a 4x4 matrix.
// The affine transform maps (x, y) to (a[0]x + a[1]y + a[2], a[3]x + a[4]y + a[5]).
func FromAffine(a f32.Aff3) Matrix {
	return Matrix{
		a[0], a[3], 0, 0,
		a[1], a[4], 0, 0,
		0, 0, 1, 0,
		a[2], a[5], 0, 1,
	}
}

// Affine returns the 2D part of the matrix.
func (m Matrix) Affine() f32.Aff3 {
	return f32.Aff3{m[0], m[4], m[12], m[1], m[5], m[13]}
}

// Translate returns a translation matrix.
func Translate(x, y float32) Matrix {
	return FromAffine(f32.Aff3{1, 0, x, 0, 1, y})
}

// Scale returns a scaling matrix.
func Scale(sx, sy float32) Matrix {
	return FromAffine(f32.Aff3{sx, 0, 0, 0, sy, 0})
}

// PixelSpace maps pixel coordinates of a width x height target, origin at
// the top left and y pointing down, to clip space.
func PixelSpace(width, height int) Matrix {
	return FromAffine(f32.Aff3{
		2 / float32(width), 0, -1,
		0, -2 / float32(height), 1,
	})
}

// TextureSpace maps pixel coordinates of a width x height image to
// normalized texture coordinates.
func TextureSpace(width, height int) Matrix {
	return Scale(1/float32(width), 1/float32(height))
}

// Mul returns m * o, so that (m.Mul(o)).Apply(p) == m.Apply(o.Apply(p)).
func (m Matrix) Mul(o Matrix) Matrix {
	var r Matrix
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[col*4+k]
			}
			r[col*4+row] = sum
		}
	}
	return r
}

// Apply transforms a 2D point (z = 0, w = 1).
func (m Matrix) Apply(x, y float32) (float32, float32) {
	return m[0]*x + m[4]*y + m[12], m[1]*x + m[5]*y + m[13]
}

// Floats returns the matrix as a column-major slice for uniform upload.
func (m Matrix) Floats() []float32 {
	out := make([]float32, 16)
	copy(out, m[:])
	return out
}
