// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"image/color"
	"math"
)

// Color is an RGBA color with float32 channels in [0, 1].
// Whether the channels are premultiplied depends on where the color is
// stored; Color itself carries no flag.
type Color struct {
	R, G, B, A float32
}

// Common colors.
var (
	Transparent = Color{}
	Black       = Color{0, 0, 0, 1}
	White       = Color{1, 1, 1, 1}
	Red         = Color{1, 0, 0, 1}
	Green       = Color{0, 1, 0, 1}
	Blue        = Color{0, 0, 1, 1}
)

// RGBA returns a color from float components.
func RGBA(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// ColorFromBytes converts 8-bit unorm channels to a Color.
func ColorFromBytes(c [4]uint8) Color {
	return Color{
		R: float32(c[0]) / 255,
		G: float32(c[1]) / 255,
		B: float32(c[2]) / 255,
		A: float32(c[3]) / 255,
	}
}

// ColorFromNRGBA converts a straight-alpha standard library color.
func ColorFromNRGBA(c color.NRGBA) Color {
	return ColorFromBytes([4]uint8{c.R, c.G, c.B, c.A})
}

// Bytes quantizes the color to 8-bit unorm channels, rounding to nearest.
func (c Color) Bytes() [4]uint8 {
	return [4]uint8{unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)}
}

// NRGBA converts to a standard library color without altering channels.
func (c Color) NRGBA() color.NRGBA {
	b := c.Bytes()
	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: b[3]}
}

// Quantize rounds every channel to the nearest 8-bit unorm value.
// Backends with 8-bit storage apply it on every write.
func (c Color) Quantize() Color {
	return ColorFromBytes(c.Bytes())
}

// Premultiply scales the color channels by alpha.
func (c Color) Premultiply() Color {
	return Color{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A}
}

// Unpremultiply divides the color channels by alpha.
// A fully transparent color stays fully transparent.
func (c Color) Unpremultiply() Color {
	if c.A == 0 {
		return Color{}
	}
	return Color{R: c.R / c.A, G: c.G / c.A, B: c.B / c.A, A: c.A}
}

// Scale multiplies all four channels by s.
func (c Color) Scale(s float32) Color {
	return Color{R: c.R * s, G: c.G * s, B: c.B * s, A: c.A * s}
}

// Mul multiplies two colors channel by channel.
func (c Color) Mul(o Color) Color {
	return Color{R: c.R * o.R, G: c.G * o.G, B: c.B * o.B, A: c.A * o.A}
}

// Add adds two colors channel by channel.
func (c Color) Add(o Color) Color {
	return Color{R: c.R + o.R, G: c.G + o.G, B: c.B + o.B, A: c.A + o.A}
}

// Lerp interpolates between c (t=0) and o (t=1).
func (c Color) Lerp(o Color, t float32) Color {
	return Color{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
		A: c.A + (o.A-c.A)*t,
	}
}

// Clamp limits every channel to [0, 1].
func (c Color) Clamp() Color {
	return Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B), A: clamp01(c.A)}
}

// ApproxEqual reports whether every channel differs by at most tol.
func (c Color) ApproxEqual(o Color, tol float32) bool {
	return abs32(c.R-o.R) <= tol && abs32(c.G-o.G) <= tol &&
		abs32(c.B-o.B) <= tol && abs32(c.A-o.A) <= tol
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return fmt.Sprintf("(%.4g,%.4g,%.4g,%.4g)", c.R, c.G, c.B, c.A)
}

func unorm8(v float32) uint8 {
	return uint8(math.Round(float64(clamp01(v)) * 255))
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
