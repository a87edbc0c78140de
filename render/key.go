// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"strings"
)

// FillKind selects how a draw computes its source color.
type FillKind uint8

// Fill kinds.
const (
	// FillSolid uses the interpolated vertex color.
	FillSolid FillKind = iota
	// FillTexture samples the fill texture through the fill-texture-transform.
	FillTexture
	// FillGradient samples the gradient ramp at the x texture coordinate.
	FillGradient
	// FillDash modulates the vertex color by a 1-D dash pattern.
	FillDash

	fillKindCount
)

// FillKinds lists every fill kind.
var FillKinds = []FillKind{FillSolid, FillTexture, FillGradient, FillDash}

func (k FillKind) String() string {
	switch k {
	case FillSolid:
		return "solid"
	case FillTexture:
		return "texture"
	case FillGradient:
		return "gradient"
	case FillDash:
		return "dash"
	}
	return fmt.Sprintf("FillKind(%d)", k)
}

// AlphaMode is the encoding of the color a variant writes.
type AlphaMode uint8

// Alpha modes.
const (
	AlphaStraight AlphaMode = iota
	AlphaPremultiplied
)

func (m AlphaMode) String() string {
	if m == AlphaPremultiplied {
		return "premultiplied"
	}
	return "straight"
}

// BlendAdjust is a per-fragment transform of the output color applied so
// that a blend mode treats transparency correctly.
type BlendAdjust uint8

// Blend adjustments.
const (
	AdjustNone BlendAdjust = iota
	// AdjustInvertAlpha blends color channels toward white as alpha drops:
	// c' = 1 - (1-c)*a.
	AdjustInvertAlpha
	// AdjustMultiplyAlpha scales color channels by alpha: c' = c*a.
	AdjustMultiplyAlpha
)

// BlendAdjusts lists every blend adjustment.
var BlendAdjusts = []BlendAdjust{AdjustNone, AdjustInvertAlpha, AdjustMultiplyAlpha}

func (a BlendAdjust) String() string {
	switch a {
	case AdjustInvertAlpha:
		return "invert-alpha"
	case AdjustMultiplyAlpha:
		return "multiply-alpha"
	}
	return "none"
}

// AlphaPolicy is the post-resolve alpha transform of a resolve call.
type AlphaPolicy uint8

// Alpha policies.
const (
	PolicyNone AlphaPolicy = iota
	PolicyInvertColorAlpha
	PolicyMultiplyAlpha
)

// AlphaPolicies lists every alpha policy.
var AlphaPolicies = []AlphaPolicy{PolicyNone, PolicyInvertColorAlpha, PolicyMultiplyAlpha}

func (p AlphaPolicy) String() string {
	switch p {
	case PolicyInvertColorAlpha:
		return "invert-colour-alpha"
	case PolicyMultiplyAlpha:
		return "multiply-alpha"
	}
	return "none"
}

// ApplyAlphaPolicy transforms the color channels of c by its own alpha.
// Alpha is left unchanged.
func ApplyAlphaPolicy(c Color, p AlphaPolicy) Color {
	switch p {
	case PolicyInvertColorAlpha:
		return Color{
			R: 1 - (1-c.R)*c.A,
			G: 1 - (1-c.G)*c.A,
			B: 1 - (1-c.B)*c.A,
			A: c.A,
		}
	case PolicyMultiplyAlpha:
		return c.Premultiply()
	}
	return c
}

// VariantKey describes one shader variant: how the source color is
// produced, which masks modulate it and how it is encoded.
type VariantKey struct {
	Fill FillKind
	// Samples is the sample count of the target and of any mask the
	// variant reads. 1 means no multisampling.
	Samples int
	Erase   bool
	Clip    bool
	Alpha   AlphaMode
	Adjust  BlendAdjust
}

// String returns a compact, unique description used in labels and logs.
func (k VariantKey) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/x%d", k.Fill, k.Samples)
	if k.Erase {
		b.WriteString("/erase")
	}
	if k.Clip {
		b.WriteString("/clip")
	}
	if k.Alpha == AlphaPremultiplied {
		b.WriteString("/premul")
	}
	if k.Adjust != AdjustNone {
		b.WriteString("/" + k.Adjust.String())
	}
	return b.String()
}
