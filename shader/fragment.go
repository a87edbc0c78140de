// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import "github.com/gogpu/compose/render"

// TextureKind is how a fragment reads a texture slot.
type TextureKind uint8

// Texture kinds.
const (
	// Filtered textures are sampled with the shared linear sampler.
	Filtered TextureKind = iota
	// Multisampled textures are read per sample with textureLoad.
	Multisampled
	// Lookup textures are 1-row tables read per texel with textureLoad.
	Lookup
)

// TextureUse declares that a fragment reads a texture slot.
type TextureUse struct {
	Slot render.TextureSlot
	Kind TextureKind
}

// Fragment is one composable stage of a fragment shader.
//
// WGSL is the body of a function with the signature
//
//	fn <Name>(in: FragmentInput, c: vec4<f32>) -> vec4<f32>
//
// where c is the color produced by the previous stage. Eval performs the
// same computation on a CPU [Context].
type Fragment struct {
	Name     string
	Uniforms []render.UniformSlot
	Textures []TextureUse
	WGSL     string
	Eval     func(c *Context)
}

// Sampler gives fragment evaluators access to the textures bound to a draw.
type Sampler interface {
	// Sample filters a single-sample texture at normalized coordinates
	// with bilinear filtering and clamp-to-edge addressing.
	Sample(slot render.TextureSlot, u, v float32) render.Color

	// Load fetches one sample of one texel. Coordinates are clamped.
	Load(slot render.TextureSlot, x, y, sample int) render.Color

	// Size returns the dimensions of the texture in slot.
	Size(slot render.TextureSlot) (width, height int)
}

// Context is the per-pixel state of a CPU fragment evaluation.
type Context struct {
	// X and Y are the integer pixel coordinates in the target.
	X, Y int

	// Pos is the interpolated untransformed vertex position.
	Pos [2]float32

	// TexCoord is the interpolated texture coordinate.
	TexCoord [2]float32

	// Color is the interpolated vertex color, normalized to [0, 1].
	Color render.Color

	Uniforms *render.Uniforms
	Textures Sampler

	// Out is the running output color.
	Out render.Color
}
