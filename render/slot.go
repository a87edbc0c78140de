// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "fmt"

// UniformSlot names a uniform value independently of backend bindings.
type UniformSlot uint8

// Uniform slots.
const (
	// SlotTransform is a 4x4 column-major matrix applied to vertex positions.
	SlotTransform UniformSlot = iota
	// SlotFillTextureTransform maps vertex positions to fill texture coordinates.
	SlotFillTextureTransform
	// SlotFillAlpha is a scalar multiplied into the fill alpha.
	SlotFillAlpha
	// SlotFilterParams is a vec4 of per-pass filter parameters.
	SlotFilterParams

	uniformSlotCount
)

// UniformSlotCount is the number of uniform slots.
const UniformSlotCount = int(uniformSlotCount)

// UniformSlots lists every uniform slot.
var UniformSlots = []UniformSlot{SlotTransform, SlotFillTextureTransform, SlotFillAlpha, SlotFilterParams}

func (s UniformSlot) String() string {
	switch s {
	case SlotTransform:
		return "transform"
	case SlotFillTextureTransform:
		return "fill-texture-transform"
	case SlotFillAlpha:
		return "fill-alpha"
	case SlotFilterParams:
		return "filter-params"
	}
	return fmt.Sprintf("UniformSlot(%d)", s)
}

// TextureSlot names a texture input independently of backend bindings.
type TextureSlot uint8

// Texture slots.
const (
	TexFill TextureSlot = iota
	TexEraseMask
	TexClipMask
	TexGradientRamp
	TexDisplacementMap
	TexBlurOffsets
	TexBlurWeights

	textureSlotCount
)

// TextureSlotCount is the number of texture slots.
const TextureSlotCount = int(textureSlotCount)

// TextureSlots lists every texture slot.
var TextureSlots = []TextureSlot{
	TexFill, TexEraseMask, TexClipMask, TexGradientRamp,
	TexDisplacementMap, TexBlurOffsets, TexBlurWeights,
}

func (s TextureSlot) String() string {
	switch s {
	case TexFill:
		return "fill"
	case TexEraseMask:
		return "erase-mask"
	case TexClipMask:
		return "clip-mask"
	case TexGradientRamp:
		return "gradient-ramp"
	case TexDisplacementMap:
		return "displacement-map"
	case TexBlurOffsets:
		return "blur-offsets"
	case TexBlurWeights:
		return "blur-weights"
	}
	return fmt.Sprintf("TextureSlot(%d)", s)
}

// Uniforms holds the values of every uniform slot.
type Uniforms struct {
	Transform            Matrix
	FillTextureTransform Matrix
	FillAlpha            float32
	FilterParams         [4]float32
}

// DefaultUniforms returns identity transforms and an opaque fill alpha.
func DefaultUniforms() Uniforms {
	return Uniforms{
		Transform:            Identity(),
		FillTextureTransform: Identity(),
		FillAlpha:            1,
	}
}

// UniformBlockSize is the byte size of the packed uniform block:
// two mat4x4, one vec4 of filter params, one f32 padded to 16 bytes.
const UniformBlockSize = 16*4*2 + 16 + 16

// Floats packs the uniforms in the std140-compatible layout declared by
// generated shaders.
func (u Uniforms) Floats() []float32 {
	out := make([]float32, 0, UniformBlockSize/4)
	out = append(out, u.Transform[:]...)
	out = append(out, u.FillTextureTransform[:]...)
	out = append(out, u.FilterParams[:]...)
	out = append(out, u.FillAlpha, 0, 0, 0)
	return out
}

// Texture is a backend texture as seen by the backend-independent code.
type Texture interface {
	Descriptor() TextureDescriptor
}

// Bindings holds the values written to semantic slots for one draw.
// The driver always fills every slot it has a value for; the shader
// program decides which ones reach the backend.
type Bindings struct {
	Uniforms Uniforms
	Textures [TextureSlotCount]Texture
}

// NewBindings returns bindings with default uniforms and no textures.
func NewBindings() Bindings {
	return Bindings{Uniforms: DefaultUniforms()}
}

// SetTexture writes t to slot.
func (b *Bindings) SetTexture(slot TextureSlot, t Texture) {
	b.Textures[slot] = t
}

// Texture returns the texture written to slot, or nil.
func (b *Bindings) Texture(slot TextureSlot) Texture {
	return b.Textures[slot]
}
