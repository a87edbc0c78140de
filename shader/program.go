// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/compose/render"
)

// UtilityKind identifies a non-draw program.
type UtilityKind uint8

// Utility program kinds.
const (
	// UtilCoverage writes geometry coverage into a mask texture.
	UtilCoverage UtilityKind = iota
	// UtilResolve averages the samples of a multisample texture, optionally
	// un-premultiplies, scales alpha by the opacity in fill-alpha and
	// applies an alpha policy.
	UtilResolve
	// UtilBlur is one pass of a separable blur.
	UtilBlur
	// UtilAlpha scales alpha, optionally followed by invert-colour-alpha.
	UtilAlpha
	// UtilMask multiplies a texture by the alpha of a second texture.
	UtilMask
	// UtilDisplace offsets texture lookups by a displacement map.
	UtilDisplace
	// UtilReduce samples the source at the destination's texel centers;
	// at half size this is a 2x2 box filter.
	UtilReduce
)

func (k UtilityKind) String() string {
	switch k {
	case UtilCoverage:
		return "coverage"
	case UtilResolve:
		return "resolve"
	case UtilBlur:
		return "blur"
	case UtilAlpha:
		return "alpha"
	case UtilMask:
		return "mask"
	case UtilDisplace:
		return "displace"
	case UtilReduce:
		return "reduce"
	}
	return fmt.Sprintf("UtilityKind(%d)", k)
}

// UtilityKey identifies a utility program. Fields not used by Kind are zero.
type UtilityKey struct {
	Kind    UtilityKind
	Samples int
	Policy  render.AlphaPolicy
	// Flag is un-premultiply for UtilResolve, invert for UtilAlpha and
	// premultiplied-map for UtilDisplace.
	Flag bool
}

func (k UtilityKey) String() string {
	s := k.Kind.String()
	if k.Samples > 0 {
		s += fmt.Sprintf("/x%d", k.Samples)
	}
	if k.Policy != render.PolicyNone {
		s += "/" + k.Policy.String()
	}
	if k.Flag {
		s += "/flag"
	}
	return s
}

// Program is a generated shader program.
type Program struct {
	// Label names the program in logs and GPU debug labels.
	Label string

	// Samples is the sample count of the multisampled textures the
	// program reads.
	Samples int

	// TargetSamples is the sample count of the target it renders to.
	TargetSamples int

	// Fragments is the stage chain, in evaluation order.
	Fragments []Fragment

	// Source is the complete WGSL module.
	Source string

	// Handle is the backend's compiled form, set by the registry.
	Handle any

	uniforms [render.UniformSlotCount]bool
	textures [render.TextureSlotCount]textureBinding
}

type textureBinding struct {
	used    bool
	kind    TextureKind
	binding uint32
}

// First binding numbers of the generated bind group layout.
const (
	UniformBinding  = 0
	SamplerBinding  = 1
	firstTexBinding = 2
)

func newProgram(label string, samples, targetSamples int, frags []Fragment) *Program {
	p := &Program{Label: label, Samples: samples, TargetSamples: targetSamples, Fragments: frags}
	for _, f := range frags {
		for _, s := range f.Uniforms {
			p.uniforms[s] = true
		}
		for _, t := range f.Textures {
			p.textures[t.Slot].used = true
			p.textures[t.Slot].kind = t.Kind
		}
	}
	// Transform is read by the vertex stage of every program.
	p.uniforms[render.SlotTransform] = true

	next := uint32(firstTexBinding)
	for _, slot := range render.TextureSlots {
		if p.textures[slot].used {
			p.textures[slot].binding = next
			next++
		}
	}
	p.Source = generateWGSL(p)
	return p
}

// ConsumesUniform reports whether the program reads a uniform slot.
func (p *Program) ConsumesUniform(s render.UniformSlot) bool {
	return p.uniforms[s]
}

// ConsumesTexture reports whether the program reads a texture slot.
func (p *Program) ConsumesTexture(s render.TextureSlot) bool {
	return p.textures[s].used
}

// TextureBinding returns the bind group binding number of a texture slot.
func (p *Program) TextureBinding(s render.TextureSlot) (uint32, bool) {
	b := p.textures[s]
	return b.binding, b.used
}

// TextureKind returns how the program reads a texture slot.
func (p *Program) TextureKind(s render.TextureSlot) TextureKind {
	return p.textures[s].kind
}

// UsesSampler reports whether any texture is read through the linear sampler.
func (p *Program) UsesSampler() bool {
	for _, b := range p.textures {
		if b.used && b.kind == Filtered {
			return true
		}
	}
	return false
}

// Bind copies the bindings the program consumes and drops the rest.
// It fails if a consumed texture slot has no texture.
func (p *Program) Bind(src *render.Bindings) (render.Bindings, error) {
	out := render.Bindings{Uniforms: src.Uniforms}
	for _, slot := range render.TextureSlots {
		if !p.textures[slot].used {
			continue
		}
		t := src.Textures[slot]
		if t == nil {
			return out, fmt.Errorf("%w: program %s needs a %s texture", render.ErrConfiguration, p.Label, slot)
		}
		out.Textures[slot] = t
	}
	return out, nil
}

// Run evaluates the fragment chain on c. c.Out holds the result.
func (p *Program) Run(c *Context) {
	for i := range p.Fragments {
		p.Fragments[i].Eval(c)
	}
}
