// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gogpu/compose/render"
)

//go:embed shaders/prelude.wgsl
var preludeSource string

// textureNames are the WGSL variable names of the texture slots.
var textureNames = [render.TextureSlotCount]string{
	render.TexFill:            "fill_texture",
	render.TexEraseMask:       "erase_mask",
	render.TexClipMask:        "clip_mask",
	render.TexGradientRamp:    "gradient_ramp",
	render.TexDisplacementMap: "displacement_map",
	render.TexBlurOffsets:     "blur_offsets",
	render.TexBlurWeights:     "blur_weights",
}

// generateWGSL assembles the complete module for p: prelude, resource
// declarations for the slots p consumes, one function per fragment and an
// fs_main that chains them.
func generateWGSL(p *Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n", p.Label)
	b.WriteString(preludeSource)
	b.WriteString("\n")

	if p.UsesSampler() {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var linear_sampler: sampler;\n", SamplerBinding)
	}
	for _, slot := range render.TextureSlots {
		tb := p.textures[slot]
		if !tb.used {
			continue
		}
		typ := "texture_2d<f32>"
		if tb.kind == Multisampled && p.Samples > 1 {
			typ = "texture_multisampled_2d<f32>"
		}
		fmt.Fprintf(&b, "@group(0) @binding(%d) var %s: %s;\n", tb.binding, textureNames[slot], typ)
	}

	for i, f := range p.Fragments {
		fmt.Fprintf(&b, "\nfn stage%d_%s(in: FragmentInput, c: vec4<f32>) -> vec4<f32> {\n    %s\n}\n", i, f.Name, f.WGSL)
	}

	b.WriteString("\n@fragment\nfn fs_main(in: FragmentInput) -> @location(0) vec4<f32> {\n    var c = vec4<f32>(0.0);\n")
	for i, f := range p.Fragments {
		fmt.Fprintf(&b, "    c = stage%d_%s(in, c);\n", i, f.Name)
	}
	b.WriteString("    return c;\n}\n")
	return b.String()
}
