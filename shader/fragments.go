// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"math"

	"github.com/gogpu/compose/render"
)

// Fill stages.

var fillSolid = Fragment{
	Name: "fill_solid",
	WGSL: `return in.color;`,
	Eval: func(c *Context) { c.Out = c.Color },
}

var fillTexture = Fragment{
	Name:     "fill_texture",
	Uniforms: []render.UniformSlot{render.SlotFillTextureTransform, render.SlotFillAlpha},
	Textures: []TextureUse{{render.TexFill, Filtered}},
	WGSL: `let uv = (u.fill_transform * vec4<f32>(in.pos, 0.0, 1.0)).xy;
    var t = textureSampleLevel(fill_texture, linear_sampler, uv, 0.0);
    t.a = t.a * u.fill_alpha;
    return t;`,
	Eval: func(c *Context) {
		u, v := c.Uniforms.FillTextureTransform.Apply(c.Pos[0], c.Pos[1])
		t := c.Textures.Sample(render.TexFill, u, v)
		t.A *= c.Uniforms.FillAlpha
		c.Out = t
	},
}

var fillGradient = Fragment{
	Name:     "fill_gradient",
	Uniforms: []render.UniformSlot{render.SlotFillAlpha},
	Textures: []TextureUse{{render.TexGradientRamp, Filtered}},
	WGSL: `var t = textureSampleLevel(gradient_ramp, linear_sampler, vec2<f32>(in.tex_coord.x, 0.5), 0.0);
    t.a = t.a * u.fill_alpha;
    return t;`,
	Eval: func(c *Context) {
		t := c.Textures.Sample(render.TexGradientRamp, c.TexCoord[0], 0.5)
		t.A *= c.Uniforms.FillAlpha
		c.Out = t
	},
}

var fillDash = Fragment{
	Name:     "fill_dash",
	Textures: []TextureUse{{render.TexFill, Lookup}},
	WGSL: `let w = i32(textureDimensions(fill_texture).x);
    let i = clamp(i32(fract(in.tex_coord.x) * f32(w)), 0, w - 1);
    let d = textureLoad(fill_texture, vec2<i32>(i, 0), 0);
    return vec4<f32>(in.color.rgb, in.color.a * d.a);`,
	Eval: func(c *Context) {
		w, _ := c.Textures.Size(render.TexFill)
		x := c.TexCoord[0] - float32(math.Floor(float64(c.TexCoord[0])))
		i := min(max(int(x*float32(w)), 0), w-1)
		d := c.Textures.Load(render.TexFill, i, 0, 0)
		c.Out = c.Color
		c.Out.A *= d.A
	},
}

func fillFragment(k render.FillKind) (Fragment, error) {
	switch k {
	case render.FillSolid:
		return fillSolid, nil
	case render.FillTexture:
		return fillTexture, nil
	case render.FillGradient:
		return fillGradient, nil
	case render.FillDash:
		return fillDash, nil
	}
	return Fragment{}, fmt.Errorf("%w: no fill stage for %v", render.ErrConfiguration, k)
}

// Encode stages.

var premultiply = Fragment{
	Name: "premultiply",
	WGSL: `return vec4<f32>(c.rgb * c.a, c.a);`,
	Eval: func(c *Context) { c.Out = c.Out.Premultiply() },
}

var invertAlpha = Fragment{
	Name: "invert_colour_alpha",
	WGSL: `return vec4<f32>(vec3<f32>(1.0) - (vec3<f32>(1.0) - c.rgb) * c.a, c.a);`,
	Eval: func(c *Context) { c.Out = render.ApplyAlphaPolicy(c.Out, render.PolicyInvertColorAlpha) },
}

var multiplyAlpha = Fragment{
	Name: "multiply_alpha",
	WGSL: `return vec4<f32>(c.rgb * c.a, c.a);`,
	Eval: func(c *Context) { c.Out = render.ApplyAlphaPolicy(c.Out, render.PolicyMultiplyAlpha) },
}

func adjustFragment(adjust render.BlendAdjust) (Fragment, bool) {
	switch adjust {
	case render.AdjustInvertAlpha:
		return invertAlpha, true
	case render.AdjustMultiplyAlpha:
		return multiplyAlpha, true
	}
	return Fragment{}, false
}

func policyFragment(p render.AlphaPolicy) (Fragment, bool) {
	switch p {
	case render.PolicyInvertColorAlpha:
		return invertAlpha, true
	case render.PolicyMultiplyAlpha:
		return multiplyAlpha, true
	}
	return Fragment{}, false
}

// Mask stages.

// maskAverageWGSL averages all samples of a mask into m.
const maskAverageWGSL = `let p = vec2<i32>(in.position.xy);
    var m = 0.0;
    for (var i = 0; i < %[2]d; i++) {
        m += textureLoad(%[1]s, p, i).r;
    }
    m = m / %[2]d.0;`

// SampleMask returns the mean of all samples of the mask in slot at the
// pixel (x, y).
func SampleMask(s Sampler, slot render.TextureSlot, x, y, samples int) float32 {
	var sum float32
	for i := 0; i < samples; i++ {
		sum += s.Load(slot, x, y, i).R
	}
	return sum / float32(samples)
}

// maskFragment scales the color by the mask factor f. Straight color only
// has its alpha scaled; the blend table multiplies color by alpha later.
func maskFragment(name string, slot render.TextureSlot, samples int, premultiplied bool, f string, factor func(float32) float32) Fragment {
	ret := fmt.Sprintf("\n    return c * (%s);", f)
	if !premultiplied {
		ret = fmt.Sprintf("\n    return vec4<f32>(c.rgb, c.a * (%s));", f)
	}
	return Fragment{
		Name:     name,
		Textures: []TextureUse{{slot, Multisampled}},
		WGSL:     fmt.Sprintf(maskAverageWGSL, name, samples) + ret,
		Eval: func(c *Context) {
			m := factor(SampleMask(c.Textures, slot, c.X, c.Y, samples))
			if premultiplied {
				c.Out = c.Out.Scale(m)
			} else {
				c.Out.A *= m
			}
		},
	}
}

func eraseFragment(samples int, premultiplied bool) Fragment {
	return maskFragment("erase_mask", render.TexEraseMask, samples, premultiplied, "1.0 - m",
		func(e float32) float32 { return 1 - e })
}

func clipFragment(samples int, premultiplied bool) Fragment {
	return maskFragment("clip_mask", render.TexClipMask, samples, premultiplied, "m",
		func(m float32) float32 { return m })
}

// Utility stages.

var coverage = Fragment{
	Name:     "coverage",
	Uniforms: []render.UniformSlot{render.SlotFillAlpha},
	WGSL:     `return vec4<f32>(in.color.a * u.fill_alpha);`,
	Eval: func(c *Context) {
		a := c.Color.A * c.Uniforms.FillAlpha
		c.Out = render.Color{R: a, G: a, B: a, A: a}
	},
}

func resolveFragment(samples int, unpremultiply bool) Fragment {
	unpremul := ""
	if unpremultiply {
		unpremul = `
    if (r.a > 0.0) {
        r = vec4<f32>(r.rgb / r.a, r.a);
    }`
	}
	return Fragment{
		Name:     "resolve",
		Uniforms: []render.UniformSlot{render.SlotFillAlpha},
		Textures: []TextureUse{{render.TexFill, Multisampled}},
		WGSL: fmt.Sprintf(`let p = vec2<i32>(in.position.xy);
    var sum = vec4<f32>(0.0);
    for (var i = 0; i < %[1]d; i++) {
        sum += textureLoad(fill_texture, p, i);
    }
    var r = sum / %[1]d.0;`, samples) + unpremul + `
    r.a = r.a * u.fill_alpha;
    return r;`,
		Eval: func(c *Context) {
			var sum render.Color
			for i := 0; i < samples; i++ {
				sum = sum.Add(c.Textures.Load(render.TexFill, c.X, c.Y, i))
			}
			r := sum.Scale(1 / float32(samples))
			if unpremultiply {
				r = r.Unpremultiply()
			}
			r.A *= c.Uniforms.FillAlpha
			c.Out = r
		},
	}
}

var sampleSource = Fragment{
	Name:     "sample_source",
	Textures: []TextureUse{{render.TexFill, Filtered}},
	WGSL:     `return textureSampleLevel(fill_texture, linear_sampler, in.tex_coord, 0.0);`,
	Eval: func(c *Context) {
		c.Out = c.Textures.Sample(render.TexFill, c.TexCoord[0], c.TexCoord[1])
	},
}

var blur = Fragment{
	Name:     "blur",
	Uniforms: []render.UniformSlot{render.SlotFilterParams},
	Textures: []TextureUse{
		{render.TexFill, Filtered},
		{render.TexBlurOffsets, Lookup},
		{render.TexBlurWeights, Lookup},
	},
	WGSL: `let size = vec2<f32>(textureDimensions(fill_texture));
    let taps = i32(textureDimensions(blur_offsets).x);
    let dir = u.filter_params.xy / size;
    var sum = textureSampleLevel(fill_texture, linear_sampler, in.tex_coord, 0.0) * textureLoad(blur_weights, vec2<i32>(0, 0), 0).r;
    for (var i = 1; i < taps; i++) {
        let off = dir * textureLoad(blur_offsets, vec2<i32>(i, 0), 0).r;
        let w = textureLoad(blur_weights, vec2<i32>(i, 0), 0).r;
        sum += textureSampleLevel(fill_texture, linear_sampler, in.tex_coord + off, 0.0) * w;
        sum += textureSampleLevel(fill_texture, linear_sampler, in.tex_coord - off, 0.0) * w;
    }
    return sum;`,
	Eval: func(c *Context) {
		w, h := c.Textures.Size(render.TexFill)
		taps, _ := c.Textures.Size(render.TexBlurOffsets)
		dx := c.Uniforms.FilterParams[0] / float32(w)
		dy := c.Uniforms.FilterParams[1] / float32(h)
		u, v := c.TexCoord[0], c.TexCoord[1]

		sum := c.Textures.Sample(render.TexFill, u, v).Scale(c.Textures.Load(render.TexBlurWeights, 0, 0, 0).R)
		for i := 1; i < taps; i++ {
			off := c.Textures.Load(render.TexBlurOffsets, i, 0, 0).R
			wt := c.Textures.Load(render.TexBlurWeights, i, 0, 0).R
			sum = sum.Add(c.Textures.Sample(render.TexFill, u+dx*off, v+dy*off).Scale(wt))
			sum = sum.Add(c.Textures.Sample(render.TexFill, u-dx*off, v-dy*off).Scale(wt))
		}
		c.Out = sum
	},
}

var alphaAdjust = Fragment{
	Name:     "alpha_adjust",
	Uniforms: []render.UniformSlot{render.SlotFilterParams},
	Textures: []TextureUse{{render.TexFill, Filtered}},
	WGSL: `var t = textureSampleLevel(fill_texture, linear_sampler, in.tex_coord, 0.0);
    t.a = t.a * u.filter_params.x;
    return t;`,
	Eval: func(c *Context) {
		t := c.Textures.Sample(render.TexFill, c.TexCoord[0], c.TexCoord[1])
		t.A *= c.Uniforms.FilterParams[0]
		c.Out = t
	},
}

var maskFilter = Fragment{
	Name:     "mask_filter",
	Textures: []TextureUse{{render.TexFill, Filtered}, {render.TexClipMask, Filtered}},
	WGSL: `let t = textureSampleLevel(fill_texture, linear_sampler, in.tex_coord, 0.0);
    let m = textureSampleLevel(clip_mask, linear_sampler, in.tex_coord, 0.0);
    return t * m.a;`,
	Eval: func(c *Context) {
		t := c.Textures.Sample(render.TexFill, c.TexCoord[0], c.TexCoord[1])
		m := c.Textures.Sample(render.TexClipMask, c.TexCoord[0], c.TexCoord[1])
		c.Out = t.Scale(m.A)
	},
}

func displaceFragment(premultiplied bool) Fragment {
	unpremul := ""
	if premultiplied {
		unpremul = `
    if (d.a > 0.0) {
        d = vec4<f32>(d.rgb / d.a, d.a);
    }`
	}
	return Fragment{
		Name:     "displace",
		Uniforms: []render.UniformSlot{render.SlotFilterParams},
		Textures: []TextureUse{{render.TexFill, Filtered}, {render.TexDisplacementMap, Filtered}},
		WGSL: `var d = textureSampleLevel(displacement_map, linear_sampler, in.tex_coord, 0.0);` + unpremul + `
    let size = vec2<f32>(textureDimensions(fill_texture));
    let offset = (d.rg * 2.0 - 1.0) * u.filter_params.xy / size;
    return textureSampleLevel(fill_texture, linear_sampler, in.tex_coord + offset, 0.0);`,
		Eval: func(c *Context) {
			d := c.Textures.Sample(render.TexDisplacementMap, c.TexCoord[0], c.TexCoord[1])
			if premultiplied {
				d = d.Unpremultiply()
			}
			w, h := c.Textures.Size(render.TexFill)
			du := (d.R*2 - 1) * c.Uniforms.FilterParams[0] / float32(w)
			dv := (d.G*2 - 1) * c.Uniforms.FilterParams[1] / float32(h)
			c.Out = c.Textures.Sample(render.TexFill, c.TexCoord[0]+du, c.TexCoord[1]+dv)
		},
	}
}
