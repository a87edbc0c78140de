package compose

import (
	"fmt"

	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
)

// Fill describes how the color of a draw is produced.
//
// The zero Fill is not valid; use one of the constructors.
type Fill struct {
	kind      render.FillKind
	image     resource.Handle
	transform render.Matrix
	alpha     float32

	layer     int
	fromLayer bool
}

// SolidFill takes the color of every vertex.
func SolidFill() Fill {
	return Fill{kind: render.FillSolid, alpha: 1, transform: render.Identity()}
}

// TextureFill samples t. m maps batch positions, before the driver
// transform, to texel coordinates of t; alpha scales the sampled alpha.
func TextureFill(t Texture, m render.Matrix, alpha float32) Fill {
	return Fill{kind: render.FillTexture, image: t.h, transform: m, alpha: alpha}
}

// GradientFill samples g at the first texture coordinate of every vertex.
func GradientFill(g Gradient, alpha float32) Fill {
	return Fill{kind: render.FillGradient, image: g.h, transform: render.Identity(), alpha: alpha}
}

// DashFill modulates the vertex color by p. The first texture coordinate
// of a vertex is its distance along the stroke divided by p.Length().
func DashFill(p DashPattern) Fill {
	return Fill{kind: render.FillDash, image: p.h, transform: render.Identity(), alpha: 1}
}

// LayerFill samples the current content of layer id, resolved at draw
// time. m maps batch positions to layer pixels. A layer cannot fill draws
// into itself.
func LayerFill(id int, m render.Matrix, alpha float32) Fill {
	return Fill{kind: render.FillTexture, transform: m, alpha: alpha, layer: id, fromLayer: true}
}

// Kind returns the fill kind.
func (f Fill) Kind() render.FillKind {
	return f.kind
}

// bindFill writes the fill slots of st to b.
func (d *Driver) bindFill(b *render.Bindings, st *drawState) error {
	f := &st.fill
	b.Uniforms.FillAlpha = f.alpha
	switch f.kind {
	case render.FillSolid:
		return nil

	case render.FillTexture:
		h := f.image
		if f.fromLayer {
			if f.layer == st.layer {
				return fmt.Errorf("%w: layer %d cannot fill draws into itself", ErrConfiguration, f.layer)
			}
			r, err := d.layers.Resolve(f.layer, 1, render.PolicyNone)
			if err != nil {
				return err
			}
			// The resolved image no longer holds the frame composite.
			delete(d.composited, f.layer)
			h = r.Handle
		}
		tex, err := d.res.Texture(h)
		if err != nil {
			return err
		}
		desc := tex.Descriptor()
		b.Uniforms.FillTextureTransform = render.TextureSpace(desc.Width, desc.Height).Mul(f.transform)
		b.SetTexture(render.TexFill, tex)
		return nil

	case render.FillGradient:
		tex, err := d.res.Texture(f.image)
		if err != nil {
			return err
		}
		b.SetTexture(render.TexGradientRamp, tex)
		return nil

	case render.FillDash:
		tex, err := d.res.Texture(f.image)
		if err != nil {
			return err
		}
		b.SetTexture(render.TexFill, tex)
		return nil
	}
	return fmt.Errorf("%w: fill kind %v", ErrConfiguration, f.kind)
}
