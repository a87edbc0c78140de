package compose

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/filter"
	"github.com/gogpu/compose/internal/layer"
	"github.com/gogpu/compose/render"
)

// Flush ends the frame. Every layer drawn to since the previous flush is
// resolved in ascending id order, then all layers are composited back to
// front into the frame, which becomes readable through [Driver.Frame].
//
// ctx is checked once before any GPU work; a frame in progress is never
// interrupted. On error the frame is abandoned and the previous frame
// stays readable.
func (d *Driver) Flush(ctx context.Context) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.recording != nil {
		return fmt.Errorf("%w: sprite %q is still being defined", ErrConfiguration, d.recording.name)
	}
	defer d.res.EndFrame()

	if err := d.flush(); err != nil {
		d.logger.Warn("compose: frame abandoned", slog.Uint64("frame", d.frames+1), slog.Any("err", err))
		return err
	}
	d.layers.ResetTouched()
	d.frames++
	d.logger.Debug("compose: frame complete", slog.Uint64("frame", d.frames), slog.String("memory", d.res.Stats().String()))
	return nil
}

func (d *Driver) flush() error {
	order := d.layers.Order()
	touched := d.layers.Touched()
	resolved := make([]layer.Resolved, len(order))
	for i, id := range order {
		r, err := d.resolveForFrame(id, slices.Contains(touched, id))
		if err != nil {
			return err
		}
		resolved[i] = r
	}

	frame, err := d.res.Texture(d.frame)
	if err != nil {
		return err
	}
	if err := d.dev.Clear(frame, render.Transparent); err != nil {
		return err
	}
	if len(order) > 0 {
		p, err := d.reg.Lookup(render.VariantKey{Fill: render.FillTexture, Samples: 1, Alpha: render.AlphaStraight})
		if err != nil {
			return err
		}
		vh, err := d.res.UploadVertices(render.Quad(0, 0, float32(d.width), float32(d.height), render.White), false)
		if err != nil {
			return err
		}
		vb, err := d.res.Vertices(vh)
		if err != nil {
			return err
		}
		for i, id := range order {
			t, err := d.layers.Target(id)
			if err != nil {
				return err
			}
			src, err := d.res.Texture(resolved[i].Handle)
			if err != nil {
				return err
			}
			b := render.NewBindings()
			b.Uniforms.Transform = render.PixelSpace(d.width, d.height)
			b.Uniforms.FillTextureTransform = render.TextureSpace(d.width, d.height)
			b.SetTexture(render.TexFill, src)
			bound, err := p.Bind(&b)
			if err != nil {
				return err
			}
			err = d.dev.Draw(&backend.DrawCall{
				Target:   frame,
				Program:  p,
				Bindings: bound,
				Blend:    t.Blend.State(resolved[i].Premultiplied),
				Vertices: vb,
			})
			if err != nil {
				return fmt.Errorf("composite layer %d: %w", id, err)
			}
		}
	}

	pixels, err := d.dev.ReadTexture(frame)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.last, d.lastW, d.lastH = pixels, d.width, d.height
	d.mu.Unlock()
	return nil
}

// resolveForFrame resolves layer id with its composite opacity and the
// policy of its blend mode, reusing the previous result when the layer
// is unchanged.
func (d *Driver) resolveForFrame(id int, touched bool) (layer.Resolved, error) {
	t, err := d.layers.Target(id)
	if err != nil {
		return layer.Resolved{}, err
	}
	policy := t.Blend.ResolvePolicy()
	if c, ok := d.composited[id]; ok && !touched && c.policy == policy && c.alpha == t.Alpha && d.res.Valid(c.resolved.Handle) {
		return c.resolved, nil
	}
	r, err := d.layers.Resolve(id, t.Alpha, policy)
	if err != nil {
		return layer.Resolved{}, err
	}
	d.composited[id] = composited{resolved: r, policy: policy, alpha: t.Alpha}
	return r, nil
}

func (d *Driver) dropComposited() {
	clear(d.composited)
}

// Frames returns the number of completed flushes.
func (d *Driver) Frames() uint64 {
	return d.frames
}

// Frame returns the last completed frame. Before the first flush it is
// fully transparent.
//
// Frame is safe to call from any goroutine.
func (d *Driver) Frame() (*image.NRGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return image.NewNRGBA(image.Rect(0, 0, d.width, d.height)), nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, d.lastW, d.lastH))
	for i, c := range d.last {
		img.SetNRGBA(i%d.lastW, i/d.lastW, c.Unpremultiply().NRGBA())
	}
	return img, nil
}

// Pixel returns the last completed frame at (x, y), straight alpha.
func (d *Driver) Pixel(x, y int) (render.Color, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if x < 0 || y < 0 || x >= d.lastW || y >= d.lastH {
		return render.Color{}, fmt.Errorf("%w: (%d,%d) outside %dx%d frame", ErrConfiguration, x, y, d.lastW, d.lastH)
	}
	return d.last[y*d.lastW+x].Unpremultiply(), nil
}

// FilterLayer replaces the content of layer id by filters applied to it.
// Filters see premultiplied color; a result of another size is stretched
// over the layer. The masks of the layer are kept.
func (d *Driver) FilterLayer(id int, filters ...filter.Filter) error {
	if err := d.check(); err != nil {
		return err
	}
	if len(filters) == 0 {
		return nil
	}
	r, err := d.layers.Resolve(id, 1, render.PolicyNone)
	if err != nil {
		return err
	}
	delete(d.composited, id)

	src, err := d.filters.Premultiply(r.Handle)
	if err != nil {
		return err
	}
	if src != r.Handle {
		defer func() { _ = d.res.Free(src) }()
	}
	out, err := d.filters.Apply(src, filters...)
	if err != nil {
		return fmt.Errorf("filter layer %d: %w", id, err)
	}
	if out != src {
		defer func() { _ = d.res.Free(out) }()
	}

	desc, err := d.res.Descriptor(out)
	if err != nil {
		return err
	}
	if err := d.layers.ClearContent(id); err != nil {
		return err
	}
	vh, err := d.res.UploadVertices(render.Quad(0, 0, float32(d.width), float32(d.height), render.White), false)
	if err != nil {
		return err
	}
	// The filtered image is premultiplied already: copy it unencoded,
	// stretched over the layer.
	stretch := render.Scale(float32(desc.Width)/float32(d.width), float32(desc.Height)/float32(d.height))
	st := drawState{
		layer:     id,
		fill:      Fill{kind: render.FillTexture, image: out, transform: stretch, alpha: 1},
		blend:     render.BlendCopy,
		transform: render.Identity(),
	}
	return d.drawLayer(&st, vh, render.Identity(), render.AlphaStraight)
}
