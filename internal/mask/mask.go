// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mask renders erase and clip coverage into per-layer multisample
// R8 textures that draw variants read.
//
// Coverage accumulates by union: each mask draw keeps the per-sample
// maximum of the existing and the new coverage. A draw variant scales its
// color by (1 - e) for the erase mask and by c for the clip mask, where e
// and c are the means over the mask samples at the pixel.
package mask

import (
	"fmt"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

// Kind selects a mask of a layer.
type Kind uint8

// Mask kinds.
const (
	Erase Kind = iota
	Clip
)

func (k Kind) String() string {
	if k == Clip {
		return "clip"
	}
	return "erase"
}

type masks struct {
	width, height int
	tex           [2]resource.Handle
}

// Binding holds the mask textures a draw binds.
type Binding struct {
	Erase   render.Texture
	Clip    render.Texture
	Samples int
}

// Compositor owns the masks of every layer.
// It is used from the driver goroutine only.
type Compositor struct {
	dev     backend.Device
	reg     *shader.Registry
	res     *resource.Manager
	samples int
	layers  map[int]*masks
}

// New returns a compositor drawing masks with the given sample count.
// It fails with ErrCapabilityMismatch if the backend does not support the
// sample count or the registry has no coverage program for it.
func New(dev backend.Device, reg *shader.Registry, res *resource.Manager, samples int) (*Compositor, error) {
	if err := dev.Capabilities().CheckSamples(samples); err != nil {
		return nil, err
	}
	if !reg.HasSamples(samples) {
		return nil, fmt.Errorf("%w: no coverage program for %d samples", render.ErrCapabilityMismatch, samples)
	}
	return &Compositor{dev: dev, reg: reg, res: res, samples: samples, layers: make(map[int]*masks)}, nil
}

// Samples returns the sample count of every mask.
func (c *Compositor) Samples() int {
	return c.samples
}

// DrawErase adds the coverage of batch to the erase mask of layer.
func (c *Compositor) DrawErase(layer, width, height int, batch []render.Vertex, transform render.Matrix) error {
	return c.draw(Erase, layer, width, height, batch, transform)
}

// DrawClip adds the coverage of batch to the clip mask of layer.
func (c *Compositor) DrawClip(layer, width, height int, batch []render.Vertex, transform render.Matrix) error {
	return c.draw(Clip, layer, width, height, batch, transform)
}

func (c *Compositor) draw(k Kind, layer, width, height int, batch []render.Vertex, transform render.Matrix) error {
	if len(batch) == 0 {
		return nil
	}
	tex, err := c.mask(k, layer, width, height)
	if err != nil {
		return err
	}
	p, err := c.reg.Utility(shader.UtilityKey{Kind: shader.UtilCoverage, Samples: c.samples})
	if err != nil {
		return err
	}
	vh, err := c.res.UploadVertices(batch, false)
	if err != nil {
		return err
	}
	vb, err := c.res.Vertices(vh)
	if err != nil {
		return err
	}

	b := render.NewBindings()
	b.Uniforms.Transform = transform
	bound, err := p.Bind(&b)
	if err != nil {
		return err
	}
	err = c.dev.Draw(&backend.DrawCall{
		Target:   tex,
		Program:  p,
		Bindings: bound,
		Blend:    render.BlendLighten.State(false),
		Vertices: vb,
	})
	if err != nil {
		return fmt.Errorf("%s mask of layer %d: %w", k, layer, err)
	}
	return nil
}

// mask returns the mask texture of kind k, creating the layer's masks or
// recreating them when the layer size changed.
func (c *Compositor) mask(k Kind, layer, width, height int) (render.Texture, error) {
	m := c.layers[layer]
	if m != nil && (m.width != width || m.height != height) {
		c.Invalidate(layer)
		m = nil
	}
	if m == nil {
		m = &masks{width: width, height: height}
		c.layers[layer] = m
	}
	if m.tex[k].IsZero() {
		h, err := c.res.CreateTexture(render.TextureDescriptor{
			Label:       fmt.Sprintf("layer%d_%s_mask", layer, k),
			Width:       width,
			Height:      height,
			SampleCount: c.samples,
			Format:      render.FormatR8,
		})
		if err != nil {
			return nil, err
		}
		m.tex[k] = h
	}
	return c.res.Texture(m.tex[k])
}

// ClearErase resets the erase mask of layer to zero coverage.
func (c *Compositor) ClearErase(layer int) error {
	return c.clear(Erase, layer)
}

// ClearClip resets the clip mask of layer to zero coverage.
func (c *Compositor) ClearClip(layer int) error {
	return c.clear(Clip, layer)
}

func (c *Compositor) clear(k Kind, layer int) error {
	m := c.layers[layer]
	if m == nil || m.tex[k].IsZero() {
		return nil
	}
	tex, err := c.res.Texture(m.tex[k])
	if err != nil {
		return err
	}
	return c.dev.Clear(tex, render.Transparent)
}

// Invalidate releases both masks of layer. They are recreated empty on
// next use.
func (c *Compositor) Invalidate(layer int) {
	m := c.layers[layer]
	if m == nil {
		return
	}
	for _, h := range m.tex {
		if !h.IsZero() {
			_ = c.res.Free(h)
		}
	}
	delete(c.layers, layer)
}

// InvalidateAll releases the masks of every layer.
func (c *Compositor) InvalidateAll() {
	for layer := range c.layers {
		c.Invalidate(layer)
	}
}

// Bindings returns the masks a draw on layer binds. A requested mask that
// was never drawn is created empty: nothing erased, everything clipped.
// Both masks must have the same sample count.
func (c *Compositor) Bindings(layer, width, height int, erase, clip bool) (Binding, error) {
	b := Binding{Samples: c.samples}
	var err error
	if erase {
		if b.Erase, err = c.mask(Erase, layer, width, height); err != nil {
			return b, err
		}
	}
	if clip {
		if b.Clip, err = c.mask(Clip, layer, width, height); err != nil {
			return b, err
		}
	}
	if b.Erase != nil && b.Clip != nil {
		es, cs := b.Erase.Descriptor().SampleCount, b.Clip.Descriptor().SampleCount
		if es != cs {
			return b, fmt.Errorf("%w: erase mask has %d samples, clip mask %d", render.ErrCapabilityMismatch, es, cs)
		}
	}
	return b, nil
}

// Sample reads back the mean coverage of a mask at the pixel (x, y).
// A mask that was never drawn has zero coverage.
func (c *Compositor) Sample(k Kind, layer, x, y int) (float32, error) {
	m := c.layers[layer]
	if m == nil || m.tex[k].IsZero() {
		return 0, nil
	}
	tex, err := c.res.Texture(m.tex[k])
	if err != nil {
		return 0, err
	}
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0, fmt.Errorf("%w: (%d,%d) outside %dx%d mask", render.ErrConfiguration, x, y, m.width, m.height)
	}
	samples, err := c.dev.ReadTexture(tex)
	if err != nil {
		return 0, err
	}
	n := max(tex.Descriptor().SampleCount, 1)
	return Mean(samples[(y*m.width+x)*n:][:n]), nil
}

// Mean returns the mean red channel of mask samples.
func Mean(samples []render.Color) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float32
	for _, s := range samples {
		sum += s.R
	}
	return sum / float32(len(samples))
}
