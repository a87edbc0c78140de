// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package layer owns the render targets of composition layers and
// resolves them to single-sample images.
//
// Layer targets always hold premultiplied color: premultiplied variants
// blend with the premultiplied factor table, straight variants with the
// straight table, and both store premultiplied results. Resolve therefore
// un-premultiplies before applying opacity and the alpha policy, so a
// policy never sees already-premultiplied color.
package layer

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/internal/mask"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

// Target is the render target of one layer.
type Target struct {
	ID            int
	Width, Height int
	Samples       int

	// Premultiplied is the encoding of the target content.
	Premultiplied bool

	// Generation increments on every clear. Sprites that render this
	// target dynamically compare it to detect stale content.
	Generation uint64

	// Blend and Alpha control how the resolved layer is composited into
	// the frame.
	Blend render.BlendMode
	Alpha float32

	image    resource.Handle
	resolved resource.Handle
	scratch  resource.Handle // fixed-function blit destination
	touched  bool
}

// Resolved is the single-sample result of a resolve.
type Resolved struct {
	Handle resource.Handle

	// Premultiplied is true only after a multiply-alpha resolve.
	Premultiplied bool
}

// Manager maps layer ids to targets.
// It is used from the driver goroutine only.
type Manager struct {
	dev     backend.Device
	reg     *shader.Registry
	res     *resource.Manager
	masks   *mask.Compositor
	logger  *slog.Logger
	samples int

	width, height int
	targets       map[int]*Target
	listeners     []func()
}

// New returns a manager of width x height layers with the sample count
// of the mask compositor.
func New(dev backend.Device, reg *shader.Registry, res *resource.Manager, masks *mask.Compositor, width, height int, logger *slog.Logger) (*Manager, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: layer size %dx%d", render.ErrConfiguration, width, height)
	}
	if logger == nil {
		logger = slog.New(nopHandler{})
	}
	return &Manager{
		dev:     dev,
		reg:     reg,
		res:     res,
		masks:   masks,
		logger:  logger,
		samples: masks.Samples(),
		width:   width,
		height:  height,
		targets: make(map[int]*Target),
	}, nil
}

// Size returns the layer size.
func (m *Manager) Size() (width, height int) {
	return m.width, m.height
}

// Samples returns the sample count of every layer target.
func (m *Manager) Samples() int {
	return m.samples
}

// OnClearAll registers f to run after ClearAll or Resize dropped every
// target. Sprite caches use it to drop their bakes.
func (m *Manager) OnClearAll(f func()) {
	m.listeners = append(m.listeners, f)
}

// Target returns the target of layer id, allocating it on first use.
func (m *Manager) Target(id int) (*Target, error) {
	if t := m.targets[id]; t != nil {
		return t, nil
	}
	h, err := m.res.CreateTexture(render.TextureDescriptor{
		Label:         fmt.Sprintf("layer%d", id),
		Width:         m.width,
		Height:        m.height,
		SampleCount:   m.samples,
		Premultiplied: true,
	})
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", id, err)
	}
	t := &Target{
		ID:            id,
		Width:         m.width,
		Height:        m.height,
		Samples:       m.samples,
		Premultiplied: true,
		Blend:         render.BlendSourceOver,
		Alpha:         1,
		image:         h,
	}
	m.targets[id] = t
	m.logger.Debug("layer: allocated", "id", id, "width", m.width, "height", m.height, "samples", m.samples)
	return t, nil
}

// Texture returns the multisample image of t.
func (m *Manager) Texture(t *Target) (render.Texture, error) {
	return m.res.Texture(t.image)
}

// Touch marks layer id as drawn to since the last flush.
func (m *Manager) Touch(id int) {
	if t := m.targets[id]; t != nil {
		t.touched = true
	}
}

// Touched returns the ids of layers drawn to since the last
// ResetTouched, ascending.
func (m *Manager) Touched() []int {
	var ids []int
	for id, t := range m.targets {
		if t.touched {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// ResetTouched clears every touched mark.
func (m *Manager) ResetTouched() {
	for _, t := range m.targets {
		t.touched = false
	}
}

// Order returns every allocated layer id, ascending.
func (m *Manager) Order() []int {
	ids := make([]int, 0, len(m.targets))
	for id := range m.targets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SetBlend sets the composite blend mode of layer id.
func (m *Manager) SetBlend(id int, mode render.BlendMode) error {
	t, err := m.Target(id)
	if err != nil {
		return err
	}
	t.Blend = mode
	return nil
}

// SetAlpha sets the composite opacity of layer id.
func (m *Manager) SetAlpha(id int, alpha float32) error {
	t, err := m.Target(id)
	if err != nil {
		return err
	}
	t.Alpha = min(max(alpha, 0), 1)
	return nil
}

// Clear resets layer id to transparent, bumps its generation and drops
// its masks.
func (m *Manager) Clear(id int) error {
	if err := m.ClearContent(id); err != nil {
		return err
	}
	m.masks.Invalidate(id)
	return nil
}

// ClearContent resets layer id to transparent and bumps its generation.
// The masks of the layer are kept.
func (m *Manager) ClearContent(id int) error {
	t := m.targets[id]
	if t == nil {
		return nil
	}
	tex, err := m.res.Texture(t.image)
	if err != nil {
		return err
	}
	if err := m.dev.Clear(tex, render.Transparent); err != nil {
		return err
	}
	t.Generation++
	t.touched = true
	return nil
}

// Has reports whether layer id has a target.
func (m *Manager) Has(id int) bool {
	return m.targets[id] != nil
}

// ClearAll releases every target and mask and notifies listeners.
func (m *Manager) ClearAll() {
	for _, t := range m.targets {
		m.release(t)
	}
	m.targets = make(map[int]*Target)
	m.masks.InvalidateAll()
	for _, f := range m.listeners {
		f()
	}
}

// Resize changes the layer size. Every target is released.
func (m *Manager) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: layer size %dx%d", render.ErrConfiguration, width, height)
	}
	if width == m.width && height == m.height {
		return nil
	}
	m.width, m.height = width, height
	m.ClearAll()
	return nil
}

func (m *Manager) release(t *Target) {
	for _, h := range []resource.Handle{t.image, t.resolved, t.scratch} {
		if m.res.Valid(h) {
			_ = m.res.Free(h)
		}
	}
}

// Resolve converts layer id into a single-sample image: samples are
// averaged, the premultiplied content is un-premultiplied, alpha is
// scaled by opacity and policy is applied. The result is premultiplied
// only when policy is multiply-alpha.
//
// Backends with fixed-function resolve blit first and run the resolve
// program on the single-sample copy.
func (m *Manager) Resolve(id int, opacity float32, policy render.AlphaPolicy) (Resolved, error) {
	t, err := m.Target(id)
	if err != nil {
		return Resolved{}, err
	}
	src, err := m.res.Texture(t.image)
	if err != nil {
		return Resolved{}, err
	}

	samples := t.Samples
	if samples > 1 && m.dev.Capabilities().FixedFunctionResolve {
		scratch, err := m.ensure(&t.scratch, fmt.Sprintf("layer%d_blit", id), t, resource.Evictable())
		if err != nil {
			return Resolved{}, err
		}
		if err := m.dev.BlitResolve(src, scratch); err != nil {
			return Resolved{}, fmt.Errorf("blit layer %d: %w", id, err)
		}
		src, samples = scratch, 1
	}

	p, err := m.reg.Utility(shader.UtilityKey{
		Kind:    shader.UtilResolve,
		Samples: samples,
		Policy:  policy,
		Flag:    t.Premultiplied,
	})
	if err != nil {
		return Resolved{}, err
	}
	dst, err := m.ensure(&t.resolved, fmt.Sprintf("layer%d_resolved", id), t)
	if err != nil {
		return Resolved{}, err
	}
	if err := m.runFullscreen(p, src, dst, opacity); err != nil {
		return Resolved{}, fmt.Errorf("resolve layer %d: %w", id, err)
	}
	return Resolved{Handle: t.resolved, Premultiplied: policy == render.PolicyMultiplyAlpha}, nil
}

// ensure returns the single-sample companion texture in *h, creating it
// when missing or evicted.
func (m *Manager) ensure(h *resource.Handle, label string, t *Target, opts ...resource.Option) (render.Texture, error) {
	if !m.res.Valid(*h) {
		nh, err := m.res.CreateTexture(render.TextureDescriptor{
			Label:  label,
			Width:  t.Width,
			Height: t.Height,
		}, opts...)
		if err != nil {
			return nil, err
		}
		*h = nh
	}
	return m.res.Texture(*h)
}

// runFullscreen draws a target-covering quad with p reading src.
func (m *Manager) runFullscreen(p *shader.Program, src, dst render.Texture, opacity float32) error {
	desc := dst.Descriptor()
	vh, err := m.res.UploadVertices(render.Quad(0, 0, float32(desc.Width), float32(desc.Height), render.White), false)
	if err != nil {
		return err
	}
	vb, err := m.res.Vertices(vh)
	if err != nil {
		return err
	}
	b := render.NewBindings()
	b.Uniforms.Transform = render.PixelSpace(desc.Width, desc.Height)
	b.Uniforms.FillAlpha = opacity
	b.SetTexture(render.TexFill, src)
	bound, err := p.Bind(&b)
	if err != nil {
		return err
	}
	return m.dev.Draw(&backend.DrawCall{
		Target:   dst,
		Program:  p,
		Bindings: bound,
		Blend:    render.BlendCopy.State(false),
		Vertices: vb,
	})
}
