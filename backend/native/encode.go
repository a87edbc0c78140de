// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// submitTimeout bounds the fence wait of one submission.
const submitTimeout = 5 * time.Second

// submit records commands with record, submits them and waits for the GPU.
// Must be called with d.mu held.
func (d *Device) submit(label string, record func(encoder hal.CommandEncoder)) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	record(encoder)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, submitTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}

// vertexBuffer is a GPU vertex buffer.
type vertexBuffer struct {
	buf   hal.Buffer
	size  int
	freed bool
}

func (b *vertexBuffer) Len() int { return b.size }

// CreateBuffer uploads vertex data into a new vertex buffer.
func (d *Device) CreateBuffer(data []byte) (backend.Buffer, error) {
	if len(data)%render.VertexStride != 0 {
		return nil, fmt.Errorf("%w: vertex data of %d bytes is not a multiple of %d",
			render.ErrConfiguration, len(data), render.VertexStride)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		d.buffers++
		return &vertexBuffer{}, nil
	}
	buf, err := d.createAndUploadBuffer("compose_vertices", data, gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", render.ErrResourceExhausted, err)
	}
	d.buffers++
	return &vertexBuffer{buf: buf, size: len(data)}, nil
}

// DestroyBuffer releases a vertex buffer.
func (d *Device) DestroyBuffer(b backend.Buffer) {
	vb, ok := b.(*vertexBuffer)
	if !ok || vb.freed {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	vb.freed = true
	d.buffers--
	if vb.buf != nil && !d.closed {
		d.device.DestroyBuffer(vb.buf)
	}
}

func (d *Device) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// Clear sets every sample of t to c.
func (d *Device) Clear(t render.Texture, c render.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	nt, err := d.texture(t)
	if err != nil {
		return err
	}
	return d.submit("compose_clear", func(encoder hal.CommandEncoder) {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "compose_clear_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       nt.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: clearValue(c),
			}},
		})
		rp.End()
	})
}

func clearValue(c render.Color) gputypes.Color {
	return gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
}

// Draw encodes one render pass that draws call.Vertices into call.Target.
func (d *Device) Draw(call *backend.DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, err := d.texture(call.Target)
	if err != nil {
		return err
	}
	p := call.Program
	if p == nil {
		return fmt.Errorf("%w: draw without a program", render.ErrConfiguration)
	}
	c, ok := p.Handle.(*compiled)
	if !ok {
		return fmt.Errorf("%w: program %s was not compiled by this device", render.ErrConfiguration, p.Label)
	}
	if samples := max(target.desc.SampleCount, 1); samples != p.TargetSamples {
		return fmt.Errorf("%w: program %s renders %d samples, target %q has %d",
			render.ErrCapabilityMismatch, p.Label, p.TargetSamples, target.desc.Label, samples)
	}
	vb, ok := call.Vertices.(*vertexBuffer)
	if !ok || vb.freed {
		return fmt.Errorf("%w: invalid vertex buffer", render.ErrStaleHandle)
	}
	if vb.size == 0 {
		return nil
	}

	views, err := d.boundViews(p, target, &call.Bindings)
	if err != nil {
		return err
	}
	pipeline, err := d.pipelines.Get(pipelineKey{
		program: c,
		blend:   call.Blend,
		format:  target.desc.Format.GPU(),
		samples: p.TargetSamples,
	})
	if err != nil {
		return err
	}

	uniformData := encodeUniforms(call.Bindings.Uniforms)
	uniformBuf, err := d.createAndUploadBuffer("compose_uniforms", uniformData,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer d.device.DestroyBuffer(uniformBuf)

	entries := []gputypes.BindGroupEntry{
		{Binding: shader.UniformBinding, Resource: gputypes.BufferBinding{
			Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: uint64(len(uniformData)),
		}},
	}
	if p.UsesSampler() {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  shader.SamplerBinding,
			Resource: gputypes.SamplerBinding{Sampler: d.sampler.NativeHandle()},
		})
	}
	for _, slot := range render.TextureSlots {
		binding, ok := p.TextureBinding(slot)
		if !ok {
			continue
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  binding,
			Resource: gputypes.TextureViewBinding{TextureView: views[slot].NativeHandle()},
		})
	}
	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.Label + "_bind",
		Layout:  c.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bindGroup)

	count := uint32(backend.VertexCount(vb))
	return d.submit("compose_draw", func(encoder hal.CommandEncoder) {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "compose_draw_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    target.view,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, bindGroup, nil)
		rp.SetVertexBuffer(0, vb.buf, 0)
		rp.Draw(count, 1, 0, 0)
		rp.End()
	})
}

// boundViews validates the textures bound to the slots p consumes.
func (d *Device) boundViews(p *shader.Program, target *Texture, b *render.Bindings) ([render.TextureSlotCount]hal.TextureView, error) {
	var views [render.TextureSlotCount]hal.TextureView
	for _, slot := range render.TextureSlots {
		if !p.ConsumesTexture(slot) {
			continue
		}
		bt := b.Texture(slot)
		if bt == nil {
			return views, fmt.Errorf("%w: program %s needs a %s texture", render.ErrConfiguration, p.Label, slot)
		}
		nt, err := d.texture(bt)
		if err != nil {
			return views, fmt.Errorf("bind %s: %w", slot, err)
		}
		if nt == target {
			return views, fmt.Errorf("%w: %q is both target and %s", render.ErrConfiguration, target.desc.Label, slot)
		}
		if p.TextureKind(slot) == shader.Multisampled && max(nt.desc.SampleCount, 1) != p.Samples {
			return views, fmt.Errorf("%w: %s has %d samples, program %s reads %d",
				render.ErrCapabilityMismatch, slot, nt.desc.SampleCount, p.Label, p.Samples)
		}
		views[slot] = nt.view
	}
	return views, nil
}

// BlitResolve averages the samples of src into dst with the fixed-function
// resolve of an empty render pass.
func (d *Device) BlitResolve(src, dst render.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.texture(src)
	if err != nil {
		return err
	}
	t, err := d.texture(dst)
	if err != nil {
		return err
	}
	if max(t.desc.SampleCount, 1) != 1 || max(s.desc.SampleCount, 1) == 1 ||
		s.desc.Width != t.desc.Width || s.desc.Height != t.desc.Height || s.desc.Format != t.desc.Format {
		return fmt.Errorf("%w: blit %q (%dx%d x%d) to %q (%dx%d x%d)", render.ErrConfiguration,
			s.desc.Label, s.desc.Width, s.desc.Height, s.desc.SampleCount,
			t.desc.Label, t.desc.Width, t.desc.Height, t.desc.SampleCount)
	}
	return d.submit("compose_blit_resolve", func(encoder hal.CommandEncoder) {
		rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "compose_resolve_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:          s.view,
				ResolveTarget: t.view,
				LoadOp:        gputypes.LoadOpLoad,
				StoreOp:       gputypes.StoreOpStore,
			}},
		})
		rp.End()
	})
}

// encodeUniforms packs the uniform block little-endian.
func encodeUniforms(u render.Uniforms) []byte {
	floats := u.Floats()
	out := make([]byte, 0, len(floats)*4)
	for _, f := range floats {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}
