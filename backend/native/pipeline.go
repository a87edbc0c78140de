// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	lru "github.com/hashicorp/golang-lru/v2"
)

// pipelineCacheSize bounds the number of specialized render pipelines.
// A frame typically touches a few dozen blend/variant combinations.
const pipelineCacheSize = 128

// compiled is the native form of a shader program: the shader module and
// the layouts every pipeline specialized from it shares.
type compiled struct {
	program    *shader.Program
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
}

// CompileProgram creates the shader module and layouts of p.
func (d *Device) CompileProgram(p *shader.Program) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.Label,
		Source: hal.ShaderSource{WGSL: p.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", p.Label, err)
	}

	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.Label + "_bind_layout",
		Entries: layoutEntries(p),
	})
	if err != nil {
		d.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("create %s bind layout: %w", p.Label, err)
	}

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(bindLayout)
		d.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("create %s pipeline layout: %w", p.Label, err)
	}
	c := &compiled{program: p, module: module, bindLayout: bindLayout, pipeLayout: pipeLayout}
	d.programs = append(d.programs, c)
	return c, nil
}

// layoutEntries mirrors the resource declarations of the generated WGSL:
// the uniform block at binding 0, the linear sampler at binding 1 when a
// texture is filtered, and one entry per consumed texture slot.
func layoutEntries(p *shader.Program) []gputypes.BindGroupLayoutEntry {
	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    shader.UniformBinding,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}}
	if p.UsesSampler() {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    shader.SamplerBinding,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		})
	}
	for _, slot := range render.TextureSlots {
		binding, ok := p.TextureBinding(slot)
		if !ok {
			continue
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageFragment,
			Texture:    textureLayout(p.TextureKind(slot), p.Samples),
		})
	}
	return entries
}

// textureLayout returns the binding layout of one texture slot.
// Multisampled and lookup textures are read with textureLoad only, so
// they are declared unfilterable; R32F tables are not filterable anyway.
func textureLayout(kind shader.TextureKind, samples int) *gputypes.TextureBindingLayout {
	switch kind {
	case shader.Multisampled:
		return &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
			Multisampled:  samples > 1,
		}
	case shader.Lookup:
		return &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	}
	return &gputypes.TextureBindingLayout{
		SampleType:    gputypes.TextureSampleTypeFloat,
		ViewDimension: gputypes.TextureViewDimension2D,
	}
}

func (d *Device) destroyCompiled(c *compiled) {
	d.device.DestroyPipelineLayout(c.pipeLayout)
	d.device.DestroyBindGroupLayout(c.bindLayout)
	d.device.DestroyShaderModule(c.module)
}

// pipelineKey identifies one specialization of a compiled program.
type pipelineKey struct {
	program *compiled
	blend   render.BlendState
	format  gputypes.TextureFormat
	samples int
}

// pipelineCache holds specialized render pipelines. Evicted pipelines are
// destroyed; programs stay compiled until the device closes.
type pipelineCache struct {
	device hal.Device
	mu     sync.Mutex
	cache  *lru.Cache[pipelineKey, hal.RenderPipeline]

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newPipelineCache(device hal.Device, size int) *pipelineCache {
	c := &pipelineCache{device: device}
	c.cache, _ = lru.NewWithEvict[pipelineKey, hal.RenderPipeline](size, c.onEvict)
	return c
}

func (c *pipelineCache) onEvict(_ pipelineKey, p hal.RenderPipeline) {
	c.device.DestroyRenderPipeline(p)
}

// Get returns the pipeline for key, creating it on a miss.
func (c *pipelineCache) Get(key pipelineKey) (hal.RenderPipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)

	p, err := c.device.CreateRenderPipeline(pipelineDescriptor(key))
	if err != nil {
		return nil, fmt.Errorf("create pipeline %s: %w", key.program.program.Label, err)
	}
	c.cache.Add(key, p)
	return p, nil
}

// Stats returns the hit and miss counts.
func (c *pipelineCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge destroys every cached pipeline.
func (c *pipelineCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

func pipelineDescriptor(key pipelineKey) *hal.RenderPipelineDescriptor {
	c := key.program
	return &hal.RenderPipelineDescriptor{
		Label:  c.program.Label + "_pipeline",
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     c.module,
			EntryPoint: "vs_main",
			Buffers:    []gputypes.VertexBufferLayout{render.VertexBufferLayout()},
		},
		Fragment: &hal.FragmentState{
			Module:     c.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    key.format,
				Blend:     key.blend.GPU(),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: uint32(key.samples),
			Mask:  0xFFFFFFFF,
		},
	}
}
