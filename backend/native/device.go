// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func init() {
	backend.Register(backend.BackendNative, func() (backend.Device, error) {
		return New()
	})
}

// Capabilities of the native backend. WebGPU guarantees sample counts
// 1 and 4; the resolve program reads samples with textureLoad.
var Capabilities = render.Capabilities{
	SampleCounts:        []int{1, 4},
	NativePremultiplied: true,
	MaxTextureSize:      8192,
}

// Device is a composition device backed by a HAL device and queue.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool // shared device: not destroyed on Close

	sampler   hal.Sampler
	pipelines *pipelineCache
	programs  []*compiled
	logger    *slog.Logger

	textures int
	buffers  int
	closed   bool
}

var _ backend.Device = (*Device)(nil)

// New opens the first discrete or integrated Vulkan adapter.
func New() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", backend.ErrBackendNotAvailable)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	d, err := newDevice(open.Device, open.Queue, false)
	if err != nil {
		open.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.logger.Info("native: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// NewWithProvider uses the device of an external provider, such as a
// gogpu window. The provider must also expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue. The shared device is not destroyed
// by Close.
func NewWithProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", render.ErrConfiguration)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", render.ErrConfiguration)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", render.ErrConfiguration)
	}
	return newDevice(device, queue, true)
}

func newDevice(device hal.Device, queue hal.Queue, external bool) (*Device, error) {
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "compose_linear_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	d := &Device{
		device:   device,
		queue:    queue,
		external: external,
		sampler:  sampler,
		logger:   slog.New(nopHandler{}),
	}
	d.pipelines = newPipelineCache(device, pipelineCacheSize)
	return d, nil
}

// SetLogger sets the logger used for device events. nil silences it.
func (d *Device) SetLogger(l *slog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.logger = l
}

// Name returns the backend identifier.
func (d *Device) Name() string {
	return backend.BackendNative
}

// Capabilities returns the device capabilities.
func (d *Device) Capabilities() render.Capabilities {
	return Capabilities
}

// PipelineStats returns the pipeline cache hit and miss counts.
func (d *Device) PipelineStats() (hits, misses uint64) {
	return d.pipelines.Stats()
}

// LiveTextures returns the number of textures not yet destroyed.
func (d *Device) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.textures
}

// Close releases every pipeline and, unless the device is shared, the
// device itself. Textures must be destroyed by their owner first.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.textures > 0 || d.buffers > 0 {
		d.logger.Warn("native: closing with live resources", "textures", d.textures, "buffers", d.buffers)
	}
	d.pipelines.Purge()
	for _, c := range d.programs {
		d.destroyCompiled(c)
	}
	d.programs = nil
	d.device.DestroySampler(d.sampler)
	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device, d.queue, d.instance = nil, nil, nil
	return nil
}

func (d *Device) checkOpen() error {
	if d.closed {
		return backend.ErrClosed
	}
	return nil
}
