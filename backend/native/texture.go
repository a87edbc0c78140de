// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/compose/render"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the WebGPU alignment of BytesPerRow in
// texture-to-buffer copies.
const copyPitchAlignment = 256

// Texture is a HAL texture with its default view.
type Texture struct {
	desc      render.TextureDescriptor
	tex       hal.Texture
	view      hal.TextureView
	destroyed bool
}

// Descriptor returns the creation descriptor.
func (t *Texture) Descriptor() render.TextureDescriptor {
	return t.desc
}

func (t *Texture) extent() hal.Extent3D {
	return hal.Extent3D{Width: uint32(t.desc.Width), Height: uint32(t.desc.Height), DepthOrArrayLayers: 1}
}

// textureUsage returns the usage flags of a texture. Multisample
// textures are never copied.
func textureUsage(samples int) gputypes.TextureUsage {
	usage := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	if samples == 1 {
		usage |= gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	}
	return usage
}

// CreateTexture allocates a texture and its view. Contents are
// transparent: the texture is cleared before it is returned.
func (d *Device) CreateTexture(desc render.TextureDescriptor) (render.Texture, error) {
	if err := desc.Validate(Capabilities); err != nil {
		return nil, err
	}
	samples := max(desc.SampleCount, 1)

	d.mu.Lock()
	if err := d.checkOpen(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format.GPU(),
		Usage:         textureUsage(samples),
	})
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: create texture %q: %w", render.ErrResourceExhausted, desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        desc.Format.GPU(),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		d.mu.Unlock()
		return nil, fmt.Errorf("create texture view %q: %w", desc.Label, err)
	}
	d.textures++
	d.mu.Unlock()

	t := &Texture{desc: desc, tex: tex, view: view}
	if err := d.Clear(t, render.Transparent); err != nil {
		d.DestroyTexture(t)
		return nil, err
	}
	return t, nil
}

// DestroyTexture releases a texture and its view.
func (d *Device) DestroyTexture(t render.Texture) {
	nt, ok := t.(*Texture)
	if !ok || nt.destroyed {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nt.destroyed = true
	d.textures--
	if d.closed {
		return
	}
	d.device.DestroyTextureView(nt.view)
	d.device.DestroyTexture(nt.tex)
}

func (d *Device) texture(t render.Texture) (*Texture, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	nt, ok := t.(*Texture)
	if !ok || nt == nil {
		return nil, fmt.Errorf("%w: %T is not a native texture", render.ErrConfiguration, t)
	}
	if nt.destroyed {
		return nil, fmt.Errorf("%w: texture %q destroyed", render.ErrStaleHandle, nt.desc.Label)
	}
	return nt, nil
}

// WriteTexture uploads tightly packed pixel data to a single-sample texture.
func (d *Device) WriteTexture(t render.Texture, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	nt, err := d.texture(t)
	if err != nil {
		return err
	}
	desc := nt.desc
	if max(desc.SampleCount, 1) != 1 {
		return fmt.Errorf("%w: cannot write multisample texture %q", render.ErrConfiguration, desc.Label)
	}
	bpp := desc.Format.BytesPerPixel()
	if want := desc.Width * desc.Height * bpp; len(data) != want {
		return fmt.Errorf("%w: texture %q needs %d bytes, got %d", render.ErrConfiguration, desc.Label, want, len(data))
	}
	size := nt.extent()
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: nt.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(desc.Width * bpp), RowsPerImage: uint32(desc.Height)},
		&size,
	)
	return nil
}

// ReadTexture copies a single-sample texture back to the CPU. Reading a
// multisample texture requires resolving it first.
func (d *Device) ReadTexture(t render.Texture) ([]render.Color, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nt, err := d.texture(t)
	if err != nil {
		return nil, err
	}
	desc := nt.desc
	if max(desc.SampleCount, 1) != 1 {
		return nil, fmt.Errorf("%w: texture %q has %d samples; resolve before reading",
			render.ErrCapabilityMismatch, desc.Label, desc.SampleCount)
	}

	bpp := desc.Format.BytesPerPixel()
	pitch := alignedPitch(desc.Width * bpp)
	stagingSize := uint64(pitch) * uint64(desc.Height)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label + "_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	err = d.submit("compose_readback", func(encoder hal.CommandEncoder) {
		// After rendering the texture is in attachment layout; copies need
		// transfer-source layout.
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: nt.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		encoder.CopyTextureToBuffer(nt.tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(pitch), RowsPerImage: uint32(desc.Height)},
			TextureBase:  hal.ImageCopyTexture{Texture: nt.tex, MipLevel: 0},
			Size:         nt.extent(),
		}})
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: nt.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		}})
	})
	if err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return decodeRows(desc.Format, readback, desc.Width, desc.Height, pitch), nil
}

// alignedPitch rounds a row size up to copyPitchAlignment.
func alignedPitch(bytesPerRow int) int {
	return (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// decodeRows converts padded readback rows to colors. Single-channel
// formats read back as (r, 0, 0, 1).
func decodeRows(f render.Format, data []byte, width, height, pitch int) []render.Color {
	bpp := f.BytesPerPixel()
	out := make([]render.Color, 0, width*height)
	for y := 0; y < height; y++ {
		row := data[y*pitch:]
		for x := 0; x < width; x++ {
			px := row[x*bpp:]
			switch f {
			case render.FormatR8:
				out = append(out, render.Color{R: float32(px[0]) / 255, A: 1})
			case render.FormatR32F:
				v := math.Float32frombits(binary.LittleEndian.Uint32(px))
				out = append(out, render.Color{R: v, A: 1})
			default:
				out = append(out, render.ColorFromBytes([4]uint8(px[:4])))
			}
		}
	}
	return out
}
