// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format is the pixel format of a texture.
type Format uint8

// Texture formats.
const (
	// FormatRGBA8 is 8-bit RGBA, used for layers, fills and ramps.
	FormatRGBA8 Format = iota
	// FormatR8 is a single 8-bit channel, used for coverage masks.
	FormatR8
	// FormatR32F is a single float channel, used for blur lookup tables.
	FormatR32F
)

// BytesPerPixel returns the storage size of one sample.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8:
		return 1
	case FormatR32F, FormatRGBA8:
		return 4
	}
	return 4
}

// GPU returns the WebGPU texture format.
func (f Format) GPU() gputypes.TextureFormat {
	switch f {
	case FormatR8:
		return gputypes.TextureFormatR8Unorm
	case FormatR32F:
		return gputypes.TextureFormatR32Float
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func (f Format) String() string {
	switch f {
	case FormatR8:
		return "r8"
	case FormatR32F:
		return "r32f"
	}
	return "rgba8"
}

// TextureDescriptor describes a texture to allocate.
// A 1-D texture is a texture with Height 1.
type TextureDescriptor struct {
	Label         string
	Width         int
	Height        int
	SampleCount   int
	Format        Format
	Premultiplied bool
}

// SizeBytes returns the storage the texture needs, all samples included.
func (d TextureDescriptor) SizeBytes() uint64 {
	samples := max(d.SampleCount, 1)
	//nolint:gosec // G115: dimensions validated against MaxTextureSize
	return uint64(d.Width) * uint64(d.Height) * uint64(samples) * uint64(d.Format.BytesPerPixel())
}

// Validate checks the descriptor against backend capabilities.
func (d TextureDescriptor) Validate(caps Capabilities) error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: texture %q has size %dx%d", ErrConfiguration, d.Label, d.Width, d.Height)
	}
	if d.Width > caps.MaxTextureSize || d.Height > caps.MaxTextureSize {
		return fmt.Errorf("%w: texture %q size %dx%d exceeds %d",
			ErrCapabilityMismatch, d.Label, d.Width, d.Height, caps.MaxTextureSize)
	}
	return caps.CheckSamples(max(d.SampleCount, 1))
}
