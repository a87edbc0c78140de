// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"slices"
)

// Capabilities are the flags a backend reports at startup.
type Capabilities struct {
	// SampleCounts lists the supported multisample counts in ascending
	// order. It always contains 1.
	SampleCounts []int

	// NativePremultiplied is true when the backend writes premultiplied
	// output directly from the fragment stage. When false, premultiplied
	// output is produced by a multiply-alpha pass at resolve time.
	NativePremultiplied bool

	// MaxTextureSize is the largest supported texture dimension.
	MaxTextureSize int

	// FixedFunctionResolve is true when the backend resolves multisample
	// images with a fixed-function blit and applies opacity and alpha
	// policy in a second pass.
	FixedFunctionResolve bool
}

// SupportsSamples reports whether n is a supported sample count.
func (c Capabilities) SupportsSamples(n int) bool {
	return slices.Contains(c.SampleCounts, n)
}

// AlphaModes returns the alpha modes variants can be compiled for.
func (c Capabilities) AlphaModes() []AlphaMode {
	if c.NativePremultiplied {
		return []AlphaMode{AlphaStraight, AlphaPremultiplied}
	}
	return []AlphaMode{AlphaStraight}
}

// Validate checks that the capabilities are self-consistent.
func (c Capabilities) Validate() error {
	if !c.SupportsSamples(1) {
		return fmt.Errorf("%w: sample counts %v do not include 1", ErrConfiguration, c.SampleCounts)
	}
	if !slices.IsSorted(c.SampleCounts) {
		return fmt.Errorf("%w: sample counts %v not ascending", ErrConfiguration, c.SampleCounts)
	}
	if c.MaxTextureSize <= 0 {
		return fmt.Errorf("%w: max texture size %d", ErrConfiguration, c.MaxTextureSize)
	}
	return nil
}

// CheckSamples returns ErrCapabilityMismatch if n is not supported.
func (c Capabilities) CheckSamples(n int) error {
	if !c.SupportsSamples(n) {
		return fmt.Errorf("%w: %d samples not in %v", ErrCapabilityMismatch, n, c.SampleCounts)
	}
	return nil
}
