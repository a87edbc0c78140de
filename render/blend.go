// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BlendMode selects how a draw combines with the existing target content.
type BlendMode uint8

// Blend modes.
const (
	BlendSourceOver BlendMode = iota
	BlendSourceIn
	BlendSourceOut
	BlendDestinationOver
	BlendDestinationIn
	BlendDestinationOut
	BlendSourceAtop
	BlendDestinationAtop
	BlendMultiply
	BlendScreen
	BlendDarken
	BlendLighten
	BlendAllChannelAlphaSourceOver
	BlendAllChannelAlphaDestinationOver

	// BlendCopy replaces the destination. Used by resolve and filter passes.
	BlendCopy

	blendModeCount
)

var blendModeNames = [...]string{
	BlendSourceOver:                     "source-over",
	BlendSourceIn:                       "source-in",
	BlendSourceOut:                      "source-out",
	BlendDestinationOver:                "destination-over",
	BlendDestinationIn:                  "destination-in",
	BlendDestinationOut:                 "destination-out",
	BlendSourceAtop:                     "source-atop",
	BlendDestinationAtop:                "destination-atop",
	BlendMultiply:                       "multiply",
	BlendScreen:                         "screen",
	BlendDarken:                         "darken",
	BlendLighten:                        "lighten",
	BlendAllChannelAlphaSourceOver:      "all-channel-alpha-source-over",
	BlendAllChannelAlphaDestinationOver: "all-channel-alpha-destination-over",
	BlendCopy:                           "copy",
}

// String returns the CSS-like name of the blend mode.
func (m BlendMode) String() string {
	if m < blendModeCount {
		return blendModeNames[m]
	}
	return fmt.Sprintf("BlendMode(%d)", m)
}

// ParseBlendMode returns the blend mode with the given name.
func ParseBlendMode(name string) (BlendMode, error) {
	for m, n := range blendModeNames {
		if n == name {
			return BlendMode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown blend mode %q", ErrConfiguration, name)
}

// Adjust returns the blend adjustment a draw in this mode needs so that a
// transparent source leaves the destination unchanged. Multiply's neutral
// source color is white, Screen's is black.
func (m BlendMode) Adjust() BlendAdjust {
	switch m {
	case BlendMultiply:
		return AdjustInvertAlpha
	case BlendScreen:
		return AdjustMultiplyAlpha
	}
	return AdjustNone
}

// ResolvePolicy returns the post-resolve alpha policy used when a layer in
// this mode is composited into the frame.
func (m BlendMode) ResolvePolicy() AlphaPolicy {
	switch m {
	case BlendMultiply:
		return PolicyInvertColorAlpha
	case BlendScreen:
		return PolicyMultiplyAlpha
	}
	return PolicyNone
}

// BlendFactor is a fixed-function blend factor.
type BlendFactor uint8

// Blend factors.
const (
	FactorZero BlendFactor = iota
	FactorOne
	FactorSrc
	FactorOneMinusSrc
	FactorSrcAlpha
	FactorOneMinusSrcAlpha
	FactorDst
	FactorOneMinusDst
	FactorDstAlpha
	FactorOneMinusDstAlpha
)

// BlendOp combines the weighted source and destination terms.
type BlendOp uint8

// Blend operations.
const (
	OpAdd BlendOp = iota
	OpMin
	OpMax
)

// BlendComponent configures one of the color or alpha equations.
type BlendComponent struct {
	Src BlendFactor
	Dst BlendFactor
	Op  BlendOp
}

// BlendState is the fixed-function blend configuration of a pipeline.
// Disabled means the source replaces the destination.
type BlendState struct {
	Disabled bool
	Color    BlendComponent
	Alpha    BlendComponent
}

func factors(srcC, dstC, srcA, dstA BlendFactor) BlendState {
	return BlendState{
		Color: BlendComponent{Src: srcC, Dst: dstC, Op: OpAdd},
		Alpha: BlendComponent{Src: srcA, Dst: dstA, Op: OpAdd},
	}
}

// State returns the blend configuration for this mode. premultiplied
// selects the table for sources whose color is already scaled by alpha.
func (m BlendMode) State(premultiplied bool) BlendState {
	switch m {
	case BlendSourceOver:
		if premultiplied {
			return factors(FactorOne, FactorOneMinusSrcAlpha, FactorOne, FactorOneMinusSrcAlpha)
		}
		return factors(FactorSrcAlpha, FactorOneMinusSrcAlpha, FactorOne, FactorOneMinusSrcAlpha)
	case BlendDestinationOver:
		return factors(FactorOneMinusDstAlpha, FactorDstAlpha, FactorOneMinusDstAlpha, FactorOne)
	case BlendSourceIn:
		return factors(FactorDstAlpha, FactorZero, FactorDstAlpha, FactorZero)
	case BlendDestinationIn:
		return factors(FactorZero, FactorSrcAlpha, FactorZero, FactorSrcAlpha)
	case BlendSourceOut:
		return factors(FactorZero, FactorOneMinusDstAlpha, FactorZero, FactorOneMinusDstAlpha)
	case BlendDestinationOut:
		return factors(FactorZero, FactorOneMinusSrcAlpha, FactorZero, FactorOneMinusSrcAlpha)
	case BlendSourceAtop:
		return factors(FactorOneMinusDstAlpha, FactorSrcAlpha, FactorOneMinusDstAlpha, FactorSrcAlpha)
	case BlendDestinationAtop:
		return factors(FactorOneMinusDstAlpha, FactorOneMinusSrcAlpha, FactorOneMinusDstAlpha, FactorOneMinusSrcAlpha)
	case BlendMultiply:
		return factors(FactorDst, FactorZero, FactorZero, FactorOne)
	case BlendScreen:
		return factors(FactorOneMinusDst, FactorOne, FactorZero, FactorOne)
	case BlendDarken:
		s := factors(FactorOne, FactorOne, FactorOne, FactorOne)
		s.Color.Op, s.Alpha.Op = OpMin, OpMax
		return s
	case BlendLighten:
		s := factors(FactorOne, FactorOne, FactorOne, FactorOne)
		s.Color.Op, s.Alpha.Op = OpMax, OpMax
		return s
	case BlendAllChannelAlphaSourceOver:
		return factors(FactorOne, FactorOneMinusSrc, FactorOne, FactorOneMinusSrcAlpha)
	case BlendAllChannelAlphaDestinationOver:
		return factors(FactorOneMinusDst, FactorOne, FactorOneMinusDstAlpha, FactorOne)
	}
	return BlendState{Disabled: true}
}

// Apply evaluates the blend equation for one sample.
func (s BlendState) Apply(src, dst Color) Color {
	if s.Disabled {
		return src
	}
	out := Color{
		R: combine(s.Color.Op, src.R*colorFactor(s.Color.Src, src, dst, src.R, dst.R), dst.R*colorFactor(s.Color.Dst, src, dst, src.R, dst.R)),
		G: combine(s.Color.Op, src.G*colorFactor(s.Color.Src, src, dst, src.G, dst.G), dst.G*colorFactor(s.Color.Dst, src, dst, src.G, dst.G)),
		B: combine(s.Color.Op, src.B*colorFactor(s.Color.Src, src, dst, src.B, dst.B), dst.B*colorFactor(s.Color.Dst, src, dst, src.B, dst.B)),
		A: combine(s.Alpha.Op, src.A*colorFactor(s.Alpha.Src, src, dst, src.A, dst.A), dst.A*colorFactor(s.Alpha.Dst, src, dst, src.A, dst.A)),
	}
	return out.Clamp()
}

// colorFactor returns the factor value for one channel; sc and dc are the
// source and destination values of that channel.
func colorFactor(f BlendFactor, src, dst Color, sc, dc float32) float32 {
	switch f {
	case FactorOne:
		return 1
	case FactorSrc:
		return sc
	case FactorOneMinusSrc:
		return 1 - sc
	case FactorSrcAlpha:
		return src.A
	case FactorOneMinusSrcAlpha:
		return 1 - src.A
	case FactorDst:
		return dc
	case FactorOneMinusDst:
		return 1 - dc
	case FactorDstAlpha:
		return dst.A
	case FactorOneMinusDstAlpha:
		return 1 - dst.A
	}
	return 0
}

// combine applies op. Min and max ignore the factors, as on GPUs.
func combine(op BlendOp, s, d float32) float32 {
	switch op {
	case OpMin:
		return min(s, d)
	case OpMax:
		return max(s, d)
	}
	return s + d
}

// GPU converts the state to a WebGPU blend state. It returns nil when
// blending is disabled.
func (s BlendState) GPU() *gputypes.BlendState {
	if s.Disabled {
		return nil
	}
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: s.Color.Src.gpu(),
			DstFactor: s.Color.Dst.gpu(),
			Operation: s.Color.Op.gpu(),
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: s.Alpha.Src.gpu(),
			DstFactor: s.Alpha.Dst.gpu(),
			Operation: s.Alpha.Op.gpu(),
		},
	}
}

func (f BlendFactor) gpu() gputypes.BlendFactor {
	switch f {
	case FactorOne:
		return gputypes.BlendFactorOne
	case FactorSrc:
		return gputypes.BlendFactorSrc
	case FactorOneMinusSrc:
		return gputypes.BlendFactorOneMinusSrc
	case FactorSrcAlpha:
		return gputypes.BlendFactorSrcAlpha
	case FactorOneMinusSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	case FactorDst:
		return gputypes.BlendFactorDst
	case FactorOneMinusDst:
		return gputypes.BlendFactorOneMinusDst
	case FactorDstAlpha:
		return gputypes.BlendFactorDstAlpha
	case FactorOneMinusDstAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	}
	return gputypes.BlendFactorZero
}

func (o BlendOp) gpu() gputypes.BlendOperation {
	switch o {
	case OpMin:
		return gputypes.BlendOperationMin
	case OpMax:
		return gputypes.BlendOperationMax
	}
	return gputypes.BlendOperationAdd
}
