// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader builds every shader program the composition backend can
// use, once, at startup.
//
// Programs are composed from a small base set of fragments. Each fragment
// carries its WGSL source, the semantic slots it reads and a Go evaluator
// that CPU backends run per pixel, so every backend shades from the same
// definition. A draw variant is the fragment chain
//
//	fill -> encode (blend adjustment or premultiply) -> erase mask -> clip mask
//
// selected by a [render.VariantKey]. Utility programs (mask coverage,
// multisample resolve, blur, alpha adjust, mask, displacement, reduce)
// are composed the same way.
//
// A [Registry] enumerates every key the backend capabilities make
// reachable, generates the program for it and hands it to the backend's
// [Compiler]. Any failure aborts construction with
// [render.ErrConfiguration]; after construction the registry is
// immutable and safe for concurrent lookups without locking.
package shader
