// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements the composition device on gogpu/wgpu HAL.
//
// Generated WGSL programs are compiled into shader modules at registry
// construction; render pipelines are specialized lazily per blend state,
// target format and sample count and kept in an LRU cache. Every draw is
// encoded into its own render pass and submitted immediately.
//
// Building with the nogpu tag leaves the package empty, so importing it
// registers no backend.
package native
