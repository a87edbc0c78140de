// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the backend-independent data model of the
// composition backend.
//
// Everything that crosses the boundary between the composition driver and a
// GPU backend lives here: the fixed 20-byte vertex layout, colors and
// matrices, blend modes with their fixed-function factor tables, shader
// variant keys, semantic binding slots, backend capability flags and the
// error taxonomy shared by every component.
//
// # Vertex layout
//
// Every backend binds exactly this layout:
//
//	offset  0  position            2 x float32
//	offset  8  texture coordinate  2 x float32
//	offset 16  color               4 x uint8, unsigned normalized
//
// # Semantic slots
//
// Shader programs never expose backend binding numbers to callers. Uniform
// values and textures are addressed through [UniformSlot] and [TextureSlot];
// the shader registry maps a slot to whatever binding the chosen variant
// uses, or drops the write if the variant does not consume that slot.
//
// # Errors
//
// Four failure categories are distinguished, see [ErrConfiguration],
// [ErrResourceExhausted], [ErrStaleHandle] and [ErrCapabilityMismatch].
// Components wrap them with context and callers test them with errors.Is.
package render
