package backend

import (
	"errors"

	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("backend: device closed")
)

// Buffer is an immutable vertex buffer holding render.Vertex data in the
// 20-byte interleaved layout.
type Buffer interface {
	// Len returns the buffer size in bytes.
	Len() int
}

// VertexCount returns the number of vertices held by b.
func VertexCount(b Buffer) int {
	if b == nil {
		return 0
	}
	return b.Len() / render.VertexStride
}

// DrawCall is one draw of a triangle list into a target.
type DrawCall struct {
	// Target receives the draw. Its sample count must equal the program's
	// TargetSamples.
	Target render.Texture

	// Program is a registry program; Program.Handle holds the device's
	// compiled form.
	Program *shader.Program

	// Bindings are the uniforms and textures the program consumes, as
	// returned by Program.Bind.
	Bindings render.Bindings

	// Blend is the fixed-function blend state.
	Blend render.BlendState

	// Vertices is the triangle list.
	Vertices Buffer
}

// Device is the interface every composition backend implements.
// It abstracts texture storage, program compilation and draw submission;
// everything above it is backend independent.
//
// Devices are not safe for concurrent use. The composition driver is the
// only caller.
type Device interface {
	shader.Compiler

	// Name returns the backend identifier (e.g., "software", "native").
	Name() string

	// Capabilities returns the fixed capability set of the device.
	Capabilities() render.Capabilities

	// CreateTexture allocates a texture cleared to transparent.
	CreateTexture(desc render.TextureDescriptor) (render.Texture, error)

	// DestroyTexture releases a texture. Destroying twice is a no-op.
	DestroyTexture(t render.Texture)

	// WriteTexture uploads tightly packed rows in the texture's format:
	// four bytes per texel for RGBA8, one for R8 and a little-endian
	// float32 for R32F. Only single-sample textures can be written.
	WriteTexture(t render.Texture, data []byte) error

	// ReadTexture returns every sample of t, ordered by row, then
	// column, then sample index.
	ReadTexture(t render.Texture) ([]render.Color, error)

	// CreateBuffer uploads vertex data.
	CreateBuffer(data []byte) (Buffer, error)

	// DestroyBuffer releases a vertex buffer.
	DestroyBuffer(b Buffer)

	// Clear sets every sample of t to c.
	Clear(t render.Texture, c render.Color) error

	// Draw rasterizes a triangle list.
	Draw(call *DrawCall) error

	// BlitResolve averages the samples of the multisample texture src into
	// the single-sample texture dst using the fixed-function resolve path.
	BlitResolve(src, dst render.Texture) error

	// Close releases all device resources.
	// The device should not be used after Close is called.
	Close() error
}
