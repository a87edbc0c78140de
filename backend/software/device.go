package software

import (
	"fmt"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/internal/parallel"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

func init() {
	backend.Register(backend.BackendSoftware, func() (backend.Device, error) {
		return New(), nil
	})
}

// Capabilities of the reference backend.
var Capabilities = render.Capabilities{
	SampleCounts:        []int{1, 2, 4, 8},
	NativePremultiplied: true,
	MaxTextureSize:      8192,
}

// Device is the reference backend. Programs are evaluated on the CPU
// through their Go evaluators; multisample resolve is programmable.
type Device struct {
	name     string
	caps     render.Capabilities
	quantize bool
	closed   bool

	// pool shades large targets. It starts with the first such draw.
	pool *parallel.WorkerPool

	textures int
	buffers  int
}

var _ backend.Device = (*Device)(nil)

// parallelPixels is the target size from which draws are shaded on
// several goroutines.
const parallelPixels = 128 * 128

// New returns the reference software device.
func New() *Device {
	return &Device{name: backend.BackendSoftware, caps: Capabilities}
}

// NewProfile returns a software device with other capabilities.
// When quantize is true, 8-bit textures round every write to 1/255
// steps the way 8-bit GPU storage does.
func NewProfile(name string, caps render.Capabilities, quantize bool) *Device {
	return &Device{name: name, caps: caps, quantize: quantize}
}

// Name returns the backend identifier.
func (d *Device) Name() string {
	return d.name
}

// Capabilities returns the device capabilities.
func (d *Device) Capabilities() render.Capabilities {
	return d.caps
}

// CompileProgram accepts every program: the Go evaluators are the
// compiled form.
func (d *Device) CompileProgram(p *shader.Program) (any, error) {
	for _, f := range p.Fragments {
		if f.Eval == nil {
			return nil, fmt.Errorf("software: fragment %s has no evaluator", f.Name)
		}
	}
	return p, nil
}

// CreateTexture allocates a texture cleared to transparent.
func (d *Device) CreateTexture(desc render.TextureDescriptor) (render.Texture, error) {
	if d.closed {
		return nil, backend.ErrClosed
	}
	if err := desc.Validate(d.caps); err != nil {
		return nil, err
	}
	d.textures++
	return newTexture(desc, d.quantize), nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(t render.Texture) {
	st, ok := t.(*Texture)
	if !ok || st.destroyed {
		return
	}
	st.destroyed = true
	st.data = nil
	d.textures--
}

// LiveTextures returns the number of textures not yet destroyed.
func (d *Device) LiveTextures() int {
	return d.textures
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	return d.buffers
}

func (d *Device) texture(t render.Texture) (*Texture, error) {
	if d.closed {
		return nil, backend.ErrClosed
	}
	st, ok := t.(*Texture)
	if !ok || st == nil {
		return nil, fmt.Errorf("%w: %T is not a %s texture", render.ErrConfiguration, t, d.name)
	}
	if st.destroyed {
		return nil, fmt.Errorf("%w: texture %q destroyed", render.ErrStaleHandle, st.desc.Label)
	}
	return st, nil
}

// WriteTexture uploads pixel data to a single-sample texture.
func (d *Device) WriteTexture(t render.Texture, data []byte) error {
	st, err := d.texture(t)
	if err != nil {
		return err
	}
	if st.samples != 1 {
		return fmt.Errorf("%w: cannot write multisample texture %q", render.ErrConfiguration, st.desc.Label)
	}
	return st.write(data)
}

// ReadTexture returns every sample of t.
func (d *Device) ReadTexture(t render.Texture) ([]render.Color, error) {
	st, err := d.texture(t)
	if err != nil {
		return nil, err
	}
	return st.snapshot(), nil
}

// buffer holds decoded vertices.
type buffer struct {
	size     int
	vertices []render.Vertex
	freed    bool
}

func (b *buffer) Len() int { return b.size }

// CreateBuffer decodes and stores vertex data.
func (d *Device) CreateBuffer(data []byte) (backend.Buffer, error) {
	if d.closed {
		return nil, backend.ErrClosed
	}
	if len(data)%render.VertexStride != 0 {
		return nil, fmt.Errorf("%w: vertex data of %d bytes is not a multiple of %d",
			render.ErrConfiguration, len(data), render.VertexStride)
	}
	d.buffers++
	return &buffer{size: len(data), vertices: render.DecodeVertices(data)}, nil
}

// DestroyBuffer releases a vertex buffer.
func (d *Device) DestroyBuffer(b backend.Buffer) {
	if sb, ok := b.(*buffer); ok && !sb.freed {
		sb.freed = true
		sb.vertices = nil
		d.buffers--
	}
}

// Clear sets every sample of t to c.
func (d *Device) Clear(t render.Texture, c render.Color) error {
	st, err := d.texture(t)
	if err != nil {
		return err
	}
	st.Clear(c)
	return nil
}

// Draw rasterizes a triangle list.
func (d *Device) Draw(call *backend.DrawCall) error {
	target, err := d.texture(call.Target)
	if err != nil {
		return err
	}
	p := call.Program
	if p == nil || p.Handle == nil {
		return fmt.Errorf("%w: draw without a compiled program", render.ErrConfiguration)
	}
	if target.samples != p.TargetSamples {
		return fmt.Errorf("%w: program %s renders %d samples, target %q has %d",
			render.ErrCapabilityMismatch, p.Label, p.TargetSamples, target.desc.Label, target.samples)
	}
	vb, ok := call.Vertices.(*buffer)
	if !ok || vb.freed {
		return fmt.Errorf("%w: invalid vertex buffer", render.ErrStaleHandle)
	}

	r := rasterizer{
		target:   target,
		program:  p,
		bindings: &call.Bindings,
		blend:    call.Blend,
	}
	if target.desc.Width*target.desc.Height >= parallelPixels {
		if d.pool == nil {
			d.pool = parallel.NewWorkerPool(0)
		}
		r.pool = d.pool
	}
	for _, slot := range render.TextureSlots {
		bt := call.Bindings.Texture(slot)
		if bt == nil {
			continue
		}
		st, err := d.texture(bt)
		if err != nil {
			return fmt.Errorf("bind %s: %w", slot, err)
		}
		if st == target {
			return fmt.Errorf("%w: %q is both target and %s", render.ErrConfiguration, target.desc.Label, slot)
		}
		if p.TextureKind(slot) == shader.Multisampled && st.samples != p.Samples {
			return fmt.Errorf("%w: %s has %d samples, program %s reads %d",
				render.ErrCapabilityMismatch, slot, st.samples, p.Label, p.Samples)
		}
		r.sampler.textures[slot] = st
	}
	r.drawTriangles(vb.vertices)
	return nil
}

// BlitResolve averages the samples of src into dst.
func (d *Device) BlitResolve(src, dst render.Texture) error {
	s, err := d.texture(src)
	if err != nil {
		return err
	}
	t, err := d.texture(dst)
	if err != nil {
		return err
	}
	if t.samples != 1 || s.desc.Width != t.desc.Width || s.desc.Height != t.desc.Height {
		return fmt.Errorf("%w: blit %q (%dx%d x%d) to %q (%dx%d x%d)", render.ErrConfiguration,
			s.desc.Label, s.desc.Width, s.desc.Height, s.samples,
			t.desc.Label, t.desc.Width, t.desc.Height, t.samples)
	}
	for y := 0; y < s.desc.Height; y++ {
		for x := 0; x < s.desc.Width; x++ {
			t.Store(x, y, 0, s.Pixel(x, y))
		}
	}
	return nil
}

// Close releases the device. Textures stay readable until destroyed.
func (d *Device) Close() error {
	d.closed = true
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}
