package software

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/compose/render"
)

// Texture is a CPU texture. Every sample is stored as a float color;
// single-channel formats keep their value in R with A = 1.
type Texture struct {
	desc    render.TextureDescriptor
	samples int
	data    []render.Color // (y*width + x)*samples + sample

	// quantize rounds 8-bit formats to 1/255 steps on every write.
	quantize  bool
	destroyed bool
}

func newTexture(desc render.TextureDescriptor, quantize bool) *Texture {
	samples := max(desc.SampleCount, 1)
	t := &Texture{
		desc:     desc,
		samples:  samples,
		data:     make([]render.Color, desc.Width*desc.Height*samples),
		quantize: quantize && desc.Format != render.FormatR32F,
	}
	t.Clear(render.Transparent)
	return t
}

// Descriptor returns the texture's descriptor.
func (t *Texture) Descriptor() render.TextureDescriptor {
	return t.desc
}

// Width returns the width of the texture.
func (t *Texture) Width() int {
	return t.desc.Width
}

// Height returns the height of the texture.
func (t *Texture) Height() int {
	return t.desc.Height
}

// Samples returns the number of samples per pixel.
func (t *Texture) Samples() int {
	return t.samples
}

// normalize maps a color to what the format can hold.
func (t *Texture) normalize(c render.Color) render.Color {
	if t.desc.Format != render.FormatRGBA8 {
		c = render.Color{R: c.R, A: 1}
	}
	if t.desc.Format != render.FormatR32F {
		c = c.Clamp()
	}
	if t.quantize {
		c = c.Quantize()
	}
	return c
}

// Load returns one sample. Coordinates are clamped to the texture.
func (t *Texture) Load(x, y, sample int) render.Color {
	x = min(max(x, 0), t.desc.Width-1)
	y = min(max(y, 0), t.desc.Height-1)
	sample = min(max(sample, 0), t.samples-1)
	return t.data[(y*t.desc.Width+x)*t.samples+sample]
}

// Store writes one sample. Out of range writes are ignored.
func (t *Texture) Store(x, y, sample int, c render.Color) {
	if x < 0 || x >= t.desc.Width || y < 0 || y >= t.desc.Height || sample < 0 || sample >= t.samples {
		return
	}
	t.data[(y*t.desc.Width+x)*t.samples+sample] = t.normalize(c)
}

// Pixel returns the mean of all samples at (x, y).
func (t *Texture) Pixel(x, y int) render.Color {
	if t.samples == 1 {
		return t.Load(x, y, 0)
	}
	var sum render.Color
	for s := 0; s < t.samples; s++ {
		sum = sum.Add(t.Load(x, y, s))
	}
	return sum.Scale(1 / float32(t.samples))
}

// Sample performs a bilinear lookup at normalized coordinates (u, v) with
// clamp-to-edge addressing. Texel centers lie at (i + 0.5) / size.
// Multisample textures are read through their first sample.
func (t *Texture) Sample(u, v float32) render.Color {
	fx := u*float32(t.desc.Width) - 0.5
	fy := v*float32(t.desc.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	c00 := t.Load(x0, y0, 0)
	c10 := t.Load(x0+1, y0, 0)
	c01 := t.Load(x0, y0+1, 0)
	c11 := t.Load(x0+1, y0+1, 0)
	top := c00.Lerp(c10, tx)
	bottom := c01.Lerp(c11, tx)
	return top.Lerp(bottom, ty)
}

// Clear sets every sample to c.
func (t *Texture) Clear(c render.Color) {
	c = t.normalize(c)
	for i := range t.data {
		t.data[i] = c
	}
}

// write decodes tightly packed rows in the texture's format.
func (t *Texture) write(data []byte) error {
	bpp := t.desc.Format.BytesPerPixel()
	want := t.desc.Width * t.desc.Height * bpp
	if len(data) != want {
		return fmt.Errorf("%w: texture %q expects %d bytes, got %d",
			render.ErrConfiguration, t.desc.Label, want, len(data))
	}
	for i := 0; i < t.desc.Width*t.desc.Height; i++ {
		p := data[i*bpp:]
		var c render.Color
		switch t.desc.Format {
		case render.FormatRGBA8:
			c = render.ColorFromBytes([4]uint8{p[0], p[1], p[2], p[3]})
		case render.FormatR8:
			c = render.Color{R: float32(p[0]) / 255, A: 1}
		case render.FormatR32F:
			c = render.Color{R: math.Float32frombits(binary.LittleEndian.Uint32(p)), A: 1}
		}
		t.data[i] = t.normalize(c)
	}
	return nil
}

// snapshot returns a copy of all samples.
func (t *Texture) snapshot() []render.Color {
	out := make([]render.Color, len(t.data))
	copy(out, t.data)
	return out
}
