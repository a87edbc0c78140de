package filter

import (
	"math"
	"testing"

	"github.com/gogpu/compose/backend/software"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

type fixture struct {
	dev *software.Device
	res *resource.Manager
	p   *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev := software.New()
	reg, err := shader.NewRegistry(dev.Capabilities(), dev)
	if err != nil {
		t.Fatal(err)
	}
	res := resource.New(dev, resource.Config{})
	return &fixture{dev: dev, res: res, p: New(dev, reg, res, nil)}
}

// texture uploads w x h pixels, row by row.
func (f *fixture) texture(t *testing.T, w, h int, premultiplied bool, px []render.Color) resource.Handle {
	t.Helper()
	hd, err := f.res.CreateTexture(render.TextureDescriptor{Label: "src", Width: w, Height: h, Premultiplied: premultiplied})
	if err != nil {
		t.Fatal(err)
	}
	data := make([]byte, 0, 4*len(px))
	for _, c := range px {
		b := c.Bytes()
		data = append(data, b[:]...)
	}
	tex, _ := f.res.Texture(hd)
	if err := f.dev.WriteTexture(tex, data); err != nil {
		t.Fatal(err)
	}
	return hd
}

func (f *fixture) read(t *testing.T, h resource.Handle) []render.Color {
	t.Helper()
	tex, err := f.res.Texture(h)
	if err != nil {
		t.Fatal(err)
	}
	px, err := f.dev.ReadTexture(tex)
	if err != nil {
		t.Fatal(err)
	}
	return px
}

func fill(n int, c render.Color) []render.Color {
	px := make([]render.Color, n)
	for i := range px {
		px[i] = c
	}
	return px
}

func TestKernelForRadius(t *testing.T) {
	tests := []struct {
		radius float32
		taps   int
	}{
		{0.5, 0},
		{1, 0},
		{2, 9},
		{4, 9},
		{5, 29},
		{14, 29},
		{15, 61},
		{30, 61},
		{40, 81},
	}
	for _, tt := range tests {
		k := KernelForRadius(tt.radius)
		if k.Taps != tt.taps {
			t.Errorf("KernelForRadius(%v).Taps = %d, want %d", tt.radius, k.Taps, tt.taps)
		}
		if tt.taps == 0 && !k.IsZero() {
			t.Errorf("KernelForRadius(%v) is not the zero kernel", tt.radius)
		}
	}
}

func TestGaussianKernelCollapse(t *testing.T) {
	tests := []struct {
		taps, fetches int
	}{
		{9, 3},
		{29, 8},
		{61, 16},
	}
	for _, tt := range tests {
		k := GaussianKernel(tt.taps, 0.125)
		if k.Len() != tt.fetches {
			t.Errorf("taps %d: %d fetches, want %d", tt.taps, k.Len(), tt.fetches)
		}
		if math.Abs(float64(k.Sum()-1)) > 1e-5 {
			t.Errorf("taps %d: weights sum to %v", tt.taps, k.Sum())
		}
		if k.Offsets[0] != 0 {
			t.Errorf("taps %d: center offset %v", tt.taps, k.Offsets[0])
		}
		for i := 1; i < k.Len(); i++ {
			// A merged pair sits between its two taps.
			lo := float32(2*i - 1)
			if k.Offsets[i] < lo || k.Offsets[i] > lo+1 {
				t.Errorf("taps %d: offset %d = %v outside [%v,%v]", tt.taps, i, k.Offsets[i], lo, lo+1)
			}
		}
	}
	if k := GaussianKernel(1, 0.5); k.Len() != 1 || k.Weights[0] != 1 {
		t.Errorf("GaussianKernel(1) = %+v, want identity", k)
	}
}

func TestKernelCached(t *testing.T) {
	a := KernelForRadius(6)
	b := KernelForRadius(6)
	if &a.Weights[0] != &b.Weights[0] {
		t.Error("kernel for the same radius rebuilt")
	}
}

func TestSingleTapBlurIsIdentity(t *testing.T) {
	f := newFixture(t)
	px := []render.Color{
		render.Red, render.Green, render.Blue, render.White,
		render.Black, render.Red, render.Green, render.Blue,
		render.White, render.Black, render.Red, render.Green,
		render.Blue, render.White, render.Black, render.Transparent,
	}
	src := f.texture(t, 4, 4, false, px)
	out, err := f.p.Apply(src, Blur{Kernel: IdentityKernel()})
	if err != nil {
		t.Fatal(err)
	}
	if out == src {
		t.Fatal("blur returned its source")
	}
	for i, got := range f.read(t, out) {
		if !got.ApproxEqual(px[i], 1e-4) {
			t.Errorf("pixel %d = %v, want %v", i, got, px[i])
		}
	}
}

func TestBlurKeepsUniformColor(t *testing.T) {
	f := newFixture(t)
	c := render.Color{R: 0.2, G: 0.4, B: 0.6, A: 1}.Quantize()
	src := f.texture(t, 8, 8, false, fill(64, c))
	out, err := f.p.Apply(src, NewBlur(4))
	if err != nil {
		t.Fatal(err)
	}
	for i, got := range f.read(t, out) {
		if !got.ApproxEqual(c, 1e-4) {
			t.Fatalf("pixel %d = %v, want %v", i, got, c)
		}
	}
}

func TestBlurSpreadsEdge(t *testing.T) {
	f := newFixture(t)
	px := make([]render.Color, 16)
	for i := range px {
		if i < 8 {
			px[i] = render.White
		} else {
			px[i] = render.Black
		}
	}
	src := f.texture(t, 16, 1, false, px)
	out, err := f.p.Apply(src, NewBlur(4))
	if err != nil {
		t.Fatal(err)
	}
	got := f.read(t, out)
	if !(got[7].R < 1 && got[8].R > 0) {
		t.Errorf("edge not blurred: %v %v", got[7], got[8])
	}
	if !got[0].ApproxEqual(render.White, 1e-4) {
		t.Errorf("far pixel changed: %v", got[0])
	}
}

func TestZeroKernelIsNoop(t *testing.T) {
	f := newFixture(t)
	src := f.texture(t, 2, 2, false, fill(4, render.Red))
	out, err := f.p.Apply(src, Blur{}, NewBlur(1))
	if err != nil {
		t.Fatal(err)
	}
	if out != src {
		t.Errorf("Apply() = %v, want source %v", out, src)
	}
}

func TestAlphaAdjust(t *testing.T) {
	tests := []struct {
		name   string
		filter AlphaAdjust
		want   render.Color
	}{
		{"scale", AlphaAdjust{Alpha: 0.5}, render.Color{R: 1, A: 0.5}},
		{"invert", AlphaAdjust{Alpha: 0.5, Invert: true}, render.Color{R: 1, G: 0.5, B: 0.5, A: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			src := f.texture(t, 2, 2, false, fill(4, render.Red))
			out, err := f.p.Apply(src, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			for i, got := range f.read(t, out) {
				if !got.ApproxEqual(tt.want, 1e-5) {
					t.Errorf("pixel %d = %v, want %v", i, got, tt.want)
				}
			}
		})
	}
}

func TestMask(t *testing.T) {
	f := newFixture(t)
	src := f.texture(t, 2, 1, false, fill(2, render.Red))
	mask := f.texture(t, 2, 1, false, []render.Color{render.White, render.Transparent})
	out, err := f.p.Apply(src, Mask{Texture: mask})
	if err != nil {
		t.Fatal(err)
	}
	got := f.read(t, out)
	if !got[0].ApproxEqual(render.Red, 1e-5) {
		t.Errorf("unmasked pixel = %v", got[0])
	}
	if !got[1].ApproxEqual(render.Transparent, 1e-5) {
		t.Errorf("masked pixel = %v", got[1])
	}
}

func TestDisplace(t *testing.T) {
	f := newFixture(t)
	px := []render.Color{render.Red, render.Green, render.Blue, render.White}
	src := f.texture(t, 4, 1, false, px)

	// Red = 1 shifts lookups one pixel to the right at ScaleX = 1.
	shift := f.texture(t, 4, 1, false, fill(4, render.Color{R: 1, G: 0.5, A: 1}))
	out, err := f.p.Apply(src, Displace{Map: shift, ScaleX: 1})
	if err != nil {
		t.Fatal(err)
	}
	got := f.read(t, out)
	want := []render.Color{render.Green, render.Blue, render.White, render.White}
	for i := range want {
		if !got[i].ApproxEqual(want[i], 1e-4) {
			t.Errorf("pixel %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Zero scale leaves the source in place.
	out, err = f.p.Apply(src, Displace{Map: shift})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range f.read(t, out) {
		if !c.ApproxEqual(px[i], 1e-4) {
			t.Errorf("unscaled pixel %d = %v, want %v", i, c, px[i])
		}
	}
}

func TestReduce(t *testing.T) {
	f := newFixture(t)
	px := make([]render.Color, 16)
	for i := range px {
		if i%2 == 0 {
			px[i] = render.Black
		} else {
			px[i] = render.White
		}
	}
	src := f.texture(t, 4, 4, false, px)
	out, err := f.p.Apply(src, Reduce{})
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := f.res.Descriptor(out)
	if desc.Width != 2 || desc.Height != 2 {
		t.Fatalf("reduced size = %dx%d", desc.Width, desc.Height)
	}
	gray := render.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}
	for i, got := range f.read(t, out) {
		if !got.ApproxEqual(gray, 1e-4) {
			t.Errorf("pixel %d = %v, want %v", i, got, gray)
		}
	}
}

func TestMipmaps(t *testing.T) {
	tests := []struct {
		size  int
		sizes []int
	}{
		{8, []int{4, 2}},
		{4, []int{2}},
		{2, nil},
	}
	for _, tt := range tests {
		f := newFixture(t)
		src := f.texture(t, tt.size, tt.size, false, fill(tt.size*tt.size, render.Red))
		levels, err := f.p.Mipmaps(src)
		if err != nil {
			t.Fatal(err)
		}
		if len(levels) != len(tt.sizes) {
			t.Fatalf("size %d: %d levels, want %d", tt.size, len(levels), len(tt.sizes))
		}
		for i, h := range levels {
			desc, _ := f.res.Descriptor(h)
			if desc.Width != tt.sizes[i] || desc.Height != tt.sizes[i] {
				t.Errorf("size %d level %d = %dx%d", tt.size, i, desc.Width, desc.Height)
			}
		}
	}
}

func TestUnpremultiply(t *testing.T) {
	f := newFixture(t)
	half := float32(128) / 255
	src := f.texture(t, 1, 1, true, []render.Color{{R: half, A: half}})
	out, err := f.p.Unpremultiply(src)
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := f.res.Descriptor(out)
	if desc.Premultiplied {
		t.Error("output still marked premultiplied")
	}
	if got := f.read(t, out)[0]; !got.ApproxEqual(render.Color{R: 1, A: half}, 1e-5) {
		t.Errorf("unpremultiplied = %v", got)
	}

	straight := f.texture(t, 1, 1, false, []render.Color{render.Red})
	if h, _ := f.p.Unpremultiply(straight); h != straight {
		t.Error("straight texture copied")
	}
}

func TestApplyFreesIntermediates(t *testing.T) {
	f := newFixture(t)
	src := f.texture(t, 4, 4, false, fill(16, render.Red))
	before := f.res.Stats().Textures
	out, err := f.p.Apply(src, AlphaAdjust{Alpha: 1}, NewBlur(2), AlphaAdjust{Alpha: 1})
	if err != nil {
		t.Fatal(err)
	}
	// The result plus the two blur tables.
	if got := f.res.Stats().Textures; got != before+3 {
		t.Errorf("textures = %d, want %d", got, before+3)
	}
	if !f.res.Valid(src) || !f.res.Valid(out) {
		t.Error("source or result freed")
	}
	f.p.Close()
	if got := f.res.Stats().Textures; got != before+1 {
		t.Errorf("textures after Close = %d, want %d", got, before+1)
	}
}

func TestPremultiply(t *testing.T) {
	f := newFixture(t)
	half := float32(128) / 255
	src := f.texture(t, 1, 1, false, []render.Color{{R: 1, A: half}})
	out, err := f.p.Premultiply(src)
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := f.res.Descriptor(out)
	if !desc.Premultiplied {
		t.Error("output not marked premultiplied")
	}
	if got := f.read(t, out)[0]; !got.ApproxEqual(render.Color{R: half, A: half}, 1e-5) {
		t.Errorf("premultiplied = %v", got)
	}

	if h, _ := f.p.Premultiply(out); h != out {
		t.Error("premultiplied texture copied")
	}
}

func TestAlphaAdjustKeepsPremultiplied(t *testing.T) {
	f := newFixture(t)
	half := float32(128) / 255
	src := f.texture(t, 1, 1, true, []render.Color{{R: half, A: half}})
	before := f.res.Stats().Textures
	out, err := f.p.Apply(src, AlphaAdjust{Alpha: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := f.res.Descriptor(out)
	if !desc.Premultiplied {
		t.Error("output not marked premultiplied")
	}
	q := half / 2
	if got := f.read(t, out)[0]; !got.ApproxEqual(render.Color{R: q, A: q}, 1e-5) {
		t.Errorf("adjusted = %v, want %v", got, render.Color{R: q, A: q})
	}
	if got := f.res.Stats().Textures; got != before+1 {
		t.Errorf("textures = %d, want %d", got, before+1)
	}
}
