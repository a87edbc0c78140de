package software

import (
	"errors"
	"testing"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

func newRegistry(t *testing.T, d *Device) *shader.Registry {
	t.Helper()
	r, err := shader.NewRegistry(d.Capabilities(), d)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func target(t *testing.T, d *Device, w, h, samples int) *Texture {
	t.Helper()
	tex, err := d.CreateTexture(render.TextureDescriptor{Label: "target", Width: w, Height: h, SampleCount: samples})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	return tex.(*Texture)
}

func newBuffer(t *testing.T, d *Device, vs []render.Vertex) backend.Buffer {
	t.Helper()
	b, err := d.CreateBuffer(render.AppendVertices(nil, vs...))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	return b
}

func draw(t *testing.T, d *Device, r *shader.Registry, dst *Texture, key render.VariantKey, blend render.BlendState, vs []render.Vertex) {
	t.Helper()
	p, err := r.Lookup(key)
	if err != nil {
		t.Fatal(err)
	}
	b := render.NewBindings()
	b.Uniforms.Transform = render.PixelSpace(dst.Width(), dst.Height())
	bound, err := p.Bind(&b)
	if err != nil {
		t.Fatal(err)
	}
	call := &backend.DrawCall{Target: dst, Program: p, Bindings: bound, Blend: blend, Vertices: newBuffer(t, d, vs)}
	if err := d.Draw(call); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
}

func TestDrawSolidQuad(t *testing.T) {
	d := New()
	r := newRegistry(t, d)
	dst := target(t, d, 4, 4, 1)
	draw(t, d, r, dst, render.VariantKey{Fill: render.FillSolid, Samples: 1},
		render.BlendSourceOver.State(false), render.Quad(0, 0, 2, 4, render.Red))

	tests := []struct {
		x, y int
		want render.Color
	}{
		{0, 0, render.Red},
		{1, 3, render.Red},
		{2, 0, render.Transparent},
		{3, 3, render.Transparent},
	}
	for _, tt := range tests {
		if got := dst.Pixel(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestSharedEdgeBlendsOnce(t *testing.T) {
	d := New()
	r := newRegistry(t, d)
	for _, samples := range []int{1, 4, 8} {
		dst := target(t, d, 8, 8, samples)
		draw(t, d, r, dst, render.VariantKey{Fill: render.FillSolid, Samples: samples},
			render.BlendSourceOver.State(false), render.Quad(0, 0, 8, 8, render.Color{R: 1, A: 0.5}))
		// Vertex colors are 8-bit: 0.5 arrives as 128/255.
		a := float32(128) / 255
		want := render.Color{R: a, A: a}
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				if px := dst.Pixel(x, y); !px.ApproxEqual(want, 1e-5) {
					t.Fatalf("x%d: pixel(%d,%d) = %v, want %v", samples, x, y, px, want)
				}
			}
		}
	}
}

func TestMultisampleEdgeCoverage(t *testing.T) {
	d := New()
	r := newRegistry(t, d)
	dst := target(t, d, 2, 1, 4)
	draw(t, d, r, dst, render.VariantKey{Fill: render.FillSolid, Samples: 4},
		render.BlendSourceOver.State(false), render.Quad(0, 0, 1.5, 1, render.Red))

	resolved := target(t, d, 2, 1, 1)
	if err := d.BlitResolve(dst, resolved); err != nil {
		t.Fatal(err)
	}
	if got := resolved.Pixel(0, 0); got != render.Red {
		t.Errorf("interior pixel = %v", got)
	}
	// Two of the four standard sample positions lie left of x = 1.5.
	if got := resolved.Pixel(1, 0); !got.ApproxEqual(render.Color{R: 0.5, A: 0.5}, 1e-6) {
		t.Errorf("edge pixel = %v, want (0.5,0,0,0.5)", got)
	}
}

func TestResolveProgram(t *testing.T) {
	d := New()
	r := newRegistry(t, d)
	src := target(t, d, 2, 2, 4)
	draw(t, d, r, src, render.VariantKey{Fill: render.FillSolid, Samples: 4},
		render.BlendSourceOver.State(false), render.Quad(0, 0, 2, 2, render.Red))

	p, err := r.Utility(shader.UtilityKey{Kind: shader.UtilResolve, Samples: 4})
	if err != nil {
		t.Fatal(err)
	}
	dst := target(t, d, 2, 2, 1)
	b := render.NewBindings()
	b.Uniforms.Transform = render.PixelSpace(2, 2)
	b.Uniforms.FillAlpha = 0.5
	b.SetTexture(render.TexFill, src)
	bound, err := p.Bind(&b)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Draw(&backend.DrawCall{
		Target: dst, Program: p, Bindings: bound,
		Blend:    render.BlendCopy.State(false),
		Vertices: newBuffer(t, d, render.Quad(0, 0, 2, 2, render.White)),
	})
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if got := dst.Pixel(x, y); !got.ApproxEqual(render.Color{R: 1, A: 0.5}, 1e-6) {
				t.Errorf("pixel(%d,%d) = %v, want (1,0,0,0.5)", x, y, got)
			}
		}
	}
}

func TestDrawRejectsSampleMismatch(t *testing.T) {
	d := New()
	r := newRegistry(t, d)
	p, _ := r.Lookup(render.VariantKey{Fill: render.FillSolid, Samples: 4})
	dst := target(t, d, 2, 2, 1)
	err := d.Draw(&backend.DrawCall{
		Target: dst, Program: p, Bindings: render.NewBindings(),
		Vertices: newBuffer(t, d, render.Quad(0, 0, 2, 2, render.Red)),
	})
	if !errors.Is(err, render.ErrCapabilityMismatch) {
		t.Errorf("Draw() error = %v, want ErrCapabilityMismatch", err)
	}
}

func TestBilinearSampleAtTexelCenters(t *testing.T) {
	d := New()
	tex := target(t, d, 2, 1, 1)
	data := []byte{255, 0, 0, 255, 0, 0, 255, 255}
	if err := d.WriteTexture(tex, data); err != nil {
		t.Fatal(err)
	}
	if got := tex.Sample(0.25, 0.5); got != render.Red {
		t.Errorf("Sample(0.25) = %v, want red", got)
	}
	if got := tex.Sample(0.75, 0.5); got != render.Blue {
		t.Errorf("Sample(0.75) = %v, want blue", got)
	}
	if got := tex.Sample(0.5, 0.5); !got.ApproxEqual(render.Color{R: 0.5, B: 0.5, A: 1}, 1e-6) {
		t.Errorf("Sample(0.5) = %v, want midpoint", got)
	}
	if got := tex.Sample(-1, 0.5); got != render.Red {
		t.Errorf("clamp-to-edge Sample(-1) = %v", got)
	}
}

func TestWriteTextureValidation(t *testing.T) {
	d := New()
	tex := target(t, d, 2, 2, 1)
	if err := d.WriteTexture(tex, make([]byte, 3)); !errors.Is(err, render.ErrConfiguration) {
		t.Errorf("short write error = %v", err)
	}
	ms := target(t, d, 2, 2, 4)
	if err := d.WriteTexture(ms, make([]byte, 16)); !errors.Is(err, render.ErrConfiguration) {
		t.Errorf("multisample write error = %v", err)
	}
	d.DestroyTexture(tex)
	if err := d.Clear(tex, render.Red); !errors.Is(err, render.ErrStaleHandle) {
		t.Errorf("Clear(destroyed) error = %v", err)
	}
	if d.LiveTextures() != 1 {
		t.Errorf("LiveTextures() = %d, want 1", d.LiveTextures())
	}
}

func TestMaskTextureStorage(t *testing.T) {
	d := New()
	tex, err := d.CreateTexture(render.TextureDescriptor{Label: "mask", Width: 1, Height: 1, SampleCount: 4, Format: render.FormatR8})
	if err != nil {
		t.Fatal(err)
	}
	st := tex.(*Texture)
	st.Store(0, 0, 2, render.Color{R: 0.7, G: 0.7, B: 0.7, A: 0.7})
	if got := st.Load(0, 0, 2); got != (render.Color{R: 0.7, A: 1}) {
		t.Errorf("R8 sample = %v, want (0.7,0,0,1)", got)
	}
	if got := st.Load(0, 0, 1); got.R != 0 {
		t.Errorf("untouched sample = %v", got)
	}
}

func TestLargeTargetShadesInBands(t *testing.T) {
	d := New()
	defer d.Close()
	r := newRegistry(t, d)
	dst := target(t, d, 160, 160, 1)
	key := render.VariantKey{Fill: render.FillSolid, Samples: 1}
	blend := render.BlendSourceOver.State(false)

	// The second quad crosses band boundaries and must land over the first.
	draw(t, d, r, dst, key, blend, render.Quad(0, 0, 160, 160, render.Red))
	draw(t, d, r, dst, key, blend, render.Quad(0, 20, 160, 100, render.Blue))
	if d.pool == nil {
		t.Fatal("large target drawn without the worker pool")
	}

	for _, tt := range []struct {
		y    int
		want render.Color
	}{
		{0, render.Red}, {19, render.Red}, {20, render.Blue}, {31, render.Blue},
		{32, render.Blue}, {99, render.Blue}, {100, render.Red}, {159, render.Red},
	} {
		if got := dst.Pixel(80, tt.y); got != tt.want {
			t.Errorf("pixel(80,%d) = %v, want %v", tt.y, got, tt.want)
		}
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if d.pool != nil {
		t.Error("Close kept the worker pool")
	}
}
