package filter

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

// Filter is one stateless step of a filter chain.
type Filter interface {
	// Name returns a short name for logs.
	Name() string

	apply(p *Pipeline, src resource.Handle) (resource.Handle, error)
}

// Pipeline runs filters on textures owned by a resource manager.
// It is used from the driver goroutine only.
type Pipeline struct {
	dev    backend.Device
	reg    *shader.Registry
	res    *resource.Manager
	logger *slog.Logger

	// tables holds the uploaded offsets and weights of recent kernels.
	tables map[kernelKey]blurTables
}

type blurTables struct {
	offsets, weights resource.Handle
}

// New returns a pipeline drawing with the programs of reg.
func New(dev backend.Device, reg *shader.Registry, res *resource.Manager, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(nopHandler{})
	}
	return &Pipeline{
		dev:    dev,
		reg:    reg,
		res:    res,
		logger: logger,
		tables: make(map[kernelKey]blurTables),
	}
}

// Apply runs filters on src in order and returns the handle of the
// result. With no filters, or only filters that have no effect, the
// result is src itself. Intermediate textures are freed; src is never
// freed.
func (p *Pipeline) Apply(src resource.Handle, filters ...Filter) (resource.Handle, error) {
	cur := src
	for _, f := range filters {
		out, err := f.apply(p, cur)
		if err != nil {
			p.release(cur, src)
			return resource.Handle{}, fmt.Errorf("filter %s: %w", f.Name(), err)
		}
		if out != cur {
			p.release(cur, src)
			cur = out
		}
	}
	return cur, nil
}

// Mipmaps returns log2(min(w, h)) - 1 successively halved copies of src,
// largest first. Sources smaller than 4 texels on a side have none.
func (p *Pipeline) Mipmaps(src resource.Handle) ([]resource.Handle, error) {
	desc, err := p.res.Descriptor(src)
	if err != nil {
		return nil, err
	}
	levels := bitsLen(min(desc.Width, desc.Height)) - 2
	out := make([]resource.Handle, 0, max(levels, 0))
	cur := src
	for i := 0; i < levels; i++ {
		next, err := Reduce{}.apply(p, cur)
		if err != nil {
			for _, h := range out {
				_ = p.res.Free(h)
			}
			return nil, fmt.Errorf("mip level %d: %w", i+1, err)
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// bitsLen returns floor(log2(n)) + 1 for n > 0.
func bitsLen(n int) int {
	l := 0
	for ; n > 0; n >>= 1 {
		l++
	}
	return l
}

// Unpremultiply returns a straight-alpha copy of a premultiplied texture.
// Straight textures are returned unchanged.
func (p *Pipeline) Unpremultiply(src resource.Handle) (resource.Handle, error) {
	desc, err := p.res.Descriptor(src)
	if err != nil {
		return resource.Handle{}, err
	}
	if !desc.Premultiplied {
		return src, nil
	}
	return p.run(src, pass{
		key:      shader.UtilityKey{Kind: shader.UtilResolve, Samples: 1, Flag: true},
		label:    "unpremultiply",
		straight: true,
	})
}

// Premultiply returns a premultiplied copy of a straight texture.
// Premultiplied textures are returned unchanged.
func (p *Pipeline) Premultiply(src resource.Handle) (resource.Handle, error) {
	desc, err := p.res.Descriptor(src)
	if err != nil {
		return resource.Handle{}, err
	}
	if desc.Premultiplied {
		return src, nil
	}
	return p.run(src, pass{
		key:           shader.UtilityKey{Kind: shader.UtilResolve, Samples: 1, Policy: render.PolicyMultiplyAlpha},
		label:         "premultiply",
		premultiplied: true,
	})
}

// Close releases cached blur tables.
func (p *Pipeline) Close() {
	for k, t := range p.tables {
		p.freeTables(t)
		delete(p.tables, k)
	}
}

func (p *Pipeline) release(h, keep resource.Handle) {
	if h != keep && p.res.Valid(h) {
		_ = p.res.Free(h)
	}
}

// pass is one fullscreen draw of a utility program.
type pass struct {
	key    shader.UtilityKey
	label  string
	params [4]float32

	// width and height default to the source size.
	width, height int

	// straight and premultiplied set the output encoding regardless of
	// the source encoding.
	straight      bool
	premultiplied bool

	// textures binds extra slots besides the source in TexFill.
	textures map[render.TextureSlot]resource.Handle

	// kernel binds the blur tables of a kernel. They are looked up after
	// the output is allocated, which may evict them.
	kernel *Kernel
}

// run draws ps reading src into a new texture owned by the caller.
func (p *Pipeline) run(src resource.Handle, ps pass) (resource.Handle, error) {
	srcDesc, err := p.res.Descriptor(src)
	if err != nil {
		return resource.Handle{}, err
	}
	if srcDesc.SampleCount > 1 {
		return resource.Handle{}, fmt.Errorf("%w: filter source %q is multisampled", render.ErrConfiguration, srcDesc.Label)
	}
	prog, err := p.reg.Utility(ps.key)
	if err != nil {
		return resource.Handle{}, err
	}

	w, h := ps.width, ps.height
	if w == 0 || h == 0 {
		w, h = srcDesc.Width, srcDesc.Height
	}
	p.res.Touch(src)
	dst, err := p.res.CreateTexture(render.TextureDescriptor{
		Label:         srcDesc.Label + "_" + ps.label,
		Width:         w,
		Height:        h,
		Premultiplied: ps.premultiplied || (srcDesc.Premultiplied && !ps.straight),
	})
	if err != nil {
		return resource.Handle{}, err
	}

	if ps.kernel != nil {
		tables, err := p.blurTables(*ps.kernel)
		if err != nil {
			_ = p.res.Free(dst)
			return resource.Handle{}, err
		}
		ps.textures = map[render.TextureSlot]resource.Handle{
			render.TexBlurOffsets: tables.offsets,
			render.TexBlurWeights: tables.weights,
		}
	}
	if err := p.draw(prog, src, dst, w, h, ps); err != nil {
		_ = p.res.Free(dst)
		return resource.Handle{}, err
	}
	p.logger.Debug("filter: pass", "program", prog.Label, "width", w, "height", h)
	return dst, nil
}

func (p *Pipeline) draw(prog *shader.Program, src, dst resource.Handle, w, h int, ps pass) error {
	b := render.NewBindings()
	b.Uniforms.Transform = render.PixelSpace(w, h)
	b.Uniforms.FilterParams = ps.params

	srcTex, err := p.res.Texture(src)
	if err != nil {
		return err
	}
	b.SetTexture(render.TexFill, srcTex)
	for slot, th := range ps.textures {
		t, err := p.res.Texture(th)
		if err != nil {
			return fmt.Errorf("%s texture: %w", slot, err)
		}
		b.SetTexture(slot, t)
	}
	bound, err := prog.Bind(&b)
	if err != nil {
		return err
	}

	dstTex, err := p.res.Texture(dst)
	if err != nil {
		return err
	}
	vh, err := p.res.UploadVertices(render.Quad(0, 0, float32(w), float32(h), render.White), false)
	if err != nil {
		return err
	}
	vb, err := p.res.Vertices(vh)
	if err != nil {
		return err
	}
	return p.dev.Draw(&backend.DrawCall{
		Target:   dstTex,
		Program:  prog,
		Bindings: bound,
		Blend:    render.BlendCopy.State(false),
		Vertices: vb,
	})
}

// Blur is a separable Gaussian blur: a horizontal pass followed by a
// vertical pass with the same kernel. The zero kernel blurs nothing.
type Blur struct {
	Kernel Kernel
}

// NewBlur returns a blur of the given radius in pixels.
func NewBlur(radius float32) Blur {
	return Blur{Kernel: KernelForRadius(radius)}
}

// Name implements Filter.
func (Blur) Name() string { return "blur" }

func (f Blur) apply(p *Pipeline, src resource.Handle) (resource.Handle, error) {
	if f.Kernel.IsZero() {
		return src, nil
	}
	key := shader.UtilityKey{Kind: shader.UtilBlur}
	horizontal, err := p.run(src, pass{key: key, label: "blur_h", params: [4]float32{1, 0}, kernel: &f.Kernel})
	if err != nil {
		return resource.Handle{}, err
	}
	vertical, err := p.run(horizontal, pass{key: key, label: "blur_v", params: [4]float32{0, 1}, kernel: &f.Kernel})
	_ = p.res.Free(horizontal)
	if err != nil {
		return resource.Handle{}, err
	}
	return vertical, nil
}

// blurTables returns the 1-D R32F offset and weight textures of k,
// uploading them when missing or evicted.
func (p *Pipeline) blurTables(k Kernel) (blurTables, error) {
	key := kernelKey{taps: k.Taps, step: k.Step}
	t, ok := p.tables[key]
	if ok && p.res.Valid(t.offsets) && p.res.Valid(t.weights) {
		p.res.Touch(t.offsets)
		p.res.Touch(t.weights)
		return t, nil
	}
	if ok {
		p.freeTables(t)
		delete(p.tables, key)
	}

	var err error
	if t.offsets, err = p.upload(fmt.Sprintf("blur%d_offsets", k.Taps), k.Offsets); err != nil {
		return t, err
	}
	if t.weights, err = p.upload(fmt.Sprintf("blur%d_weights", k.Taps), k.Weights); err != nil {
		p.freeTables(t)
		return t, err
	}
	if !p.res.Valid(t.offsets) {
		p.freeTables(t)
		return t, fmt.Errorf("%w: blur tables evicted while uploading", render.ErrResourceExhausted)
	}
	p.tables[key] = t
	return t, nil
}

func (p *Pipeline) freeTables(t blurTables) {
	for _, h := range []resource.Handle{t.offsets, t.weights} {
		if p.res.Valid(h) {
			_ = p.res.Free(h)
		}
	}
}

// upload writes values into a new evictable 1-row R32F texture.
func (p *Pipeline) upload(label string, values []float32) (resource.Handle, error) {
	h, err := p.res.CreateTexture(render.TextureDescriptor{
		Label:  label,
		Width:  len(values),
		Height: 1,
		Format: render.FormatR32F,
	}, resource.Evictable())
	if err != nil {
		return h, err
	}
	data := make([]byte, 0, 4*len(values))
	for _, v := range values {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	tex, err := p.res.Texture(h)
	if err == nil {
		err = p.dev.WriteTexture(tex, data)
	}
	if err != nil {
		_ = p.res.Free(h)
		return resource.Handle{}, err
	}
	return h, nil
}

// AlphaAdjust scales alpha by Alpha. With Invert the color then blends
// toward white as alpha drops: c' = 1 - (1-c)*a. Both act on straight
// color; a premultiplied source is un-premultiplied first and the result
// premultiplied again.
type AlphaAdjust struct {
	Alpha  float32
	Invert bool
}

// Name implements Filter.
func (AlphaAdjust) Name() string { return "alpha" }

func (f AlphaAdjust) apply(p *Pipeline, src resource.Handle) (resource.Handle, error) {
	desc, err := p.res.Descriptor(src)
	if err != nil {
		return resource.Handle{}, err
	}
	adjust := pass{
		key:    shader.UtilityKey{Kind: shader.UtilAlpha, Flag: f.Invert},
		label:  "alpha",
		params: [4]float32{f.Alpha},
	}
	if !desc.Premultiplied {
		return p.run(src, adjust)
	}

	straight, err := p.Unpremultiply(src)
	if err != nil {
		return resource.Handle{}, err
	}
	adjusted, err := p.run(straight, adjust)
	p.release(straight, src)
	if err != nil {
		return resource.Handle{}, err
	}
	out, err := p.Premultiply(adjusted)
	p.release(adjusted, out)
	return out, err
}

// Mask multiplies the source by the alpha of Texture, sampled over the
// same normalized area.
type Mask struct {
	Texture resource.Handle
}

// Name implements Filter.
func (Mask) Name() string { return "mask" }

func (f Mask) apply(p *Pipeline, src resource.Handle) (resource.Handle, error) {
	return p.run(src, pass{
		key:      shader.UtilityKey{Kind: shader.UtilMask},
		label:    "mask",
		textures: map[render.TextureSlot]resource.Handle{render.TexClipMask: f.Texture},
	})
}

// Displace offsets every lookup of the source by the red and green
// channels of Map, mapped from [0, 1] to [-1, 1] and scaled by ScaleX
// and ScaleY pixels. Premultiplied marks a premultiplied map, which is
// un-premultiplied before use.
type Displace struct {
	Map            resource.Handle
	ScaleX, ScaleY float32
	Premultiplied  bool
}

// Name implements Filter.
func (Displace) Name() string { return "displace" }

func (f Displace) apply(p *Pipeline, src resource.Handle) (resource.Handle, error) {
	return p.run(src, pass{
		key:      shader.UtilityKey{Kind: shader.UtilDisplace, Flag: f.Premultiplied},
		label:    "displace",
		params:   [4]float32{f.ScaleX, f.ScaleY},
		textures: map[render.TextureSlot]resource.Handle{render.TexDisplacementMap: f.Map},
	})
}

// Reduce halves the source in both dimensions with a 2x2 box filter.
// A dimension of 1 stays 1.
type Reduce struct{}

// Name implements Filter.
func (Reduce) Name() string { return "reduce" }

func (Reduce) apply(p *Pipeline, src resource.Handle) (resource.Handle, error) {
	desc, err := p.res.Descriptor(src)
	if err != nil {
		return resource.Handle{}, err
	}
	return p.run(src, pass{
		key:    shader.UtilityKey{Kind: shader.UtilReduce},
		label:  "reduce",
		width:  max(desc.Width/2, 1),
		height: max(desc.Height/2, 1),
	})
}
