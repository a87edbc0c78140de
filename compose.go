package compose

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/compose/backend"
	_ "github.com/gogpu/compose/backend/software" // always available
	"github.com/gogpu/compose/filter"
	"github.com/gogpu/compose/internal/layer"
	"github.com/gogpu/compose/internal/mask"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

// drawState is everything a draw reads besides its vertices.
type drawState struct {
	layer     int
	fill      Fill
	blend     render.BlendMode
	erase     bool
	clip      bool
	transform render.Matrix
}

func defaultState() drawState {
	return drawState{
		fill:      SolidFill(),
		blend:     render.BlendSourceOver,
		transform: render.Identity(),
	}
}

// composited remembers how a layer was last resolved for the frame.
type composited struct {
	resolved layer.Resolved
	policy   render.AlphaPolicy
	alpha    float32
}

// Driver renders batches of triangles into layers and composites them
// into frames.
//
// A Driver is not safe for concurrent use, except for [Driver.Frame]
// which may be called from any goroutine.
type Driver struct {
	dev        backend.Device
	ownsDevice bool
	caps       render.Capabilities
	reg        *shader.Registry
	res        *resource.Manager
	masks      *mask.Compositor
	layers     *layer.Manager
	filters    *filter.Pipeline
	logger     *slog.Logger

	width, height int
	alpha         render.AlphaMode

	state      drawState
	composited map[int]composited
	sprites    map[string]*sprite
	recording  *sprite
	frame      resource.Handle

	mu     sync.Mutex // guards last
	last   []render.Color
	lastW  int
	lastH  int
	frames uint64

	closed bool
}

// New creates a driver rendering width x height frames.
func New(width, height int, opts ...Option) (*Driver, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrConfiguration, width, height)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = Logger()
	}

	dev, owns, err := openDevice(&o)
	if err != nil {
		return nil, err
	}
	d, err := newDriver(dev, width, height, &o, logger)
	if err != nil {
		if owns {
			_ = dev.Close()
		}
		return nil, err
	}
	d.ownsDevice = owns
	return d, nil
}

func openDevice(o *options) (backend.Device, bool, error) {
	switch {
	case o.device != nil:
		return o.device, false, nil
	case o.backendName != "":
		dev, err := backend.Open(o.backendName)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return dev, true, nil
	}
	dev, err := backend.Default()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return dev, true, nil
}

func newDriver(dev backend.Device, width, height int, o *options, logger *slog.Logger) (*Driver, error) {
	caps := dev.Capabilities()
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if width > caps.MaxTextureSize || height > caps.MaxTextureSize {
		return nil, fmt.Errorf("%w: frame size %dx%d exceeds %d", ErrCapabilityMismatch, width, height, caps.MaxTextureSize)
	}

	samples := o.samples
	if samples == 0 {
		samples = 1
		for _, n := range caps.SampleCounts {
			if n <= defaultSamples {
				samples = n
			}
		}
	} else if err := caps.CheckSamples(samples); err != nil {
		return nil, err
	}

	alpha := render.AlphaStraight
	if caps.NativePremultiplied {
		alpha = render.AlphaPremultiplied
	}
	if o.alpha != nil {
		alpha = *o.alpha
		if alpha == render.AlphaPremultiplied && !caps.NativePremultiplied {
			return nil, fmt.Errorf("%w: backend %s cannot write premultiplied output", ErrCapabilityMismatch, dev.Name())
		}
	}

	regOpts := []shader.Option{shader.WithLogger(logger)}
	if o.validate {
		regOpts = append(regOpts, shader.WithValidation())
	}
	reg, err := shader.NewRegistry(caps, dev, regOpts...)
	if err != nil {
		return nil, err
	}

	res := resource.New(dev, resource.Config{
		BudgetBytes:       o.budget,
		EvictionThreshold: o.threshold,
		Logger:            logger,
	})
	masks, err := mask.New(dev, reg, res, samples)
	if err != nil {
		res.Close()
		return nil, err
	}
	layers, err := layer.New(dev, reg, res, masks, width, height, logger)
	if err != nil {
		res.Close()
		return nil, err
	}

	d := &Driver{
		dev:        dev,
		caps:       caps,
		reg:        reg,
		res:        res,
		masks:      masks,
		layers:     layers,
		filters:    filter.New(dev, reg, res, logger),
		logger:     logger,
		width:      width,
		height:     height,
		alpha:      alpha,
		state:      defaultState(),
		composited: make(map[int]composited),
		sprites:    make(map[string]*sprite),
	}
	layers.OnClearAll(d.dropComposited)
	layers.OnClearAll(d.dropBakes)

	if err := d.allocFrame(); err != nil {
		res.Close()
		return nil, err
	}

	logger.Info("compose: driver ready",
		slog.String("backend", dev.Name()),
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("samples", samples),
		slog.String("alpha", alpha.String()),
		slog.Int("programs", reg.Len()))
	return d, nil
}

func (d *Driver) allocFrame() error {
	h, err := d.res.CreateTexture(render.TextureDescriptor{
		Label:         "frame",
		Width:         d.width,
		Height:        d.height,
		Premultiplied: true,
	})
	if err != nil {
		return err
	}
	d.frame = h
	return nil
}

// Backend returns the name of the backend the driver renders with.
func (d *Driver) Backend() string {
	return d.dev.Name()
}

// Capabilities returns the capabilities of the backend.
func (d *Driver) Capabilities() render.Capabilities {
	return d.caps
}

// Samples returns the sample count of layers and masks.
func (d *Driver) Samples() int {
	return d.layers.Samples()
}

// AlphaMode returns the output encoding of draw variants.
func (d *Driver) AlphaMode() render.AlphaMode {
	return d.alpha
}

// Size returns the frame size.
func (d *Driver) Size() (width, height int) {
	return d.width, d.height
}

// MemoryStats returns texture and buffer usage.
func (d *Driver) MemoryStats() resource.MemoryStats {
	return d.res.Stats()
}

func (d *Driver) check() error {
	if d.closed {
		return ErrClosed
	}
	return nil
}

// SelectLayer makes id the target of later draws. The layer is allocated
// on first selection, which fails with ErrResourceExhausted when the
// memory budget cannot hold it.
func (d *Driver) SelectLayer(id int) error {
	if err := d.check(); err != nil {
		return err
	}
	if _, err := d.layers.Target(id); err != nil {
		return err
	}
	d.state.layer = id
	return nil
}

// Layer returns the current layer id.
func (d *Driver) Layer() int {
	return d.state.layer
}

// SetEraseMask activates or deactivates the erase mask of the current
// layer for later draws.
func (d *Driver) SetEraseMask(on bool) {
	d.state.erase = on
}

// SetClipMask activates or deactivates the clip mask of the current
// layer for later draws.
func (d *Driver) SetClipMask(on bool) {
	d.state.clip = on
}

// SetBlendMode sets the blend mode of later draws.
func (d *Driver) SetBlendMode(m render.BlendMode) {
	d.state.blend = m
}

// BlendMode returns the blend mode of later draws.
func (d *Driver) BlendMode() render.BlendMode {
	return d.state.blend
}

// SetFill sets the fill of later draws.
func (d *Driver) SetFill(f Fill) {
	d.state.fill = f
}

// SetTransform sets the transform applied to the positions of later
// batches before they are mapped to the layer.
func (d *Driver) SetTransform(m render.Matrix) {
	d.state.transform = m
}

// Transform returns the current transform.
func (d *Driver) Transform() render.Matrix {
	return d.state.transform
}

// SetLayerBlendMode sets how layer id is blended into the frame.
func (d *Driver) SetLayerBlendMode(id int, m render.BlendMode) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.layers.SetBlend(id, m)
}

// SetLayerAlpha sets the opacity of layer id in the frame, clamped to
// [0, 1].
func (d *Driver) SetLayerAlpha(id int, alpha float32) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.layers.SetAlpha(id, alpha)
}

// Draw renders batch, a triangle list, into the current layer with the
// current state. While a sprite is being defined the batch is recorded
// into it instead.
func (d *Driver) Draw(batch []render.Vertex) error {
	if err := d.check(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	if d.recording != nil {
		return d.record(batch)
	}
	vh, err := d.res.UploadVertices(batch, false)
	if err != nil {
		return err
	}
	return d.drawLayer(&d.state, vh, render.Identity(), d.alpha)
}

// DrawErase adds the coverage of batch to the erase mask of the current
// layer. Later draws with the erase mask active are transparent where
// the mask is covered.
func (d *Driver) DrawErase(batch []render.Vertex) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.masks.DrawErase(d.state.layer, d.width, d.height, batch, d.pixelTransform(render.Identity()))
}

// DrawClip adds the coverage of batch to the clip mask of the current
// layer. Later draws with the clip mask active are visible only where
// the mask is covered.
func (d *Driver) DrawClip(batch []render.Vertex) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.masks.DrawClip(d.state.layer, d.width, d.height, batch, d.pixelTransform(render.Identity()))
}

// ClearEraseMask resets the erase mask of the current layer.
func (d *Driver) ClearEraseMask() error {
	if err := d.check(); err != nil {
		return err
	}
	return d.masks.ClearErase(d.state.layer)
}

// ClearClipMask resets the clip mask of the current layer.
func (d *Driver) ClearClipMask() error {
	if err := d.check(); err != nil {
		return err
	}
	return d.masks.ClearClip(d.state.layer)
}

// ClearLayer resets the current layer to transparent and drops its
// masks. Sprites keep their bakes unless they read the layer.
func (d *Driver) ClearLayer() error {
	if err := d.check(); err != nil {
		return err
	}
	return d.layers.Clear(d.state.layer)
}

// ClearAll releases every layer, mask and sprite and resets the drawing
// state. Textures, gradients and dash patterns survive.
func (d *Driver) ClearAll() error {
	if err := d.check(); err != nil {
		return err
	}
	d.layers.ClearAll()
	for name := range d.sprites {
		d.releaseSprite(name)
	}
	d.recording = nil
	d.state = defaultState()
	return nil
}

// Resize changes the frame and layer size. Every layer and mask is
// released and sprite bakes are dropped.
func (d *Driver) Resize(width, height int) error {
	if err := d.check(); err != nil {
		return err
	}
	if width == d.width && height == d.height {
		return nil
	}
	if width > d.caps.MaxTextureSize || height > d.caps.MaxTextureSize {
		return fmt.Errorf("%w: frame size %dx%d exceeds %d", ErrCapabilityMismatch, width, height, d.caps.MaxTextureSize)
	}
	if err := d.layers.Resize(width, height); err != nil {
		return err
	}
	_ = d.res.Free(d.frame)
	d.width, d.height = width, height
	return d.allocFrame()
}

// Close releases every resource. A device opened by the driver is
// closed too.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.filters.Close()
	d.res.Close()
	if d.ownsDevice {
		return d.dev.Close()
	}
	return nil
}

// pixelTransform maps batch positions through extra and the current
// transform to clip space.
func (d *Driver) pixelTransform(extra render.Matrix) render.Matrix {
	return render.PixelSpace(d.width, d.height).Mul(extra).Mul(d.state.transform)
}

// drawLayer draws the uploaded batch vh into the layer of st with
// variants encoding their output in alpha.
func (d *Driver) drawLayer(st *drawState, vh resource.Handle, extra render.Matrix, alpha render.AlphaMode) error {
	t, err := d.layers.Target(st.layer)
	if err != nil {
		return err
	}
	dst, err := d.layers.Texture(t)
	if err != nil {
		return err
	}
	mb, err := d.masks.Bindings(st.layer, d.width, d.height, st.erase, st.clip)
	if err != nil {
		return err
	}
	if err := d.drawTo(dst, mb, st, vh, extra, alpha); err != nil {
		return fmt.Errorf("layer %d: %w", st.layer, err)
	}
	d.layers.Touch(st.layer)
	return nil
}

// drawTo derives the variant of st, binds its slots and submits vh to dst.
func (d *Driver) drawTo(dst render.Texture, mb mask.Binding, st *drawState, vh resource.Handle, extra render.Matrix, alpha render.AlphaMode) error {
	samples := max(dst.Descriptor().SampleCount, 1)
	key := render.VariantKey{
		Fill:    st.fill.kind,
		Samples: samples,
		Erase:   mb.Erase != nil,
		Clip:    mb.Clip != nil,
		Alpha:   alpha,
		Adjust:  st.blend.Adjust(),
	}
	p, err := d.reg.Lookup(key)
	if err != nil {
		return err
	}

	b := render.NewBindings()
	desc := dst.Descriptor()
	b.Uniforms.Transform = render.PixelSpace(desc.Width, desc.Height).Mul(extra).Mul(st.transform)
	if err := d.bindFill(&b, st); err != nil {
		return err
	}
	if mb.Erase != nil {
		b.SetTexture(render.TexEraseMask, mb.Erase)
	}
	if mb.Clip != nil {
		b.SetTexture(render.TexClipMask, mb.Clip)
	}
	bound, err := p.Bind(&b)
	if err != nil {
		return err
	}
	vb, err := d.res.Vertices(vh)
	if err != nil {
		return err
	}

	d.logger.Debug("compose: draw", slog.String("variant", key.String()), slog.Int("vertices", backend.VertexCount(vb)))
	return d.dev.Draw(&backend.DrawCall{
		Target:   dst,
		Program:  p,
		Bindings: bound,
		Blend:    st.blend.State(alpha == render.AlphaPremultiplied),
		Vertices: vb,
	})
}
