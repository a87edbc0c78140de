package compose

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/compose/internal/mask"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
)

// sprite is a named list of retained batches with the state they were
// drawn with, plus an optional bake of them.
type sprite struct {
	name    string
	batches []recorded

	bake resource.Handle
	// deps holds the generation of every layer the sprite reads through
	// a LayerFill, taken when it was baked.
	deps map[int]uint64
}

type recorded struct {
	vertices resource.Handle
	state    drawState
}

// DefineSprite starts recording the sprite name. Until [Driver.EndSprite]
// every [Driver.Draw] is recorded with the fill, blend mode and transform
// current at the time instead of being drawn. A sprite already defined
// under name is replaced.
func (d *Driver) DefineSprite(name string) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.recording != nil {
		return fmt.Errorf("%w: sprite %q is still being defined", ErrConfiguration, d.recording.name)
	}
	d.releaseSprite(name)
	d.recording = &sprite{name: name}
	return nil
}

// EndSprite finishes the sprite being defined.
func (d *Driver) EndSprite() error {
	if err := d.check(); err != nil {
		return err
	}
	s := d.recording
	if s == nil {
		return fmt.Errorf("%w: no sprite is being defined", ErrConfiguration)
	}
	d.recording = nil
	d.sprites[s.name] = s
	d.logger.Debug("compose: sprite defined", slog.String("name", s.name), slog.Int("batches", len(s.batches)))
	return nil
}

func (d *Driver) record(batch []render.Vertex) error {
	vh, err := d.res.UploadVertices(batch, true)
	if err != nil {
		return err
	}
	d.recording.batches = append(d.recording.batches, recorded{vertices: vh, state: d.state})
	return nil
}

// DrawSprite draws the sprite name into the current layer, placed by m
// after its own transforms. The current erase and clip masks apply.
//
// A baked sprite is drawn from its bake, in the current blend mode,
// unless a layer it reads was cleared since; then, like an unbaked
// sprite, its batches are replayed.
func (d *Driver) DrawSprite(name string, m render.Matrix) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.recording != nil {
		return fmt.Errorf("%w: sprite %q is still being defined", ErrConfiguration, d.recording.name)
	}
	s := d.sprites[name]
	if s == nil {
		return fmt.Errorf("%w: %q", ErrSpriteNotFound, name)
	}

	if d.bakeValid(s) {
		vh, err := d.res.UploadVertices(render.Quad(0, 0, float32(d.width), float32(d.height), render.White), false)
		if err != nil {
			return err
		}
		st := d.state
		st.fill = Fill{kind: render.FillTexture, image: s.bake, transform: render.Identity(), alpha: 1}
		st.transform = render.Identity()
		return d.drawLayer(&st, vh, m, d.alpha)
	}

	for _, r := range s.batches {
		st := r.state
		st.layer = d.state.layer
		st.erase, st.clip = d.state.erase, d.state.clip
		if err := d.drawLayer(&st, r.vertices, m, d.alpha); err != nil {
			return fmt.Errorf("sprite %q: %w", name, err)
		}
	}
	return nil
}

func (d *Driver) bakeValid(s *sprite) bool {
	if !d.res.Valid(s.bake) {
		return false
	}
	for id, gen := range s.deps {
		if !d.layers.Has(id) {
			return false
		}
		t, err := d.layers.Target(id)
		if err != nil || t.Generation != gen {
			return false
		}
	}
	return true
}

// BakeSprite renders the sprite name once, without masks and over a
// transparent background, into a frame-sized image that later
// [Driver.DrawSprite] calls draw instead of replaying its batches.
func (d *Driver) BakeSprite(name string) error {
	if err := d.check(); err != nil {
		return err
	}
	s := d.sprites[name]
	if s == nil {
		return fmt.Errorf("%w: %q", ErrSpriteNotFound, name)
	}
	d.freeBake(s)

	scratch, err := d.res.CreateTexture(render.TextureDescriptor{
		Label:         "sprite_" + name,
		Width:         d.width,
		Height:        d.height,
		Premultiplied: true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = d.res.Free(scratch) }()
	dst, err := d.res.Texture(scratch)
	if err != nil {
		return err
	}

	deps := make(map[int]uint64)
	for _, r := range s.batches {
		st := r.state
		st.layer = -1
		if f := st.fill; f.fromLayer {
			t, err := d.layers.Target(f.layer)
			if err != nil {
				return err
			}
			deps[f.layer] = t.Generation
		}
		if err := d.drawTo(dst, mask.Binding{}, &st, r.vertices, render.Identity(), d.alpha); err != nil {
			return fmt.Errorf("bake sprite %q: %w", name, err)
		}
	}

	bake, err := d.filters.Unpremultiply(scratch)
	if err != nil {
		return fmt.Errorf("bake sprite %q: %w", name, err)
	}
	s.bake, s.deps = bake, deps
	return nil
}

// ReleaseSprite frees the batches and bake of the sprite name.
func (d *Driver) ReleaseSprite(name string) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.sprites[name] == nil {
		return fmt.Errorf("%w: %q", ErrSpriteNotFound, name)
	}
	d.releaseSprite(name)
	return nil
}

// Sprites returns the number of defined sprites.
func (d *Driver) Sprites() int {
	return len(d.sprites)
}

func (d *Driver) releaseSprite(name string) {
	s := d.sprites[name]
	if s == nil {
		return
	}
	for _, r := range s.batches {
		_ = d.res.Free(r.vertices)
	}
	d.freeBake(s)
	delete(d.sprites, name)
}

func (d *Driver) freeBake(s *sprite) {
	if d.res.Valid(s.bake) {
		_ = d.res.Free(s.bake)
	}
	s.bake, s.deps = resource.Handle{}, nil
}

// dropBakes frees every bake. Layer targets were released, so bakes
// reading them and bakes of the old frame size are stale.
func (d *Driver) dropBakes() {
	for _, s := range d.sprites {
		d.freeBake(s)
	}
}
