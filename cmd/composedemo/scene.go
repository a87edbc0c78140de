package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/filter"
	"github.com/gogpu/compose/render"
)

// Scene is the YAML description of one frame.
type Scene struct {
	Width     int               `yaml:"width"`
	Height    int               `yaml:"height"`
	Gradients map[string][]Stop `yaml:"gradients"`
	Layers    []Layer           `yaml:"layers"`
}

// Stop is a gradient stop.
type Stop struct {
	Pos   float32 `yaml:"pos"`
	Color Color   `yaml:"color"`
}

// Color is a straight RGBA color written as [r, g, b, a].
type Color [4]float32

func (c Color) render() render.Color {
	return render.RGBA(c[0], c[1], c[2], c[3])
}

// Layer lists the shapes drawn into one layer.
type Layer struct {
	ID     int      `yaml:"id"`
	Alpha  *float32 `yaml:"alpha,omitempty"`
	Blend  string   `yaml:"blend,omitempty"`
	Blur   float32  `yaml:"blur,omitempty"`
	Shapes []Shape  `yaml:"shapes"`
}

// Shape is an axis-aligned rectangle and how to paint it.
type Shape struct {
	Rect  [4]float32 `yaml:"rect"` // x0, y0, x1, y1
	Color Color      `yaml:"color"`
	Blend string     `yaml:"blend,omitempty"`

	// At most one of Gradient, Dash and Image.
	Gradient string    `yaml:"gradient,omitempty"`
	Dash     []float32 `yaml:"dash,omitempty"`
	Image    string    `yaml:"image,omitempty"`

	// Mask is "erase" or "clip" to add the rectangle to that mask of the
	// layer instead of drawing it.
	Mask string `yaml:"mask,omitempty"`

	Erase bool `yaml:"erase,omitempty"`
	Clip  bool `yaml:"clip,omitempty"`
}

// LoadScene reads a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	return ParseScene(data)
}

// ParseScene decodes a scene and applies defaults.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scene: %w", err)
	}
	if s.Width == 0 {
		s.Width = 256
	}
	if s.Height == 0 {
		s.Height = 256
	}
	for _, l := range s.Layers {
		for i, sh := range l.Shapes {
			if err := sh.validate(s.Gradients); err != nil {
				return nil, fmt.Errorf("layer %d shape %d: %w", l.ID, i, err)
			}
		}
	}
	return &s, nil
}

func (sh Shape) validate(gradients map[string][]Stop) error {
	fills := 0
	for _, set := range []bool{sh.Gradient != "", len(sh.Dash) > 0, sh.Image != ""} {
		if set {
			fills++
		}
	}
	if fills > 1 {
		return errors.New("more than one of gradient, dash and image")
	}
	if sh.Gradient != "" {
		if _, ok := gradients[sh.Gradient]; !ok {
			return fmt.Errorf("unknown gradient %q", sh.Gradient)
		}
	}
	switch sh.Mask {
	case "", "erase", "clip":
	default:
		return fmt.Errorf("unknown mask %q", sh.Mask)
	}
	return nil
}

// resources holds what a scene uploads before drawing.
type resources struct {
	gradients map[string]compose.Gradient
	dashes    map[*Shape]compose.DashPattern
	images    map[string]compose.Texture
}

func (s *Scene) upload(d *compose.Driver) (*resources, error) {
	r := &resources{
		gradients: make(map[string]compose.Gradient),
		dashes:    make(map[*Shape]compose.DashPattern),
		images:    make(map[string]compose.Texture),
	}
	for name, stops := range s.Gradients {
		gs := make([]compose.GradientStop, len(stops))
		for i, st := range stops {
			gs[i] = compose.GradientStop{Pos: st.Pos, Color: st.Color.render()}
		}
		g, err := d.CreateGradient(gs...)
		if err != nil {
			return nil, fmt.Errorf("gradient %q: %w", name, err)
		}
		r.gradients[name] = g
	}
	for li := range s.Layers {
		for si := range s.Layers[li].Shapes {
			sh := &s.Layers[li].Shapes[si]
			if len(sh.Dash) > 0 {
				p, err := d.CreateDashPattern(sh.Dash...)
				if err != nil {
					return nil, err
				}
				r.dashes[sh] = p
			}
			if sh.Image != "" {
				if _, ok := r.images[sh.Image]; ok {
					continue
				}
				t, err := loadTexture(d, sh.Image)
				if err != nil {
					return nil, err
				}
				r.images[sh.Image] = t
			}
		}
	}
	return r, nil
}

func loadTexture(d *compose.Driver, path string) (compose.Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return compose.Texture{}, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return compose.Texture{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return d.CreateTexture(img)
}

// Render draws s with d without flushing. Layers are tessellated
// concurrently and replayed through a queue in scene order.
func (s *Scene) Render(d *compose.Driver) error {
	res, err := s.upload(d)
	if err != nil {
		return err
	}

	q := compose.NewQueue()
	defer q.Close()
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(s.Layers))
	)
	for i := range s.Layers {
		ticket, err := q.Reserve()
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ops, err := s.Layers[i].ops(res)
			if err != nil {
				errs[i] = err
				ops = nil
			}
			errs[i] = errors.Join(errs[i], q.Submit(ticket, ops...))
		}()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if _, err := q.Drain(d); err != nil {
		return err
	}

	for _, l := range s.Layers {
		if l.Blur > 0 {
			if err := d.FilterLayer(l.ID, filter.NewBlur(l.Blur)); err != nil {
				return fmt.Errorf("layer %d: %w", l.ID, err)
			}
		}
	}
	return nil
}

// ops tessellates the layer into driver operations.
func (l *Layer) ops(res *resources) ([]compose.Op, error) {
	blend := render.BlendSourceOver
	if l.Blend != "" {
		var err error
		if blend, err = render.ParseBlendMode(l.Blend); err != nil {
			return nil, err
		}
	}
	alpha := float32(1)
	if l.Alpha != nil {
		alpha = *l.Alpha
	}
	id := l.ID
	ops := []compose.Op{
		compose.OpSelectLayer(id),
		func(d *compose.Driver) error { return d.SetLayerBlendMode(id, blend) },
		func(d *compose.Driver) error { return d.SetLayerAlpha(id, alpha) },
	}

	for i := range l.Shapes {
		sh := &l.Shapes[i]
		x0, y0, x1, y1 := sh.Rect[0], sh.Rect[1], sh.Rect[2], sh.Rect[3]
		quad := render.Quad(x0, y0, x1, y1, sh.Color.render())

		switch sh.Mask {
		case "erase":
			ops = append(ops, compose.OpDrawErase(quad))
			continue
		case "clip":
			ops = append(ops, compose.OpDrawClip(quad))
			continue
		}

		mode := render.BlendSourceOver
		if sh.Blend != "" {
			var err error
			if mode, err = render.ParseBlendMode(sh.Blend); err != nil {
				return nil, err
			}
		}
		fill := compose.SolidFill()
		switch {
		case sh.Gradient != "":
			fill = compose.GradientFill(res.gradients[sh.Gradient], 1)
		case len(sh.Dash) > 0:
			p := res.dashes[sh]
			for j := range quad {
				quad[j].TexCoord[0] = (quad[j].Pos[0] - x0) / p.Length()
			}
			fill = compose.DashFill(p)
		case sh.Image != "":
			t := res.images[sh.Image]
			tw, th := t.Size()
			m := render.Scale(float32(tw)/(x1-x0), float32(th)/(y1-y0)).Mul(render.Translate(-x0, -y0))
			fill = compose.TextureFill(t, m, 1)
		}
		ops = append(ops,
			compose.OpSetFill(fill),
			compose.OpSetBlendMode(mode),
			compose.OpSetEraseMask(sh.Erase),
			compose.OpSetClipMask(sh.Clip),
			compose.OpDraw(quad),
		)
	}
	return ops, nil
}
