package compose

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
)

// RampSize is the number of texels of a gradient ramp.
const RampSize = 256

// GradientStop is a color at a position of a gradient.
type GradientStop struct {
	Pos   float32 // 0 at the start of the gradient, 1 at the end
	Color render.Color
}

// Gradient is a ramp uploaded with [Driver.CreateGradient].
type Gradient struct {
	h resource.Handle
}

// IsZero reports whether g is the zero Gradient.
func (g Gradient) IsZero() bool {
	return g.h.IsZero()
}

// BuildRamp interpolates stops into RampSize straight-alpha colors. Texel
// i holds the gradient at i/(RampSize-1).
//
// Stops are ordered by position; stops sharing a position keep their
// order. Of several stops at one position the last wins: it owns the
// position and starts the segment after it.
func BuildRamp(stops []GradientStop) ([]render.Color, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: gradient without stops", ErrConfiguration)
	}
	for _, s := range stops {
		if math.IsNaN(float64(s.Pos)) || math.IsInf(float64(s.Pos), 0) {
			return nil, fmt.Errorf("%w: gradient stop at %v", ErrConfiguration, s.Pos)
		}
	}
	sorted := slices.Clone(stops)
	slices.SortStableFunc(sorted, func(a, b GradientStop) int {
		return cmp.Compare(a.Pos, b.Pos)
	})

	ramp := make([]render.Color, RampSize)
	for i := range ramp {
		ramp[i] = colorAt(sorted, float32(i)/(RampSize-1))
	}
	return ramp, nil
}

// colorAt interpolates between the last stop at or before t and the
// stop after it.
func colorAt(stops []GradientStop, t float32) render.Color {
	// First stop with Pos > t.
	next, _ := slices.BinarySearchFunc(stops, t, func(s GradientStop, t float32) int {
		if s.Pos <= t {
			return -1
		}
		return 1
	})
	switch {
	case next == 0:
		return stops[0].Color
	case next == len(stops):
		return stops[len(stops)-1].Color
	}
	a, b := stops[next-1], stops[next]
	return a.Color.Lerp(b.Color, (t-a.Pos)/(b.Pos-a.Pos))
}

// CreateGradient builds and uploads the ramp of stops.
func (d *Driver) CreateGradient(stops ...GradientStop) (Gradient, error) {
	if err := d.check(); err != nil {
		return Gradient{}, err
	}
	ramp, err := BuildRamp(stops)
	if err != nil {
		return Gradient{}, err
	}
	h, err := d.res.CreateTexture(render.TextureDescriptor{
		Label:  "gradient",
		Width:  RampSize,
		Height: 1,
	})
	if err != nil {
		return Gradient{}, err
	}
	data := make([]byte, 0, 4*RampSize)
	for _, c := range ramp {
		b := c.Bytes()
		data = append(data, b[:]...)
	}
	if err := d.write(h, data); err != nil {
		_ = d.res.Free(h)
		return Gradient{}, err
	}
	return Gradient{h: h}, nil
}

// ReleaseGradient frees g.
func (d *Driver) ReleaseGradient(g Gradient) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.res.Free(g.h)
}
