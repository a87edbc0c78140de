package compose

import (
	"fmt"
	"math"

	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
)

// DashSize is the number of texels of a dash pattern.
const DashSize = 256

// DashPattern is an on/off pattern uploaded with
// [Driver.CreateDashPattern].
type DashPattern struct {
	h      resource.Handle
	length float32
}

// Length returns the length of one cycle of the pattern. Tessellators
// divide the distance along a stroke by it to get the texture coordinate.
func (p DashPattern) Length() float32 {
	return p.length
}

// IsZero reports whether p is the zero DashPattern.
func (p DashPattern) IsZero() bool {
	return p.h.IsZero()
}

// BuildDashPattern returns the DashSize coverage values of alternating
// dash and gap lengths, and the length of one cycle.
//
// Negative lengths count by their absolute value. An odd number of
// lengths is repeated once to make the cycle even, so [5] becomes [5, 5].
func BuildDashPattern(lengths []float32) ([]float32, float32, error) {
	if len(lengths) == 0 {
		return nil, 0, fmt.Errorf("%w: dash pattern without lengths", ErrConfiguration)
	}
	norm := make([]float32, 0, 2*len(lengths))
	var total float32
	for _, l := range lengths {
		if math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
			return nil, 0, fmt.Errorf("%w: dash length %v", ErrConfiguration, l)
		}
		l = float32(math.Abs(float64(l)))
		norm = append(norm, l)
		total += l
	}
	if total == 0 {
		return nil, 0, fmt.Errorf("%w: dash lengths are all zero", ErrConfiguration)
	}
	if len(norm)%2 != 0 {
		norm = append(norm, norm...)
		total *= 2
	}

	pattern := make([]float32, DashSize)
	seg, end := 0, norm[0]
	for i := range pattern {
		pos := (float32(i) + 0.5) / DashSize * total
		for pos >= end && seg < len(norm)-1 {
			seg++
			end += norm[seg]
		}
		if seg%2 == 0 {
			pattern[i] = 1
		}
	}
	return pattern, total, nil
}

// CreateDashPattern builds and uploads the pattern of lengths.
func (d *Driver) CreateDashPattern(lengths ...float32) (DashPattern, error) {
	if err := d.check(); err != nil {
		return DashPattern{}, err
	}
	pattern, total, err := BuildDashPattern(lengths)
	if err != nil {
		return DashPattern{}, err
	}
	h, err := d.res.CreateTexture(render.TextureDescriptor{
		Label:  "dash",
		Width:  DashSize,
		Height: 1,
	})
	if err != nil {
		return DashPattern{}, err
	}
	data := make([]byte, 0, 4*DashSize)
	for _, a := range pattern {
		v := uint8(a * 255)
		data = append(data, 255, 255, 255, v)
	}
	if err := d.write(h, data); err != nil {
		_ = d.res.Free(h)
		return DashPattern{}, err
	}
	return DashPattern{h: h, length: total}, nil
}

// ReleaseDashPattern frees p.
func (d *Driver) ReleaseDashPattern(p DashPattern) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.res.Free(p.h)
}
