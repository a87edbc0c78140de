package compose

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/compose/filter"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
)

// Texture is an image uploaded with [Driver.CreateTexture]. It stays
// valid until [Driver.ReleaseTexture] or [Driver.Close].
type Texture struct {
	h             resource.Handle
	width, height int
}

// Size returns the texture size in texels.
func (t Texture) Size() (width, height int) {
	return t.width, t.height
}

// IsZero reports whether t is the zero Texture.
func (t Texture) IsZero() bool {
	return t.h.IsZero()
}

// CreateTexture uploads img as a straight-alpha RGBA texture. Images
// larger than the backend's maximum texture size are scaled down to fit,
// keeping their aspect ratio.
func (d *Driver) CreateTexture(img image.Image) (Texture, error) {
	if err := d.check(); err != nil {
		return Texture{}, err
	}
	b := img.Bounds()
	if b.Empty() {
		return Texture{}, fmt.Errorf("%w: empty image", ErrConfiguration)
	}
	dst := toNRGBA(img, d.caps.MaxTextureSize)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()

	handle, err := d.res.CreateTexture(render.TextureDescriptor{
		Label:  fmt.Sprintf("image%dx%d", w, h),
		Width:  w,
		Height: h,
	})
	if err != nil {
		return Texture{}, err
	}
	if err := d.write(handle, dst.Pix); err != nil {
		_ = d.res.Free(handle)
		return Texture{}, err
	}
	return Texture{h: handle, width: w, height: h}, nil
}

// ReleaseTexture frees t. Fills that still reference it fail with
// ErrStaleHandle.
func (d *Driver) ReleaseTexture(t Texture) error {
	if err := d.check(); err != nil {
		return err
	}
	return d.res.Free(t.h)
}

// toNRGBA converts img to tightly packed non-premultiplied RGBA, scaling
// it down with a Catmull-Rom filter when a side exceeds maxSize.
func toNRGBA(img image.Image, maxSize int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxSize || h > maxSize {
		scale := float64(maxSize) / float64(max(w, h))
		w = max(int(float64(w)*scale), 1)
		h = max(int(float64(h)*scale), 1)
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}
	if n, ok := img.(*image.NRGBA); ok && n.Stride == 4*w && n.Rect.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func (d *Driver) write(h resource.Handle, data []byte) error {
	tex, err := d.res.Texture(h)
	if err != nil {
		return err
	}
	return d.dev.WriteTexture(tex, data)
}

// MaskFilter returns a filter multiplying its source by the alpha of t.
func MaskFilter(t Texture) filter.Filter {
	return filter.Mask{Texture: t.h}
}

// DisplaceFilter returns a filter offsetting its source by the red and
// green channels of m, scaled by sx and sy pixels.
func DisplaceFilter(m Texture, sx, sy float32) filter.Filter {
	return filter.Displace{Map: m.h, ScaleX: sx, ScaleY: sy}
}
