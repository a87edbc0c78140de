package filter

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Blur kernel constants. The Gaussian has a fixed standard deviation of
// BlurSigma; the radius sets how far apart the taps sit on it.
const (
	BlurSigma = 0.25

	// kernelSpan is the kernel width in standard deviations.
	kernelSpan = 8
)

// Fixed kernel sizes. A radius whose kernel fits one of them rounds up
// to it; larger radii get a kernel of their own size.
var fixedTaps = []int{9, 29, 61}

// Kernel is a separable blur kernel after linear-sampling collapse.
//
// Offsets[0] is 0 and Weights[0] is the center weight. Every later
// entry is a pair of neighbouring taps merged into one bilinear fetch at
// Offsets[i] pixels from the center, applied on both sides with
// Weights[i]. The weights sum to 1 counting each side once.
type Kernel struct {
	// Taps is the size of the kernel before collapse.
	Taps int

	// Step is the distance between taps in units of the Gaussian
	// argument: 1/radius.
	Step float32

	Offsets []float32
	Weights []float32
}

// IsZero reports whether k is the zero kernel, which blurs nothing.
func (k Kernel) IsZero() bool {
	return len(k.Weights) == 0
}

// Len returns the number of fetches per side after collapse, center
// included.
func (k Kernel) Len() int {
	return len(k.Weights)
}

// Sum returns the total weight, counting both sides.
func (k Kernel) Sum() float32 {
	if k.IsZero() {
		return 0
	}
	sum := k.Weights[0]
	for _, w := range k.Weights[1:] {
		sum += 2 * w
	}
	return sum
}

// IdentityKernel returns the single-tap kernel. Blurring with it copies
// the source.
func IdentityKernel() Kernel {
	return Kernel{Taps: 1, Step: 1, Offsets: []float32{0}, Weights: []float32{1}}
}

// KernelSize returns the number of taps a radius needs before rounding
// to a fixed size: ceil(sigma/step * 8).
func KernelSize(radius float32) int {
	if radius <= 1 {
		return 0
	}
	// sigma/step with step = 1/radius.
	return int(math.Ceil(BlurSigma * float64(radius) * kernelSpan))
}

// KernelForRadius returns the blur kernel for a radius in pixels. A
// radius of 1 or less has no visible effect and returns the zero kernel.
//
// Kernels are cached by tap count and step.
func KernelForRadius(radius float32) Kernel {
	size := KernelSize(radius)
	if size == 0 {
		return Kernel{}
	}
	taps := size | 1
	for _, n := range fixedTaps {
		if size <= n {
			taps = n
			break
		}
	}
	return cachedKernel(taps, 1/radius)
}

// GaussianKernel builds a kernel of taps samples spaced step apart on a
// Gaussian with standard deviation BlurSigma, then collapses it for
// linear sampling. taps is rounded up to an odd number.
func GaussianKernel(taps int, step float32) Kernel {
	if taps <= 1 || step <= 0 {
		return IdentityKernel()
	}
	taps |= 1
	half := taps / 2

	raw := make([]float64, half+1)
	twoSigmaSq := 2 * BlurSigma * BlurSigma
	sum := 0.0
	for i := range raw {
		x := float64(i) * float64(step)
		raw[i] = math.Exp(-(x * x) / twoSigmaSq)
		if i == 0 {
			sum += raw[i]
		} else {
			sum += 2 * raw[i]
		}
	}
	for i := range raw {
		raw[i] /= sum
	}

	k := Kernel{
		Taps:    taps,
		Step:    step,
		Offsets: []float32{0},
		Weights: []float32{float32(raw[0])},
	}
	for i := 1; i <= half; i += 2 {
		if i == half {
			k.Offsets = append(k.Offsets, float32(i))
			k.Weights = append(k.Weights, float32(raw[i]))
			break
		}
		w := raw[i] + raw[i+1]
		off := float64(i) + 0.5
		if w > 0 {
			off = (float64(i)*raw[i] + float64(i+1)*raw[i+1]) / w
		}
		k.Offsets = append(k.Offsets, float32(off))
		k.Weights = append(k.Weights, float32(w))
	}
	return k
}

type kernelKey struct {
	taps int
	step float32
}

// kernelCacheSize bounds the number of distinct radii kept.
const kernelCacheSize = 64

var kernelCache = newKernelCache(kernelCacheSize)

func newKernelCache(size int) *lru.Cache[kernelKey, Kernel] {
	c, err := lru.New[kernelKey, Kernel](size)
	if err != nil {
		panic(err)
	}
	return c
}

func cachedKernel(taps int, step float32) Kernel {
	key := kernelKey{taps: taps, step: step}
	if k, ok := kernelCache.Get(key); ok {
		return k
	}
	k := GaussianKernel(taps, step)
	kernelCache.Add(key, k)
	return k
}
