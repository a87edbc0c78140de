// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package mask

import (
	"errors"
	"testing"

	"github.com/gogpu/compose/backend/software"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

func newCompositor(t *testing.T, samples int) (*Compositor, *resource.Manager) {
	t.Helper()
	dev := software.New()
	reg, err := shader.NewRegistry(dev.Capabilities(), dev)
	if err != nil {
		t.Fatal(err)
	}
	res := resource.New(dev, resource.Config{})
	c, err := New(dev, reg, res, samples)
	if err != nil {
		t.Fatal(err)
	}
	return c, res
}

func TestNewRejectsUnsupportedSamples(t *testing.T) {
	dev := software.New()
	reg, err := shader.NewRegistry(dev.Capabilities(), dev)
	if err != nil {
		t.Fatal(err)
	}
	res := resource.New(dev, resource.Config{})
	if _, err := New(dev, reg, res, 16); !errors.Is(err, render.ErrCapabilityMismatch) {
		t.Errorf("New(16) error = %v, want ErrCapabilityMismatch", err)
	}
}

func TestDrawEraseCoverage(t *testing.T) {
	for _, samples := range []int{1, 4} {
		c, _ := newCompositor(t, samples)
		err := c.DrawErase(0, 4, 4, render.Quad(0, 0, 2, 4, render.White), render.PixelSpace(4, 4))
		if err != nil {
			t.Fatal(err)
		}
		tests := []struct {
			x    int
			want float32
		}{
			{0, 1}, {1, 1}, {2, 0}, {3, 0},
		}
		for _, tt := range tests {
			got, err := c.Sample(Erase, 0, tt.x, 1)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("x%d: erase(%d,1) = %v, want %v", samples, tt.x, got, tt.want)
			}
		}
		// The clip mask of the layer is untouched.
		if got, _ := c.Sample(Clip, 0, 0, 0); got != 0 {
			t.Errorf("clip coverage = %v, want 0", got)
		}
	}
}

func TestCoverageUnion(t *testing.T) {
	c, _ := newCompositor(t, 4)
	xf := render.PixelSpace(2, 1)
	// Half of pixel 1 twice over is still half covered; the right half
	// completes it.
	for _, quad := range [][]render.Vertex{
		render.Quad(0, 0, 1.5, 1, render.White),
		render.Quad(0, 0, 1.5, 1, render.White),
	} {
		if err := c.DrawClip(0, 2, 1, quad, xf); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := c.Sample(Clip, 0, 1, 0); got != 0.5 {
		t.Errorf("after overlapping draws coverage = %v, want 0.5", got)
	}
	if err := c.DrawClip(0, 2, 1, render.Quad(1.5, 0, 2, 1, render.White), xf); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Sample(Clip, 0, 1, 0); got != 1 {
		t.Errorf("union coverage = %v, want 1", got)
	}
}

func TestClearAndInvalidate(t *testing.T) {
	c, res := newCompositor(t, 4)
	quad := render.Quad(0, 0, 4, 4, render.White)
	if err := c.DrawClip(3, 4, 4, quad, render.PixelSpace(4, 4)); err != nil {
		t.Fatal(err)
	}
	if err := c.ClearClip(3); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Sample(Clip, 3, 2, 2); got != 0 {
		t.Errorf("cleared coverage = %v", got)
	}

	before := res.Stats().Textures
	c.Invalidate(3)
	if got := res.Stats().Textures; got != before-1 {
		t.Errorf("textures after Invalidate = %d, want %d", got, before-1)
	}

	// A resized layer gets fresh masks.
	if err := c.DrawErase(3, 4, 4, quad, render.PixelSpace(4, 4)); err != nil {
		t.Fatal(err)
	}
	if err := c.DrawErase(3, 8, 8, render.Quad(0, 0, 1, 1, render.White), render.PixelSpace(8, 8)); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Sample(Erase, 3, 4, 4); got != 0 {
		t.Errorf("coverage survived resize: %v", got)
	}
}

func TestBindings(t *testing.T) {
	c, _ := newCompositor(t, 4)
	b, err := c.Bindings(1, 4, 4, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if b.Erase == nil || b.Clip == nil || b.Samples != 4 {
		t.Fatalf("Bindings() = %+v", b)
	}
	if b.Erase.Descriptor().Format != render.FormatR8 {
		t.Errorf("mask format = %v", b.Erase.Descriptor().Format)
	}
	b, err = c.Bindings(1, 4, 4, false, true)
	if err != nil || b.Erase != nil {
		t.Errorf("Bindings(clip only) = %+v, %v", b, err)
	}
}

func TestMean(t *testing.T) {
	got := Mean([]render.Color{{R: 1}, {R: 0}, {R: 0.5}, {R: 0.5}})
	if got != 0.5 {
		t.Errorf("Mean() = %v, want 0.5", got)
	}
	if Mean(nil) != 0 {
		t.Error("Mean(nil) != 0")
	}
}
