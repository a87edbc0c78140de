package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/render"
)

func TestParseSceneDefaults(t *testing.T) {
	s, err := ParseScene([]byte("layers:\n  - id: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Width != 256 || s.Height != 256 {
		t.Errorf("size = %dx%d, want 256x256", s.Width, s.Height)
	}
	if len(s.Layers) != 1 || s.Layers[0].ID != 3 {
		t.Errorf("layers = %+v", s.Layers)
	}
}

func TestParseSceneRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"syntax", "layers: [", "parsing scene"},
		{"unknown gradient", "layers:\n  - shapes:\n      - {rect: [0, 0, 1, 1], gradient: nope}\n", "unknown gradient"},
		{"two fills", "gradients: {g: [{pos: 0}]}\nlayers:\n  - shapes:\n      - {rect: [0, 0, 1, 1], gradient: g, dash: [1]}\n", "more than one"},
		{"unknown mask", "layers:\n  - shapes:\n      - {rect: [0, 0, 1, 1], mask: stencil}\n", "unknown mask"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScene([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseScene() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRenderScene(t *testing.T) {
	s, err := LoadScene(filepath.Join("testdata", "scene.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	d, err := compose.New(s.Width, s.Height, compose.WithBackend("software"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := s.Render(d); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Inside the erased square only the opaque gradient shows.
	c, err := d.Pixel(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	if c.A < 0.99 || c.B > 0.6 {
		t.Errorf("erased pixel = %v, want opaque gradient", c)
	}
	// Outside it the translucent blue layer tints the gradient.
	c, err = d.Pixel(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if c.B < 0.7 {
		t.Errorf("blue layer pixel = %v", c)
	}

	img, err := d.Frame()
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got.X != 64 || got.Y != 32 {
		t.Errorf("frame size = %v", got)
	}
}

func TestLayerOpsRejectBlendMode(t *testing.T) {
	l := Layer{Blend: "overlay"}
	if _, err := l.ops(&resources{}); err == nil {
		t.Error("unknown layer blend mode accepted")
	}
	l = Layer{Shapes: []Shape{{Rect: [4]float32{0, 0, 1, 1}, Blend: "hue"}}}
	if _, err := l.ops(&resources{}); err == nil {
		t.Error("unknown shape blend mode accepted")
	}
}

func TestColor(t *testing.T) {
	if got := (Color{1, 0, 0, 1}).render(); got != render.Red {
		t.Errorf("render() = %v, want red", got)
	}
}
