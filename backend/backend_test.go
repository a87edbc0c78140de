package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

type stubDevice struct{ name string }

func (d *stubDevice) CompileProgram(*shader.Program) (any, error) { return nil, nil }
func (d *stubDevice) Name() string                                { return d.name }
func (d *stubDevice) Capabilities() render.Capabilities {
	return render.Capabilities{SampleCounts: []int{1}, MaxTextureSize: 16}
}
func (d *stubDevice) CreateTexture(render.TextureDescriptor) (render.Texture, error) {
	return nil, nil
}
func (d *stubDevice) DestroyTexture(render.Texture)                      {}
func (d *stubDevice) WriteTexture(render.Texture, []byte) error          { return nil }
func (d *stubDevice) ReadTexture(render.Texture) ([]render.Color, error) { return nil, nil }
func (d *stubDevice) CreateBuffer([]byte) (Buffer, error)                { return nil, nil }
func (d *stubDevice) DestroyBuffer(Buffer)                               {}
func (d *stubDevice) Clear(render.Texture, render.Color) error           { return nil }
func (d *stubDevice) Draw(*DrawCall) error                               { return nil }
func (d *stubDevice) BlitResolve(render.Texture, render.Texture) error   { return nil }
func (d *stubDevice) Close() error                                       { return nil }

func withRegistry(t *testing.T, fn func()) {
	t.Helper()
	registryMu.Lock()
	saved := backends
	backends = make(map[string]Factory)
	registryMu.Unlock()
	defer func() {
		registryMu.Lock()
		backends = saved
		registryMu.Unlock()
	}()
	fn()
}

func TestRegisterAndOpen(t *testing.T) {
	withRegistry(t, func() {
		Register("stub", func() (Device, error) { return &stubDevice{name: "stub"}, nil })
		if !IsRegistered("stub") {
			t.Fatal("IsRegistered(stub) = false")
		}
		d, err := Open("stub")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if d.Name() != "stub" {
			t.Errorf("Name() = %q", d.Name())
		}
		if _, err := Open("missing"); !errors.Is(err, ErrBackendNotAvailable) {
			t.Errorf("Open(missing) error = %v", err)
		}
		Unregister("stub")
		if IsRegistered("stub") {
			t.Error("stub still registered after Unregister")
		}
	})
}

func TestDefaultPriority(t *testing.T) {
	withRegistry(t, func() {
		Register(BackendCompat, func() (Device, error) { return &stubDevice{name: BackendCompat}, nil })
		Register(BackendSoftware, func() (Device, error) { return &stubDevice{name: BackendSoftware}, nil })
		Register(BackendNative, func() (Device, error) { return nil, errors.New("no adapter") })

		d, err := Default()
		if err != nil {
			t.Fatalf("Default() error = %v", err)
		}
		if d.Name() != BackendSoftware {
			t.Errorf("Default() = %q, want %q", d.Name(), BackendSoftware)
		}
		if got := Available(); !slices.Equal(got, []string{BackendCompat, BackendNative, BackendSoftware}) {
			t.Errorf("Available() = %v", got)
		}
	})
}

func TestDefaultNoBackends(t *testing.T) {
	withRegistry(t, func() {
		if _, err := Default(); !errors.Is(err, ErrBackendNotAvailable) {
			t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
		}
		Register(BackendNative, func() (Device, error) { return nil, errors.New("no adapter") })
		if _, err := Default(); !errors.Is(err, ErrBackendNotAvailable) {
			t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
		}
	})
}

func TestVertexCount(t *testing.T) {
	if VertexCount(nil) != 0 {
		t.Error("VertexCount(nil) != 0")
	}
	if got := VertexCount(byteBuffer(make([]byte, 3*render.VertexStride))); got != 3 {
		t.Errorf("VertexCount = %d, want 3", got)
	}
}

type byteBuffer []byte

func (b byteBuffer) Len() int { return len(b) }
