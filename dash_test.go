package compose

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/compose/backend"
)

func TestBuildDashPattern(t *testing.T) {
	tests := []struct {
		name      string
		lengths   []float32
		wantTotal float32
		wantOn    int // leading texels on; the rest are off
	}{
		{"dash gap", []float32{2, 2}, 4, 128},
		{"short dash", []float32{1, 3}, 4, 64},
		{"single value is duplicated", []float32{5}, 10, 128},
		{"negative values become absolute", []float32{-1, 3}, 4, 64},
		{"zero dash", []float32{0, 4}, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern, total, err := BuildDashPattern(tt.lengths)
			if err != nil {
				t.Fatal(err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %v, want %v", total, tt.wantTotal)
			}
			if len(pattern) != DashSize {
				t.Fatalf("len = %d, want %d", len(pattern), DashSize)
			}
			for i, v := range pattern {
				want := float32(0)
				if i < tt.wantOn {
					want = 1
				}
				if v != want {
					t.Errorf("texel %d = %v, want %v", i, v, want)
					break
				}
			}
		})
	}
}

func TestBuildDashPatternThreeSegments(t *testing.T) {
	// [1, 1, 2] repeats to [1, 1, 2, 1, 1, 2]: on, off, on, off, on, off.
	pattern, total, err := BuildDashPattern([]float32{1, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 8 {
		t.Fatalf("total = %v, want 8", total)
	}
	at := func(pos float32) float32 {
		return pattern[int(pos/total*DashSize)]
	}
	for _, tt := range []struct {
		pos  float32
		want float32
	}{
		{0.5, 1}, {1.5, 0}, {3, 1}, {4.5, 0}, {5.5, 1}, {7, 0},
	} {
		if got := at(tt.pos); got != tt.want {
			t.Errorf("pattern at %v = %v, want %v", tt.pos, got, tt.want)
		}
	}
}

func TestBuildDashPatternRejects(t *testing.T) {
	tests := []struct {
		name    string
		lengths []float32
	}{
		{"nil", nil},
		{"all zero", []float32{0, 0, 0}},
		{"NaN", []float32{float32(math.NaN()), 1}},
		{"infinite", []float32{float32(math.Inf(1)), 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := BuildDashPattern(tt.lengths); !errors.Is(err, ErrConfiguration) {
				t.Errorf("BuildDashPattern(%v) error = %v, want ErrConfiguration", tt.lengths, err)
			}
		})
	}
}

func TestCreateDashPattern(t *testing.T) {
	d := newTestDriver(t, backend.BackendSoftware, 4, 4)
	p, err := d.CreateDashPattern(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.IsZero() {
		t.Fatal("pattern is zero")
	}
	if p.Length() != 4 {
		t.Errorf("Length() = %v, want 4", p.Length())
	}
	if err := d.ReleaseDashPattern(p); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseDashPattern(p); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("second release: %v, want ErrStaleHandle", err)
	}
	if _, err := d.CreateDashPattern(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("empty pattern: %v, want ErrConfiguration", err)
	}
}
