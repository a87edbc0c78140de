package compose

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/compose/render"
)

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig(`
backend = "compat"
samples = 1
budget_mb = 64
eviction_threshold = 0.5
alpha_mode = "straight"
validate = true
log_level = "debug"
`)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Backend:           "compat",
		Samples:           1,
		BudgetMB:          64,
		EvictionThreshold: 0.5,
		AlphaMode:         "straight",
		Validate:          true,
		LogLevel:          "debug",
	}
	if c != want {
		t.Errorf("ParseConfig() = %+v, want %+v", c, want)
	}
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", `sample = 4`},
		{"wrong type", `samples = "four"`},
		{"syntax", `backend = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig(tt.data); !errors.Is(err, ErrConfiguration) {
				t.Errorf("ParseConfig(%q) error = %v, want ErrConfiguration", tt.data, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compose.toml")
	if err := os.WriteFile(path, []byte("backend = \"software\"\nsamples = 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Backend != "software" || c.Samples != 2 {
		t.Errorf("LoadConfig() = %+v", c)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v, want ErrNotExist", err)
	}
}

func TestConfigEncodeRoundTrip(t *testing.T) {
	c := Config{Backend: "compat", Samples: 4, BudgetMB: 32, AlphaMode: "straight"}
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `backend = "compat"`) {
		t.Errorf("encoded config lacks the backend:\n%s", buf.String())
	}
	got, err := ParseConfig(buf.String())
	if err != nil {
		t.Fatal(err)
	}
	if got != c {
		t.Errorf("round trip = %+v, want %+v", got, c)
	}
}

func TestConfigOptions(t *testing.T) {
	c := Config{
		Backend:           "software",
		Samples:           1,
		BudgetMB:          16,
		EvictionThreshold: 0.5,
		AlphaMode:         "straight",
		LogLevel:          "info",
	}
	var logs bytes.Buffer
	opts, err := c.Options(&logs)
	if err != nil {
		t.Fatal(err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.backendName != "software" || o.samples != 1 {
		t.Errorf("backend %q samples %d", o.backendName, o.samples)
	}
	if o.budget != 16<<20 || o.threshold != 0.5 {
		t.Errorf("budget %d threshold %v", o.budget, o.threshold)
	}
	if o.alpha == nil || *o.alpha != render.AlphaStraight {
		t.Errorf("alpha = %v, want straight", o.alpha)
	}

	d, err := New(4, 4, opts...)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.AlphaMode() != render.AlphaStraight {
		t.Errorf("AlphaMode() = %v", d.AlphaMode())
	}
	if !strings.Contains(logs.String(), "driver ready") {
		t.Errorf("log_level did not enable logging: %q", logs.String())
	}
}

func TestConfigOptionsDefaultsAreEmpty(t *testing.T) {
	opts, err := Config{}.Options(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 0 {
		t.Errorf("zero Config produced %d options", len(opts))
	}
}

func TestConfigOptionsRejects(t *testing.T) {
	tests := []struct {
		name string
		c    Config
	}{
		{"negative samples", Config{Samples: -1}},
		{"negative budget", Config{BudgetMB: -1}},
		{"threshold above one", Config{EvictionThreshold: 1.5}},
		{"alpha mode", Config{AlphaMode: "linear"}},
		{"log level", Config{LogLevel: "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.c.Options(nil); !errors.Is(err, ErrConfiguration) {
				t.Errorf("Options() error = %v, want ErrConfiguration", err)
			}
		})
	}
}
