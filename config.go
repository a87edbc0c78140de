package compose

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
)

// Config is the file form of the driver options.
//
// Example config.toml:
//
//	backend = "compat"
//	samples = 4
//	budget_mb = 128
//	alpha_mode = "straight"
type Config struct {
	// Backend names a registered backend. Empty selects the best one.
	Backend string `toml:"backend"`

	// Samples is the layer sample count. 0 selects the default.
	Samples int `toml:"samples"`

	// BudgetMB is the texture memory budget in MiB. 0 selects the default.
	BudgetMB int `toml:"budget_mb"`

	// EvictionThreshold is the budget fraction above which evictable
	// textures are released. 0 selects the default.
	EvictionThreshold float64 `toml:"eviction_threshold"`

	// AlphaMode is "", "straight" or "premultiplied".
	AlphaMode string `toml:"alpha_mode"`

	// Validate runs naga over every generated shader.
	Validate bool `toml:"validate"`

	// LogLevel is "", "debug", "info", "warn" or "error". Empty keeps
	// logging off.
	LogLevel string `toml:"log_level"`
}

// LoadConfig reads a TOML config file. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(string(data))
}

// ParseConfig decodes TOML config text. Unknown keys are an error.
func ParseConfig(data string) (Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown config keys %s", ErrConfiguration, strings.Join(keys, ", "))
	}
	return c, nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Options converts c to driver options. logOut receives log output when
// LogLevel is set; nil means stderr.
func (c Config) Options(logOut io.Writer) ([]Option, error) {
	var opts []Option
	if c.Backend != "" {
		opts = append(opts, WithBackend(c.Backend))
	}
	if c.Samples < 0 {
		return nil, fmt.Errorf("%w: samples = %d", ErrConfiguration, c.Samples)
	}
	if c.Samples > 0 {
		opts = append(opts, WithSamples(c.Samples))
	}
	if c.BudgetMB < 0 || c.EvictionThreshold < 0 || c.EvictionThreshold > 1 {
		return nil, fmt.Errorf("%w: budget %d MiB, threshold %v", ErrConfiguration, c.BudgetMB, c.EvictionThreshold)
	}
	if c.BudgetMB > 0 || c.EvictionThreshold > 0 {
		budget := uint64(resource.DefaultBudgetBytes)
		if c.BudgetMB > 0 {
			budget = uint64(c.BudgetMB) << 20
		}
		threshold := resource.DefaultEvictionThreshold
		if c.EvictionThreshold > 0 {
			threshold = c.EvictionThreshold
		}
		opts = append(opts, WithBudget(budget, threshold))
	}

	switch c.AlphaMode {
	case "":
	case "straight":
		opts = append(opts, WithAlphaMode(render.AlphaStraight))
	case "premultiplied":
		opts = append(opts, WithAlphaMode(render.AlphaPremultiplied))
	default:
		return nil, fmt.Errorf("%w: alpha_mode %q", ErrConfiguration, c.AlphaMode)
	}
	if c.Validate {
		opts = append(opts, WithValidation())
	}

	if c.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return nil, fmt.Errorf("%w: log_level: %w", ErrConfiguration, err)
		}
		if logOut == nil {
			logOut = os.Stderr
		}
		opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))))
	}
	return opts, nil
}
