package compose

import (
	"log/slog"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/internal/resource"
	"github.com/gogpu/compose/render"
)

// Option configures a Driver during creation.
//
// Example:
//
//	// Best available backend, 4x multisampling
//	d, err := compose.New(800, 600)
//
//	// Compatibility backend without multisampling
//	d, err := compose.New(800, 600,
//		compose.WithBackend("compat"),
//		compose.WithSamples(1))
type Option func(*options)

// options holds optional configuration for Driver creation.
type options struct {
	device      backend.Device
	backendName string
	samples     int // 0 selects the largest supported count up to 4
	budget      uint64
	threshold   float64
	alpha       *render.AlphaMode
	validate    bool
	logger      *slog.Logger
}

// defaultSamples is the preferred sample count when none is requested.
const defaultSamples = 4

func defaultOptions() options {
	return options{
		budget:    resource.DefaultBudgetBytes,
		threshold: resource.DefaultEvictionThreshold,
	}
}

// WithDevice makes the driver render with dev. The driver does not close
// a device it did not open.
func WithDevice(dev backend.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithBackend opens the named registered backend instead of the best
// available one.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backendName = name
	}
}

// WithSamples sets the multisample count of every layer and mask.
// Counts the backend does not support fail with ErrCapabilityMismatch.
func WithSamples(n int) Option {
	return func(o *options) {
		o.samples = n
	}
}

// WithBudget sets the texture memory budget in bytes and the fraction of
// it above which evictable textures are released.
func WithBudget(bytes uint64, threshold float64) Option {
	return func(o *options) {
		o.budget = bytes
		o.threshold = threshold
	}
}

// WithAlphaMode selects the output encoding of draw variants. By default
// premultiplied output is used where the backend writes it natively.
// Requesting premultiplied output on a backend without native support
// fails with ErrCapabilityMismatch.
func WithAlphaMode(m render.AlphaMode) Option {
	return func(o *options) {
		o.alpha = &m
	}
}

// WithValidation validates every generated shader with naga while the
// registry is built.
func WithValidation() Option {
	return func(o *options) {
		o.validate = true
	}
}

// WithLogger sets the driver logger. It defaults to [Logger].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
