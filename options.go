package flowmap

import (
	"log/slog"

	"github.com/gogpu/gpucontext"
)

// Option configures a Flowmap during creation.
//
// Example:
//
//	// Defaults: 128×128 buffers, falloff 0.3, dissipation 0.98
//	fm, err := flowmap.New()
//
//	// Trail-heavy configuration stamping only while the button is held
//	fm, err := flowmap.New(
//	    flowmap.WithSize(256),
//	    flowmap.WithDissipation(0.95),
//	    flowmap.WithVelocityFactor(20, 20),
//	    flowmap.WithPressedGate(true),
//	)
type Option func(*options)

// options holds optional configuration for Flowmap creation.
type options struct {
	size        int
	params      Params
	swap        bool
	workers     int
	accelerator Accelerator
	provider    gpucontext.DeviceProvider
	logger      *slog.Logger
}

// DefaultSize is the buffer size used when WithSize is not given.
const DefaultSize = 128

// defaultOptions returns the default flowmap options.
func defaultOptions() options {
	return options{
		size:   DefaultSize,
		params: DefaultParams(),
		swap:   true,
	}
}

// WithSize sets the width and height of both buffers in texels.
// The size is independent of the display resolution.
func WithSize(size int) Option {
	return func(o *options) {
		o.size = size
	}
}

// WithFalloff sets the stamp radius in UV units, in (0, 1].
func WithFalloff(falloff float32) Option {
	return func(o *options) {
		o.params.Falloff = falloff
	}
}

// WithAlpha sets the stamp opacity, in [0, 1].
func WithAlpha(alpha float32) Option {
	return func(o *options) {
		o.params.Alpha = alpha
	}
}

// WithDissipation sets the per-pass decay factor, in [0, 1].
// Values near 1 leave long trails; values near 0 fade almost instantly.
func WithDissipation(dissipation float32) Option {
	return func(o *options) {
		o.params.Dissipation = dissipation
	}
}

// WithVelocityFactor scales the pointer velocity before it is stamped.
func WithVelocityFactor(x, y float32) Option {
	return func(o *options) {
		o.params.VelocityFactor = V2(x, y)
	}
}

// WithAspect sets the initial viewport aspect ratio (width / height).
func WithAspect(aspect float32) Option {
	return func(o *options) {
		o.params.Aspect = aspect
	}
}

// WithSwap controls whether Update swaps the read and write buffers.
// With swap disabled, Update keeps rendering from the same read buffer and the
// newest result is available from Write until Swap is called.
func WithSwap(swap bool) Option {
	return func(o *options) {
		o.swap = swap
	}
}

// WithPressedGate makes stamping conditional on SetPressed(true).
func WithPressedGate(gate bool) Option {
	return func(o *options) {
		o.params.PressedGate = gate
	}
}

// WithWorkers sets the number of goroutines used by the CPU pass.
// Zero (the default) uses GOMAXPROCS; one runs the pass on the caller.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithAccelerator offers every pass to a backend before the CPU kernel.
// The Flowmap owns the accelerator: Init is called by New and Close by
// Flowmap.Close.
func WithAccelerator(a Accelerator) Option {
	return func(o *options) {
		o.accelerator = a
	}
}

// WithDeviceProvider hands a host GPU device to the accelerator, which must
// implement DeviceProviderAware. GPU accelerators additionally expect the
// provider to expose HAL handles (see gpucontext.HalProvider).
func WithDeviceProvider(provider gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithLogger sets the logger for this Flowmap. Without it, the package
// default (see SetLogger) at creation time is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithParams replaces the whole parameter block, e.g. from Config.Params.
func WithParams(p Params) Option {
	return func(o *options) {
		o.params = p
	}
}
