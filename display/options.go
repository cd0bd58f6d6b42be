package display

// Option configures a Distorter.
type Option func(*options)

type options struct {
	cells    int
	strength float32
	scale    float32
	spread   float32
	mode     Mode
}

func defaultOptions() options {
	return options{
		cells:    16,
		strength: 0.65,
		scale:    0.125,
		spread:   0.015,
		mode:     ModeDistort,
	}
}

// WithCells sets the number of flow samples per axis. The image is shifted
// in blocks of 1/cells of its width and height.
func WithCells(n int) Option {
	return func(o *options) {
		o.cells = n
	}
}

// WithStrength scales the sampled velocity.
func WithStrength(s float32) Option {
	return func(o *options) {
		o.strength = s
	}
}

// WithScale scales the offset after the intensity weighting.
func WithScale(s float32) Option {
	return func(o *options) {
		o.scale = s
	}
}

// WithSpread sets the shift distance as a fraction of the output width.
func WithSpread(s float32) Option {
	return func(o *options) {
		o.spread = s
	}
}

// WithMode sets the initial render mode.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}
