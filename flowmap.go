package flowmap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/flowmap/internal/parallel"
)

// Flowmap is a ping-pong pair of flow buffers plus the parameters of the
// accumulation pass.
//
// Each Update renders the write buffer from the read buffer (decay, then a
// velocity stamp around the pointer) and swaps the two roles. Consumers
// sample Read, which always holds the latest complete field.
//
// A Flowmap is driven from a single logical thread: setters are called
// before the Update that should observe them, and SetSize must not be
// called while an Update is running. It is not safe for concurrent use.
type Flowmap struct {
	buffers [2]*Buffer
	read    int // index of the read buffer; the write buffer is 1-read

	params Params
	swap   bool
	frame  uint64

	pool   *parallel.WorkerPool
	accel  Accelerator
	log    *slog.Logger
	closed bool
}

// New creates a Flowmap with zeroed buffers.
//
// It returns an error wrapping ErrConfiguration for invalid sizes or
// parameters, and ErrDevice when the accelerator fails to initialize or to
// attach to the device provider.
func New(opts ...Option) (*Flowmap, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.params.Validate(); err != nil {
		return nil, err
	}
	if o.workers < 0 {
		return nil, fmt.Errorf("%w: workers %d is negative", ErrConfiguration, o.workers)
	}
	if o.provider != nil && o.accelerator == nil {
		return nil, fmt.Errorf("%w: device provider given without an accelerator", ErrConfiguration)
	}

	log := o.logger
	if log == nil {
		log = Logger()
	}

	fm := &Flowmap{
		params: o.params,
		swap:   o.swap,
		log:    log,
	}
	if err := fm.allocate(o.size); err != nil {
		return nil, err
	}

	if o.accelerator != nil {
		if err := attachAccelerator(o.accelerator, o.provider, log); err != nil {
			return nil, err
		}
		fm.accel = o.accelerator
		log.Info("flowmap: accelerator selected", "name", fm.accel.Name())
	}

	if o.workers != 1 {
		fm.pool = parallel.NewWorkerPool(o.workers)
	}

	log.Debug("flowmap: created",
		"size", o.size,
		"falloff", o.params.Falloff,
		"dissipation", o.params.Dissipation,
		"alpha", o.params.Alpha,
		"swap", o.swap)
	return fm, nil
}

// attachAccelerator initializes a and hands it the device provider.
func attachAccelerator(a Accelerator, provider any, log *slog.Logger) error {
	propagateLogger(a, log)
	if err := a.Init(); err != nil {
		return fmt.Errorf("%w: %s init: %w", ErrDevice, a.Name(), err)
	}
	if provider == nil {
		return nil
	}
	aware, ok := a.(DeviceProviderAware)
	if !ok {
		a.Close()
		return fmt.Errorf("%w: %s cannot use a device provider", ErrDevice, a.Name())
	}
	if err := aware.SetDeviceProvider(provider); err != nil {
		a.Close()
		return fmt.Errorf("%w: %s: %w", ErrDevice, a.Name(), err)
	}
	return nil
}

func (fm *Flowmap) allocate(size int) error {
	a, err := NewBuffer(size)
	if err != nil {
		return err
	}
	b, err := NewBuffer(size)
	if err != nil {
		return err
	}
	fm.buffers = [2]*Buffer{a, b}
	fm.read = 0
	return nil
}

// Update performs one simulation step: a full pass from the read buffer
// into the write buffer, then (unless swapping is disabled) a role swap.
//
// Update never fails. Accelerator errors are logged and the pass is rerun on
// the CPU. After Close, Update does nothing.
func (fm *Flowmap) Update() {
	if fm.closed {
		return
	}
	src, dst := fm.Read(), fm.Write()
	fm.accumulate(dst, src)
	fm.frame++
	if fm.swap {
		fm.Swap()
	}
}

// Step is Update under the name host frame loops usually call it.
func (fm *Flowmap) Step() {
	fm.Update()
}

func (fm *Flowmap) accumulate(dst, src *Buffer) {
	if fm.accel != nil {
		err := fm.accel.Accumulate(dst, src, fm.params)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			fm.log.Warn("flowmap: accelerator pass failed, using CPU",
				"accelerator", fm.accel.Name(), "frame", fm.frame, "err", err)
		}
	}
	softwarePass(fm.pool, dst, src, &fm.params)
}

// Swap exchanges the read and write roles.
// Update calls it automatically unless the Flowmap was created
// WithSwap(false).
func (fm *Flowmap) Swap() {
	fm.read = 1 - fm.read
}

// Read returns the buffer holding the latest complete field.
func (fm *Flowmap) Read() *Buffer {
	return fm.buffers[fm.read]
}

// Write returns the buffer the next Update renders into.
func (fm *Flowmap) Write() *Buffer {
	return fm.buffers[1-fm.read]
}

// ReadIndex returns which of the two buffers (0 or 1) is currently read.
func (fm *Flowmap) ReadIndex() int {
	return fm.read
}

// Buffer returns buffer i (0 or 1) regardless of its role.
func (fm *Flowmap) Buffer(i int) *Buffer {
	return fm.buffers[i&1]
}

// Size returns the buffer size in texels.
func (fm *Flowmap) Size() int {
	return fm.buffers[0].Size()
}

// Frame returns the number of Updates performed since creation or the last
// Reset.
func (fm *Flowmap) Frame() uint64 {
	return fm.frame
}

// Params returns a copy of the current pass parameters.
func (fm *Flowmap) Params() Params {
	return fm.params
}

// SwapEnabled reports whether Update swaps buffers.
func (fm *Flowmap) SwapEnabled() bool {
	return fm.swap
}

// SetPointer sets the stamp center in UV space for the next Update.
// Positions outside [0, 1] are valid (pointer dragged off-screen).
// Non-finite values are ignored.
func (fm *Flowmap) SetPointer(u, v float32) {
	p := V2(u, v)
	if !p.IsFinite() {
		fm.log.Debug("flowmap: ignoring non-finite pointer", "u", u, "v", v)
		return
	}
	fm.params.Pointer = p
}

// SetVelocity sets the pointer velocity (UV delta per frame) for the next
// Update. Non-finite values are ignored.
func (fm *Flowmap) SetVelocity(dx, dy float32) {
	v := V2(dx, dy)
	if !v.IsFinite() {
		fm.log.Debug("flowmap: ignoring non-finite velocity", "dx", dx, "dy", dy)
		return
	}
	fm.params.Velocity = v
}

// SetPressed sets the pointer button state. It only affects the field when
// the pressed gate is enabled.
func (fm *Flowmap) SetPressed(pressed bool) {
	fm.params.Pressed = pressed
}

// SetPressedGate enables or disables stamping conditional on SetPressed.
func (fm *Flowmap) SetPressedGate(gate bool) {
	fm.params.PressedGate = gate
}

// SetAspect sets the viewport aspect ratio (width / height). It must be
// updated whenever the host viewport changes. Non-positive or non-finite
// values are ignored.
func (fm *Flowmap) SetAspect(aspect float32) {
	if !isFinite(aspect) || aspect <= 0 {
		fm.log.Debug("flowmap: ignoring invalid aspect", "aspect", aspect)
		return
	}
	fm.params.Aspect = aspect
}

// SetResolution records the viewport size in pixels and derives the aspect
// ratio from it. Zero or negative sizes (a minimized window) are ignored.
func (fm *Flowmap) SetResolution(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	fm.params.Resolution = V2(float32(width), float32(height))
	fm.params.Aspect = float32(width) / float32(height)
}

// SetFalloff changes the stamp radius.
func (fm *Flowmap) SetFalloff(falloff float32) error {
	return fm.tune(func(p *Params) { p.Falloff = falloff })
}

// SetAlpha changes the stamp opacity.
func (fm *Flowmap) SetAlpha(alpha float32) error {
	return fm.tune(func(p *Params) { p.Alpha = alpha })
}

// SetDissipation changes the per-pass decay factor.
func (fm *Flowmap) SetDissipation(dissipation float32) error {
	return fm.tune(func(p *Params) { p.Dissipation = dissipation })
}

// SetVelocityFactor changes the velocity scale.
func (fm *Flowmap) SetVelocityFactor(x, y float32) error {
	return fm.tune(func(p *Params) { p.VelocityFactor = V2(x, y) })
}

// tune applies fn to a copy of the parameters and keeps the result only if
// it validates.
func (fm *Flowmap) tune(fn func(*Params)) error {
	p := fm.params
	fn(&p)
	if err := p.Validate(); err != nil {
		return err
	}
	fm.params = p
	return nil
}

// SetSize recreates both buffers at the new size. The accumulated field is
// discarded. It must be called between frames.
func (fm *Flowmap) SetSize(size int) error {
	if fm.closed {
		return ErrClosed
	}
	if size == fm.Size() {
		return nil
	}
	if err := fm.allocate(size); err != nil {
		return err
	}
	fm.log.Info("flowmap: buffers resized", "size", size)
	return nil
}

// Reset zeroes both buffers and the frame counter without reallocating.
func (fm *Flowmap) Reset() {
	fm.buffers[0].Clear()
	fm.buffers[1].Clear()
	fm.read = 0
	fm.frame = 0
}

// Close releases the worker pool and the accelerator. The buffers stay
// readable. Close is safe to call multiple times.
func (fm *Flowmap) Close() error {
	if fm.closed {
		return nil
	}
	fm.closed = true
	if fm.pool != nil {
		fm.pool.Close()
		fm.pool = nil
	}
	if fm.accel != nil {
		fm.accel.Close()
		fm.accel = nil
	}
	return nil
}
