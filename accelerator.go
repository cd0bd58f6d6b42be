package flowmap

import "errors"

// ErrFallbackToCPU indicates the accelerator cannot run this pass.
// The Flowmap transparently runs the CPU kernel instead.
var ErrFallbackToCPU = errors.New("flowmap: falling back to CPU accumulation")

// Accelerator is an optional backend for the accumulation pass.
//
// When a Flowmap is created WithAccelerator, every Update first offers the
// pass to the accelerator. If it returns ErrFallbackToCPU or any other error,
// the pass is repeated on the CPU and the read/write roles are swapped only
// after one of the two paths completed.
//
// Implementations are provided by backend packages:
//
//	fm, err := flowmap.New(flowmap.WithAccelerator(gpu.NewAccelerator()))
type Accelerator interface {
	// Name returns the accelerator name (e.g., "wgpu-compute").
	Name() string

	// Init initializes backend resources. Called once by New.
	Init() error

	// Close releases backend resources.
	Close()

	// Accumulate renders one pass: every texel of dst is computed from the
	// matching texel of src with the kernel described by AccumulateTexel.
	// dst and src are distinct and have the same size. The call returns
	// after dst holds the complete result.
	Accumulate(dst, src *Buffer, params Params) error
}

// DeviceProviderAware is an optional interface for accelerators that can share
// a GPU device with the host (e.g., a gogpu window). The provider is usually a
// gpucontext.DeviceProvider.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

// CPUAccelerator runs the accumulation kernel on the calling goroutine.
// It is mainly useful as a reference for accelerator implementations and in
// tests; a Flowmap without an accelerator uses its own row-parallel CPU path.
type CPUAccelerator struct{}

// Compile-time interface check.
var _ Accelerator = (*CPUAccelerator)(nil)

// Name returns the accelerator name.
func (a *CPUAccelerator) Name() string { return "cpu" }

// Init initializes the accelerator. No resources are needed.
func (a *CPUAccelerator) Init() error { return nil }

// Close releases resources. No-op for the CPU kernel.
func (a *CPUAccelerator) Close() {}

// Accumulate runs the kernel over every texel of src into dst.
func (a *CPUAccelerator) Accumulate(dst, src *Buffer, params Params) error {
	if dst.size != src.size {
		return ErrFallbackToCPU
	}
	accumulateRows(dst, src, &params, 0, src.size)
	return nil
}
