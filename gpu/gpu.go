//go:build !nogpu

// Package gpu provides the wgpu compute backend for flowmap.
//
// The accelerator runs the accumulation pass as a compute shader through
// wgpu/hal. If GPU initialization fails (no Vulkan available), every pass
// falls back to the CPU kernel and Update behaves exactly as without an
// accelerator.
//
// Usage:
//
//	fm, err := flowmap.New(
//	    flowmap.WithSize(256),
//	    flowmap.WithAccelerator(gpu.NewAccelerator()),
//	)
//
// To share a device with a gogpu window, pass the window's provider with
// flowmap.WithDeviceProvider. The provider should be a
// gpucontext.DeviceProvider that also implements gpucontext.HalProvider.
package gpu

import (
	"github.com/gogpu/flowmap"
	gpuimpl "github.com/gogpu/flowmap/internal/gpu"
)

// NewAccelerator returns a new, uninitialized compute accelerator.
// flowmap.New initializes it.
func NewAccelerator() flowmap.Accelerator {
	return &gpuimpl.ComputeAccelerator{}
}

// Available reports whether a compiled-in GPU backend exists.
func Available() bool { return true }
