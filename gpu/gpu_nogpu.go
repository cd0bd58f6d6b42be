//go:build nogpu

package gpu

import "github.com/gogpu/flowmap"

// NewAccelerator returns the CPU reference accelerator in nogpu builds.
func NewAccelerator() flowmap.Accelerator {
	return &flowmap.CPUAccelerator{}
}

// Available reports whether a compiled-in GPU backend exists.
func Available() bool { return false }
