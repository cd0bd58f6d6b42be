// Package flowmap accumulates pointer motion into a decaying 2D flow field.
//
// # Overview
//
// A Flowmap owns two equally sized float buffers. Every frame the host calls
// Update, which renders the "write" buffer from the "read" buffer and then
// swaps their roles:
//
//  1. every texel of the previous field is multiplied by the dissipation;
//  2. around the pointer, within the falloff radius, the texel is blended
//     towards a stamp carrying the pointer velocity (R, G) and an intensity
//     derived from the speed (B).
//
// The read buffer is then sampled by a consumer, typically a display pass
// that uses the field to distort an image (see package display).
//
// # Quick Start
//
//	fm, err := flowmap.New(flowmap.WithSize(128))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fm.Close()
//
//	// In the host frame loop:
//	fm.SetResolution(width, height)
//	fm.SetPointer(u, v)     // UV, origin bottom-left
//	fm.SetVelocity(du, dv)  // UV delta since the previous frame
//	fm.Update()
//	field := fm.Read()
//
// # Texel Convention
//
// Each texel holds (velocity.x, velocity.y, intensity, unused). Velocity is
// pre-multiplied by the velocity factor and its y component is negated to
// match texture orientation. Intensity is 1-(1-min(1,|v|))^3.
//
// # Backends
//
// The pass runs on the CPU, split into row bands across a worker pool.
// An Accelerator (for example the wgpu compute backend in package gpu) can
// take over the pass; when it declines with ErrFallbackToCPU or fails, the
// CPU kernel runs instead and Update still completes.
//
// # Errors
//
// New and the tuning setters return errors wrapping ErrConfiguration or
// ErrDevice. Update never fails: zero velocity, off-screen pointers and
// extreme dissipation values are ordinary states.
package flowmap
