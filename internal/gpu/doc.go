//go:build !nogpu

// Package gpu implements the flowmap accumulation pass as a wgpu/hal compute
// shader.
//
// The shader lives in shaders/accumulate.wgsl and mirrors
// flowmap.AccumulateTexel. Use the public github.com/gogpu/flowmap/gpu
// package to obtain an accelerator.
package gpu
