//go:build !nogpu

package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/flowmap"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

//go:embed shaders/accumulate.wgsl
var accumulateShaderSource string

// paramsSize is the byte size of the Params uniform in accumulate.wgsl.
const paramsSize = 48

// submitTimeout bounds the wait for one accumulation pass.
const submitTimeout = 5 * time.Second

// pollInterval is the sleep between completion polls.
const pollInterval = 50 * time.Microsecond

// ComputeAccelerator runs the flowmap accumulation pass as a wgpu/hal compute
// shader. It implements flowmap.Accelerator.
//
// The field lives in host memory between passes: every Accumulate uploads
// the read buffer, dispatches one 8x8 workgroup per tile and reads the write
// buffer back. Without a usable GPU, Accumulate returns
// flowmap.ErrFallbackToCPU.
type ComputeAccelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	// Per-size resources, recreated when the buffer size changes.
	size       int
	uniformBuf hal.Buffer
	srcBuf     hal.Buffer
	dstBuf     hal.Buffer
	stagingBuf hal.Buffer
	bindGroup  hal.BindGroup

	gpuReady       bool
	externalDevice bool // true when using shared device (don't destroy on Close)
}

var (
	_ flowmap.Accelerator         = (*ComputeAccelerator)(nil)
	_ flowmap.DeviceProviderAware = (*ComputeAccelerator)(nil)
)

// Name returns the accelerator name.
func (a *ComputeAccelerator) Name() string { return "wgpu-compute" }

// Init opens a Vulkan device and builds the compute pipeline. A missing GPU
// is not an error: the accelerator stays idle and every pass falls back to
// the CPU. Init on a ready accelerator is a no-op.
func (a *ComputeAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gpuReady {
		return nil
	}
	if err := a.initGPU(); err != nil {
		slogger().Warn("flowmap-gpu: GPU init failed, using CPU fallback", "err", err)
	}
	return nil
}

// Ready reports whether passes run on the GPU.
func (a *ComputeAccelerator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gpuReady
}

// SetLogger sets the logger used by the GPU backend.
func (a *ComputeAccelerator) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Close releases all GPU resources. Shared devices are left to their owner.
func (a *ComputeAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroySizedResources()
	a.destroyPipelines()
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
		}
		if a.instance != nil {
			a.instance.Destroy()
		}
	}
	a.device = nil
	a.instance = nil
	a.queue = nil
	a.gpuReady = false
	a.externalDevice = false
}

// SetDeviceProvider switches the accelerator to use a shared GPU device
// from an external provider (e.g., gogpu). The provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func (a *ComputeAccelerator) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("flowmap-gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("flowmap-gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("flowmap-gpu: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Destroy own resources if we created them
	a.destroySizedResources()
	a.destroyPipelines()
	if !a.externalDevice && a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}

	a.device = device
	a.queue = queue
	a.externalDevice = true

	if err := a.createPipelines(); err != nil {
		a.gpuReady = false
		return fmt.Errorf("flowmap-gpu: create pipelines with shared device: %w", err)
	}
	a.gpuReady = true
	slogger().Info("flowmap-gpu: switched to shared GPU device")
	return nil
}

// Accumulate renders dst from src on the GPU and blocks until the result has
// been read back into dst.
func (a *ComputeAccelerator) Accumulate(dst, src *flowmap.Buffer, params flowmap.Params) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.gpuReady {
		return flowmap.ErrFallbackToCPU
	}
	size := src.Size()
	if dst.Size() != size {
		return flowmap.ErrFallbackToCPU
	}
	if err := a.ensureSizedResources(size); err != nil {
		return err
	}

	if err := a.queue.WriteBuffer(a.uniformBuf, 0, packParams(&params, size)); err != nil {
		return fmt.Errorf("flowmap-gpu: upload params: %w", err)
	}
	if err := a.queue.WriteBuffer(a.srcBuf, 0, packTexels(src.Data())); err != nil {
		return fmt.Errorf("flowmap-gpu: upload field: %w", err)
	}

	readback, err := a.dispatch(size)
	if err != nil {
		return err
	}
	unpackTexels(readback, dst.Data())
	return nil
}

// dispatch encodes and submits one pass and returns the staging contents.
func (a *ComputeAccelerator) dispatch(size int) ([]byte, error) {
	bufSize := texelBufferSize(size)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "flowmap_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("flowmap_accumulate"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	groups := uint32((size + 7) / 8) //nolint:gosec // size is bounded by flowmap.MaxSize
	computePass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "flowmap_pass"})
	computePass.SetPipeline(a.pipeline)
	computePass.SetBindGroup(0, a.bindGroup, nil)
	computePass.Dispatch(groups, groups, 1)
	computePass.End()

	encoder.CopyBufferToBuffer(a.dstBuf, a.stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: bufSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	index, err := a.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := waitSubmission(a.queue.PollCompleted, index, submitTimeout); err != nil {
		return nil, err
	}

	mapping, err := a.device.MapBuffer(a.stagingBuf, 0, bufSize)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	readback := copyMapped(mapping, bufSize)
	if err := a.device.UnmapBuffer(a.stagingBuf); err != nil {
		return nil, fmt.Errorf("unmap staging buffer: %w", err)
	}
	return readback, nil
}

// ensureSizedResources (re)creates the storage buffers and bind group for
// size x size texels.
func (a *ComputeAccelerator) ensureSizedResources(size int) error {
	if a.size == size && a.bindGroup != nil {
		return nil
	}
	a.destroySizedResources()

	bufSize := texelBufferSize(size)
	var err error
	a.uniformBuf, err = a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flowmap_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	a.srcBuf, err = a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flowmap_read", Size: bufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		a.destroySizedResources()
		return fmt.Errorf("create read buffer: %w", err)
	}
	a.dstBuf, err = a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flowmap_write", Size: bufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		a.destroySizedResources()
		return fmt.Errorf("create write buffer: %w", err)
	}
	a.stagingBuf, err = a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flowmap_staging", Size: bufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		a.destroySizedResources()
		return fmt.Errorf("create staging buffer: %w", err)
	}

	a.bindGroup, err = a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "flowmap_bind", Layout: a.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: a.uniformBuf.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: a.srcBuf.NativeHandle(), Offset: 0, Size: bufSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: a.dstBuf.NativeHandle(), Offset: 0, Size: bufSize}},
		},
	})
	if err != nil {
		a.destroySizedResources()
		return fmt.Errorf("create bind group: %w", err)
	}
	a.size = size
	slogger().Debug("flowmap-gpu: buffers allocated", "size", size, "bytes", bufSize)
	return nil
}

func (a *ComputeAccelerator) destroySizedResources() {
	if a.device == nil {
		return
	}
	if a.bindGroup != nil {
		a.device.DestroyBindGroup(a.bindGroup)
		a.bindGroup = nil
	}
	for _, buf := range []*hal.Buffer{&a.uniformBuf, &a.srcBuf, &a.dstBuf, &a.stagingBuf} {
		if *buf != nil {
			a.device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	a.size = 0
}

func (a *ComputeAccelerator) initGPU() error {
	if _, err := naga.Compile(accumulateShaderSource); err != nil {
		return fmt.Errorf("compile accumulate shader: %w", err)
	}

	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue
	if err := a.createPipelines(); err != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
		return fmt.Errorf("create pipelines: %w", err)
	}
	a.gpuReady = true
	slogger().Info("flowmap-gpu: GPU accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

func (a *ComputeAccelerator) createPipelines() error {
	shader, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "flowmap_accumulate",
		Source: hal.ShaderSource{WGSL: accumulateShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile accumulate shader: %w", err)
	}
	a.shader = shader

	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "flowmap_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	a.bindLayout = bindLayout

	pipeLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "flowmap_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{a.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	a.pipeLayout = pipeLayout

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "flowmap_pipeline", Layout: a.pipeLayout,
		Compute: hal.ComputeState{Module: a.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	a.pipeline = pipeline
	return nil
}

func (a *ComputeAccelerator) destroyPipelines() {
	if a.device == nil {
		return
	}
	if a.pipeline != nil {
		a.device.DestroyComputePipeline(a.pipeline)
		a.pipeline = nil
	}
	if a.pipeLayout != nil {
		a.device.DestroyPipelineLayout(a.pipeLayout)
		a.pipeLayout = nil
	}
	if a.bindLayout != nil {
		a.device.DestroyBindGroupLayout(a.bindLayout)
		a.bindLayout = nil
	}
	if a.shader != nil {
		a.device.DestroyShaderModule(a.shader)
		a.shader = nil
	}
}

// waitSubmission polls until the queue reports submission index as
// completed or timeout elapses.
func waitSubmission(poll func() uint64, index uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for poll() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: submission %d not completed after %v", index, timeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// copyMapped copies n bytes out of a host-visible mapping.
func copyMapped(m hal.BufferMapping, n uint64) []byte {
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(m.Ptr), n)) //nolint:gosec // n is the mapped range size
	return out
}

// texelBufferSize returns the byte size of a size x size RGBA32F field.
func texelBufferSize(size int) uint64 {
	return uint64(size) * uint64(size) * 16 //nolint:gosec // size is positive
}

// packParams serializes the pass parameters into the Params uniform layout.
// The stamp is computed here once; a closed pressed gate is encoded as a
// zero alpha.
func packParams(p *flowmap.Params, size int) []byte {
	out := make([]byte, paramsSize)
	putU32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(out[off:], v) }
	putF32 := func(off int, v float32) { putU32(off, math.Float32bits(v)) }

	stamp := flowmap.StampTexel(p)
	alpha := p.Alpha
	if !p.Stamping() {
		alpha = 0
	}

	putU32(0, uint32(size)) //nolint:gosec // size is bounded by flowmap.MaxSize
	putU32(4, uint32(size)) //nolint:gosec // size is bounded by flowmap.MaxSize
	putF32(8, p.Pointer.X)
	putF32(12, p.Pointer.Y)
	putF32(16, stamp.R)
	putF32(20, stamp.G)
	putF32(24, stamp.B)
	putF32(28, stamp.A)
	putF32(32, p.Falloff)
	putF32(36, alpha)
	putF32(40, p.Dissipation)
	putF32(44, p.Aspect)
	return out
}

// packTexels converts float channels to little-endian bytes for upload.
func packTexels(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// unpackTexels decodes a readback into dst.
func unpackTexels(packed []byte, dst []float32) {
	n := min(len(dst), len(packed)/4)
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(packed[i*4:]))
	}
}
