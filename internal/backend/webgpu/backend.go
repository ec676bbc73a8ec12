// Package webgpu implements the accelerated execution provider on top of
// WebGPU compute. Element-wise float32 kernels run as WGSL shaders; every
// other operation falls back to the host compute backend.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/fathom-ml/fathom/internal/backend/generic"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// Backend implements tensor operations against a WebGPU device. It needs
// same-shape float32 operands to dispatch a shader; anything else delegates
// to the host fallback.
type Backend struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// Upload heap for staging buffers
	heap *uploadHeap

	// Command buffers accumulated since the last flush, and the references
	// retained for work already submitted.
	pendingCommands []*wgpu.CommandBuffer
	completedRefs   []*wgpu.CommandBuffer
	pendingMu       sync.Mutex

	fallback *generic.Compute

	memoryStats struct {
		totalAllocatedBytes uint64
		peakMemoryBytes     uint64
		activeBuffers       int64
		mu                  sync.Mutex
	}
}

// NewBackend creates a compute backend over caller-owned device handles.
// The backend does not release the device or the queue.
func NewBackend(device *wgpu.Device, queue *wgpu.Queue) *Backend {
	return &Backend{
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		heap:      newUploadHeap(device),
		fallback:  generic.NewCompute(),
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.GPU
}

// Add performs element-wise addition.
func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !b.canDispatch(a, other) {
		return b.fallback.Add(a, other)
	}
	result, err := b.runBinaryOp(a, other, "add", addShader)
	if err != nil {
		panic("webgpu: Add: " + err.Error())
	}
	return result
}

// Sub performs element-wise subtraction.
func (b *Backend) Sub(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !b.canDispatch(a, other) {
		return b.fallback.Sub(a, other)
	}
	result, err := b.runBinaryOp(a, other, "sub", subShader)
	if err != nil {
		panic("webgpu: Sub: " + err.Error())
	}
	return result
}

// Mul performs element-wise multiplication.
func (b *Backend) Mul(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !b.canDispatch(a, other) {
		return b.fallback.Mul(a, other)
	}
	result, err := b.runBinaryOp(a, other, "mul", mulShader)
	if err != nil {
		panic("webgpu: Mul: " + err.Error())
	}
	return result
}

// Div performs element-wise division.
func (b *Backend) Div(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !b.canDispatch(a, other) {
		return b.fallback.Div(a, other)
	}
	result, err := b.runBinaryOp(a, other, "div", divShader)
	if err != nil {
		panic("webgpu: Div: " + err.Error())
	}
	return result
}

// Relu computes element-wise max(x, 0).
func (b *Backend) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.fallback.Relu(x)
	}
	result, err := b.runUnaryOp(x, "relu", reluShader)
	if err != nil {
		panic("webgpu: Relu: " + err.Error())
	}
	return result
}

// Sigmoid computes element-wise 1 / (1 + exp(-x)).
func (b *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.fallback.Sigmoid(x)
	}
	result, err := b.runUnaryOp(x, "sigmoid", sigmoidShader)
	if err != nil {
		panic("webgpu: Sigmoid: " + err.Error())
	}
	return result
}

// MatMul performs matrix multiplication on the host fallback.
func (b *Backend) MatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	return b.fallback.MatMul(a, other)
}

// Softmax computes softmax along dim on the host fallback.
func (b *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.fallback.Softmax(x, dim)
}

// Reshape returns a view of x with a new shape.
func (b *Backend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return b.fallback.Reshape(x, shape)
}

// Transpose permutes the axes of x on the host fallback.
func (b *Backend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	return b.fallback.Transpose(x, axes...)
}

// Cast converts x to another element type on the host fallback.
func (b *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	return b.fallback.Cast(x, dtype)
}

func (b *Backend) canDispatch(a, other *tensor.RawTensor) bool {
	return a.DType() == tensor.Float32 &&
		other.DType() == tensor.Float32 &&
		a.Shape().Equal(other.Shape())
}

// Flush submits all command buffers accumulated since the last flush and
// retains their references until ReleaseCompleted.
func (b *Backend) Flush() {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.flushLocked()
}

func (b *Backend) flushLocked() {
	if len(b.pendingCommands) == 0 {
		return
	}
	b.queue.Submit(b.pendingCommands...)
	b.completedRefs = append(b.completedRefs, b.pendingCommands...)
	b.pendingCommands = nil
}

// ReleaseCompleted drops references retained for submitted command buffers.
func (b *Backend) ReleaseCompleted() {
	b.pendingMu.Lock()
	refs := b.completedRefs
	b.completedRefs = nil
	b.pendingMu.Unlock()

	for _, cmd := range refs {
		cmd.Release()
	}
}

func (b *Backend) queueCommand(cmd *wgpu.CommandBuffer) {
	b.pendingMu.Lock()
	b.pendingCommands = append(b.pendingCommands, cmd)
	b.pendingMu.Unlock()
}

// Release frees backend-owned resources: caches, pooled buffers and any
// retained command references. Device handles stay with the caller.
func (b *Backend) Release() {
	b.Flush()
	b.ReleaseCompleted()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.heap != nil {
		b.heap.Clear()
		b.heap = nil
	}
	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil
	for _, s := range b.shaders {
		s.Release()
	}
	b.shaders = nil
}

// MemoryStats reports cumulative device-buffer accounting.
type MemoryStats struct {
	TotalAllocatedBytes uint64
	PeakMemoryBytes     uint64
	ActiveBuffers       int64
}

// Stats returns a snapshot of the backend's memory accounting.
func (b *Backend) Stats() MemoryStats {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()
	return MemoryStats{
		TotalAllocatedBytes: b.memoryStats.totalAllocatedBytes,
		PeakMemoryBytes:     b.memoryStats.peakMemoryBytes,
		ActiveBuffers:       b.memoryStats.activeBuffers,
	}
}

func (b *Backend) trackAlloc(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()
	b.memoryStats.totalAllocatedBytes += size
	b.memoryStats.activeBuffers++
	if b.memoryStats.totalAllocatedBytes > b.memoryStats.peakMemoryBytes {
		b.memoryStats.peakMemoryBytes = b.memoryStats.totalAllocatedBytes
	}
}

func (b *Backend) trackFree() {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()
	b.memoryStats.activeBuffers--
}
