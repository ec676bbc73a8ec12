package webgpu

import (
	"errors"
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/fathom-ml/fathom/internal/backend"
	"github.com/fathom-ml/fathom/internal/memory"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// Provider is the accelerated execution provider. It wraps caller-supplied
// device handles; when built through Acquire it also owns the instance and
// adapter and releases them on Release.
type Provider struct {
	backend   *Backend
	allocator *memory.Allocator

	// Owned only when the provider acquired its own device.
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	owned    bool
}

// New creates a provider over caller-owned handles. The caller keeps
// responsibility for releasing the device and queue.
func New(device *wgpu.Device, queue *wgpu.Queue) *Provider {
	b := NewBackend(device, queue)
	return &Provider{
		backend:   b,
		allocator: memory.NewAllocator(&devicePool{backend: b}),
		device:    device,
		queue:     queue,
	}
}

// Acquire builds a provider with its own device: instance, adapter, device
// and queue are requested here and released with the provider.
func Acquire() (provider *Provider, err error) {
	// The native library panics when it is missing entirely.
	defer func() {
		if r := recover(); r != nil {
			provider = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", instanceErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("webgpu: failed to get queue")
	}

	p := New(device, queue)
	p.instance = instance
	p.adapter = adapter
	p.owned = true
	return p, nil
}

// Compute returns the GPU compute backend.
func (p *Provider) Compute() tensor.Backend {
	return p.backend
}

// Kind returns the provider family.
func (p *Provider) Kind() backend.Kind {
	return backend.KindAccelerated
}

// Allocator returns the device-memory allocator.
func (p *Provider) Allocator() *memory.Allocator {
	return p.allocator
}

// Release frees backend resources and, for acquired providers, the device
// handles.
func (p *Provider) Release() {
	p.backend.Release()
	if !p.owned {
		return
	}
	if p.queue != nil {
		p.queue.Release()
		p.queue = nil
	}
	if p.device != nil {
		p.device.Release()
		p.device = nil
	}
	if p.adapter != nil {
		p.adapter.Release()
		p.adapter = nil
	}
	if p.instance != nil {
		p.instance.Release()
		p.instance = nil
	}
}

// FlushContext submits pending device command buffers.
func (p *Provider) FlushContext() error {
	p.backend.Flush()
	return nil
}

// TrimUploadHeap releases pooled staging buffers back to the device.
func (p *Provider) TrimUploadHeap() error {
	if p.backend.heap != nil {
		p.backend.heap.Clear()
	}
	return nil
}

// ReleaseCompletedReferences drops references retained for completed device
// work.
func (p *Provider) ReleaseCompletedReferences() error {
	p.backend.ReleaseCompleted()
	return nil
}

// Stats returns device-buffer accounting for the provider's backend.
func (p *Provider) Stats() MemoryStats {
	return p.backend.Stats()
}

// CreateAllocationFromBuffer wraps an existing device buffer as a raw
// allocation handle. The provider takes no ownership; pair every call with
// FreeAllocation.
func (p *Provider) CreateAllocationFromBuffer(buffer *wgpu.Buffer, size uint64) memory.Allocation {
	p.backend.trackAlloc(size)
	return memory.Allocation{Ptr: buffer, Size: size}
}

// FreeAllocation releases a raw allocation created by this provider.
// Freeing the same allocation twice is a caller error.
func (p *Provider) FreeAllocation(a memory.Allocation) error {
	buffer, ok := a.Ptr.(*wgpu.Buffer)
	if !ok {
		return fmt.Errorf("%w: not a device allocation", memory.ErrAllocation)
	}
	buffer.Release()
	p.backend.trackFree()
	return nil
}

// devicePool allocates storage buffers from the provider's device.
type devicePool struct {
	backend *Backend
}

func (p *devicePool) Alloc(size uint64) (memory.Allocation, error) {
	buffer := p.backend.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	if buffer == nil {
		return memory.Allocation{}, errors.New("device buffer creation failed")
	}
	p.backend.trackAlloc(size)
	return memory.Allocation{Ptr: buffer, Size: size}, nil
}

func (p *devicePool) Free(a memory.Allocation) error {
	buffer, ok := a.Ptr.(*wgpu.Buffer)
	if !ok {
		return fmt.Errorf("%w: not a device allocation", memory.ErrAllocation)
	}
	buffer.Release()
	p.backend.trackFree()
	return nil
}

func (p *devicePool) Info() memory.MemoryInfo {
	return memory.NewMemoryInfo("webgpu", memory.AllocatorDevice, 0, "gpu", memory.MemoryDefault)
}
