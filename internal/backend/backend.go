// Package backend defines the execution provider contract sessions run
// against, and the memory-manager queries layered on top of it.
package backend

import (
	"errors"

	"github.com/fathom-ml/fathom/internal/memory"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// ErrDeviceLost reports that the underlying device became unusable. A
// session that observes it is permanently invalid.
var ErrDeviceLost = errors.New("device lost")

// Kind identifies a provider family.
type Kind int

const (
	KindGeneric Kind = iota
	KindAccelerated
)

func (k Kind) String() string {
	if k == KindAccelerated {
		return "accelerated"
	}
	return "generic"
}

// Provider is one execution target: a compute backend plus the allocator
// for its default memory pool. Release frees provider-held resources;
// using a provider after Release is a caller error.
type Provider interface {
	Compute() tensor.Backend
	Kind() Kind
	Allocator() *memory.Allocator
	Release()
}

// Maintainer is the optional maintenance surface accelerated providers
// expose. Generic providers do not implement it.
type Maintainer interface {
	// FlushContext submits any pending device command buffers.
	FlushContext() error
	// TrimUploadHeap returns pooled staging buffers to the device.
	TrimUploadHeap() error
	// ReleaseCompletedReferences drops references retained for completed
	// device work.
	ReleaseCompletedReferences() error
}

// GetAllocator returns the provider's default-pool allocator.
func GetAllocator(p Provider) *memory.Allocator {
	return p.Allocator()
}

// ProviderMemoryInfo reports where the provider's default pool lives.
func ProviderMemoryInfo(p Provider) memory.MemoryInfo {
	return p.Allocator().Info()
}

// ValueMemoryInfo reports where a tensor's storage lives.
func ValueMemoryInfo(v *tensor.RawTensor) memory.MemoryInfo {
	if v.Device() == tensor.GPU {
		return memory.NewMemoryInfo("webgpu", memory.AllocatorDevice, 0, "gpu", memory.MemoryDefault)
	}
	return memory.NewMemoryInfo("generic", memory.AllocatorDevice, 0, "cpu", memory.MemoryHostAccessible)
}
