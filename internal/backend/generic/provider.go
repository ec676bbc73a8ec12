package generic

import (
	"errors"

	"github.com/fathom-ml/fathom/internal/backend"
	"github.com/fathom-ml/fathom/internal/memory"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// Provider is the pure-Go execution provider. It never fails to construct
// and needs no explicit teardown beyond Release.
type Provider struct {
	compute   *Compute
	allocator *memory.Allocator
	released  bool
}

// New creates a generic provider.
func New() *Provider {
	return &Provider{
		compute:   NewCompute(),
		allocator: memory.NewAllocator(&hostPool{}),
	}
}

// Compute returns the host compute backend.
func (p *Provider) Compute() tensor.Backend {
	return p.compute
}

// Kind returns the provider family.
func (p *Provider) Kind() backend.Kind {
	return backend.KindGeneric
}

// Allocator returns the host-memory allocator.
func (p *Provider) Allocator() *memory.Allocator {
	return p.allocator
}

// Release marks the provider released. Host memory is garbage collected,
// so nothing is freed eagerly.
func (p *Provider) Release() {
	p.released = true
}

// Released reports whether Release has been called.
func (p *Provider) Released() bool { return p.released }

// hostPool allocates from the Go heap.
type hostPool struct{}

func (hostPool) Alloc(size uint64) (memory.Allocation, error) {
	const maxAlloc = 1 << 40
	if size > maxAlloc {
		return memory.Allocation{}, errors.New("request exceeds host pool limit")
	}
	return memory.Allocation{Ptr: make([]byte, size), Size: size}, nil
}

func (hostPool) Free(memory.Allocation) error {
	return nil
}

func (hostPool) Info() memory.MemoryInfo {
	return memory.NewMemoryInfo("generic", memory.AllocatorDevice, 0, "cpu", memory.MemoryHostAccessible)
}
