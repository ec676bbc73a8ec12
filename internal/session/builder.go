package session

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/fathom-ml/fathom/internal/backend"
	"github.com/fathom-ml/fathom/internal/backend/generic"
	gpubackend "github.com/fathom-ml/fathom/internal/backend/webgpu"
	"github.com/fathom-ml/fathom/internal/memory"
)

// Config is the all-or-nothing result of building an execution target:
// a provider plus its default-pool allocator.
type Config struct {
	Provider  backend.Provider
	Allocator *memory.Allocator
}

// Builder constructs the execution target for a session.
type Builder interface {
	Build() (*Config, error)
	Kind() backend.Kind
}

// SelectBuilder picks the builder for a device handle. A nil device selects
// the generic target; anything else selects the accelerated one. This is
// the only place the decision is made.
func SelectBuilder(device *wgpu.Device, queue *wgpu.Queue) Builder {
	if device == nil {
		return &GenericBuilder{}
	}
	return &AcceleratedBuilder{Device: device, Queue: queue}
}

// GenericBuilder builds the pure-Go execution target.
type GenericBuilder struct{}

// Build constructs the generic provider. It cannot fail.
func (b *GenericBuilder) Build() (*Config, error) {
	p := generic.New()
	return &Config{Provider: p, Allocator: p.Allocator()}, nil
}

// Kind returns the generic provider family.
func (b *GenericBuilder) Kind() backend.Kind {
	return backend.KindGeneric
}

// AcceleratedBuilder builds the WebGPU execution target over caller-owned
// device handles.
type AcceleratedBuilder struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
}

// Build constructs the accelerated provider.
func (b *AcceleratedBuilder) Build() (*Config, error) {
	if b.Device == nil {
		return nil, fmt.Errorf("accelerated builder requires a device")
	}
	queue := b.Queue
	if queue == nil {
		queue = b.Device.GetQueue()
		if queue == nil {
			return nil, fmt.Errorf("accelerated builder: no queue available")
		}
	}
	p := gpubackend.New(b.Device, queue)
	return &Config{Provider: p, Allocator: p.Allocator()}, nil
}

// Kind returns the accelerated provider family.
func (b *AcceleratedBuilder) Kind() backend.Kind {
	return backend.KindAccelerated
}
