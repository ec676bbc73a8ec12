// Package memory describes where tensor allocations live and hands out
// allocators over a provider's default pool.
package memory

import (
	"errors"
	"fmt"
)

// ErrAllocation reports a failed or invalid device allocation.
var ErrAllocation = errors.New("allocation failed")

// AllocatorKind distinguishes pooled arena allocators from direct
// per-allocation ones.
type AllocatorKind int

const (
	AllocatorDevice AllocatorKind = iota
	AllocatorArena
)

func (k AllocatorKind) String() string {
	if k == AllocatorArena {
		return "arena"
	}
	return "device"
}

// MemoryKind names the physical pool an allocation lives in.
type MemoryKind int

const (
	MemoryDefault MemoryKind = iota
	MemoryHostAccessible
)

func (k MemoryKind) String() string {
	if k == MemoryHostAccessible {
		return "host-accessible"
	}
	return "default"
}

// MemoryInfo locates a memory pool. Values are immutable after creation
// and safe to share.
type MemoryInfo struct {
	name       string
	allocator  AllocatorKind
	deviceID   int
	deviceKind string
	memory     MemoryKind
}

// NewMemoryInfo builds a location descriptor.
func NewMemoryInfo(name string, allocator AllocatorKind, deviceID int, deviceKind string, memory MemoryKind) MemoryInfo {
	return MemoryInfo{
		name:       name,
		allocator:  allocator,
		deviceID:   deviceID,
		deviceKind: deviceKind,
		memory:     memory,
	}
}

func (m MemoryInfo) Name() string { return m.name }
func (m MemoryInfo) AllocatorKind() AllocatorKind { return m.allocator }
func (m MemoryInfo) DeviceID() int { return m.deviceID }
func (m MemoryInfo) DeviceKind() string { return m.deviceKind }
func (m MemoryInfo) MemoryKind() MemoryKind { return m.memory }

func (m MemoryInfo) String() string {
	return fmt.Sprintf("%s(%s:%d, %s, %s)", m.name, m.deviceKind, m.deviceID, m.allocator, m.memory)
}

// Equal reports whether two descriptors locate the same pool.
func (m MemoryInfo) Equal(o MemoryInfo) bool {
	return m == o
}

// Allocation is an opaque handle to device memory handed out by an
// Allocator. Size is in bytes.
type Allocation struct {
	Ptr  any
	Size uint64
}

// Pool is the raw alloc/free surface a provider exposes for its default
// memory pool.
type Pool interface {
	Alloc(size uint64) (Allocation, error)
	Free(a Allocation) error
	Info() MemoryInfo
}

// Allocator pairs a pool with its location descriptor. The zero value is
// unusable; build one with NewAllocator.
type Allocator struct {
	pool Pool
}

// NewAllocator wraps a provider pool.
func NewAllocator(pool Pool) *Allocator {
	return &Allocator{pool: pool}
}

// Alloc reserves size bytes from the pool. Size must be positive.
func (a *Allocator) Alloc(size uint64) (Allocation, error) {
	if size == 0 {
		return Allocation{}, fmt.Errorf("%w: zero-size request", ErrAllocation)
	}
	alloc, err := a.pool.Alloc(size)
	if err != nil {
		return Allocation{}, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	return alloc, nil
}

// Free returns an allocation to the pool. Each allocation is freed exactly
// once.
func (a *Allocator) Free(alloc Allocation) error {
	return a.pool.Free(alloc)
}

// Info reports where this allocator's memory lives.
func (a *Allocator) Info() MemoryInfo {
	return a.pool.Info()
}
