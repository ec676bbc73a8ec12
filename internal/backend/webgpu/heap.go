package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Size class thresholds for pooled staging buffers.
const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPerClass     = 64
)

type sizeClass int

const (
	classSmall sizeClass = iota
	classMedium
	classLarge
	classCount
)

func classify(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return classSmall
	case size < mediumThreshold:
		return classMedium
	default:
		return classLarge
	}
}

type heapEntry struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// uploadHeap pools staging buffers by size class so repeated GPU readbacks
// and uploads do not allocate a fresh buffer each time.
type uploadHeap struct {
	device *wgpu.Device

	mu      sync.Mutex
	classes [classCount][]heapEntry

	hits   uint64
	misses uint64
}

func newUploadHeap(device *wgpu.Device) *uploadHeap {
	return &uploadHeap{device: device}
}

// Acquire returns a pooled buffer of at least size bytes with the requested
// usage, creating one on a pool miss.
func (h *uploadHeap) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	h.mu.Lock()
	class := classify(size)
	pool := h.classes[class]
	for i, e := range pool {
		if e.size >= size && e.usage&usage == usage {
			h.classes[class] = append(pool[:i], pool[i+1:]...)
			h.hits++
			h.mu.Unlock()
			return e.buffer
		}
	}
	h.misses++
	h.mu.Unlock()

	return h.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Return hands a buffer back for reuse. Full classes release immediately.
func (h *uploadHeap) Return(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	h.mu.Lock()
	class := classify(size)
	if len(h.classes[class]) >= maxPerClass {
		h.mu.Unlock()
		buffer.Release()
		return
	}
	h.classes[class] = append(h.classes[class], heapEntry{buffer: buffer, size: size, usage: usage})
	h.mu.Unlock()
}

// Clear releases every pooled buffer.
func (h *uploadHeap) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for class := range h.classes {
		for _, e := range h.classes[class] {
			e.buffer.Release()
		}
		h.classes[class] = nil
	}
}

// Pooled reports how many buffers are currently held.
func (h *uploadHeap) Pooled() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for class := range h.classes {
		n += len(h.classes[class])
	}
	return n
}

// Stats reports pool hit and miss counts.
func (h *uploadHeap) Stats() (hits, misses uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits, h.misses
}
