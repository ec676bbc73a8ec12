package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	info   MemoryInfo
	failAt uint64
	live   int
}

func (p *fakePool) Alloc(size uint64) (Allocation, error) {
	if p.failAt != 0 && size >= p.failAt {
		return Allocation{}, errors.New("out of device memory")
	}
	p.live++
	return Allocation{Ptr: make([]byte, size), Size: size}, nil
}

func (p *fakePool) Free(Allocation) error {
	p.live--
	return nil
}

func (p *fakePool) Info() MemoryInfo { return p.info }

func TestAllocatorAllocFree(t *testing.T) {
	pool := &fakePool{info: NewMemoryInfo("generic", AllocatorDevice, 0, "cpu", MemoryHostAccessible)}
	a := NewAllocator(pool)

	alloc, err := a.Alloc(128)
	require.NoError(t, err)
	assert.Equal(t, uint64(128), alloc.Size)
	assert.Equal(t, 1, pool.live)

	require.NoError(t, a.Free(alloc))
	assert.Equal(t, 0, pool.live)
}

func TestAllocatorZeroSize(t *testing.T) {
	a := NewAllocator(&fakePool{})
	_, err := a.Alloc(0)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestAllocatorPoolFailure(t *testing.T) {
	a := NewAllocator(&fakePool{failAt: 1 << 20})
	_, err := a.Alloc(1 << 30)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestMemoryInfo(t *testing.T) {
	info := NewMemoryInfo("webgpu", AllocatorArena, 1, "gpu", MemoryDefault)
	assert.Equal(t, "webgpu", info.Name())
	assert.Equal(t, AllocatorArena, info.AllocatorKind())
	assert.Equal(t, 1, info.DeviceID())
	assert.Equal(t, "gpu", info.DeviceKind())
	assert.Equal(t, MemoryDefault, info.MemoryKind())

	same := NewMemoryInfo("webgpu", AllocatorArena, 1, "gpu", MemoryDefault)
	other := NewMemoryInfo("webgpu", AllocatorArena, 2, "gpu", MemoryDefault)
	assert.True(t, info.Equal(same))
	assert.False(t, info.Equal(other))
}
