package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device identifies where a tensor's storage lives.
type Device int

// Supported devices.
const (
	Host Device = iota
	GPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case Host:
		return "Host"
	case GPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// rawBuffer is a reference-counted storage block shared between tensor views.
type rawBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // guards deallocation
}

func newRawBuffer(size int) *rawBuffer {
	buf := &rawBuffer{data: make([]byte, size)}
	buf.refCount.Store(1)
	return buf
}

func (b *rawBuffer) addRef() {
	b.refCount.Add(1)
}

func (b *rawBuffer) release() {
	if b.refCount.Add(-1) == 0 {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.data = nil
	}
}

func (b *rawBuffer) isUnique() bool {
	return b.refCount.Load() == 1
}

// RawTensor is the concrete value handle passed through bindings and
// execution backends. Storage is a reference-counted shared buffer; Clone is
// cheap and Release must balance ownership taken via Clone.
type RawTensor struct {
	buffer *rawBuffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		buffer: newRawBuffer(shape.NumElements() * dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// FromFloat32 creates a float32 RawTensor initialized from data.
// len(data) must match the number of elements in shape.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	t, err := NewRaw(shape, Float32, Host)
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// FromBytes creates a RawTensor over a copy of raw little-endian element data.
func FromBytes(data []byte, shape Shape, dtype DataType) (*RawTensor, error) {
	want := shape.NumElements() * dtype.Size()
	if len(data) != want {
		return nil, fmt.Errorf("data length %d does not match shape %v of %s (%d bytes)",
			len(data), shape, dtype, want)
	}
	t, err := NewRaw(shape, dtype, Host)
	if err != nil {
		return nil, err
	}
	copy(t.Data(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's row-major memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's element type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns where the tensor's storage lives.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total storage size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice backing the tensor.
func (r *RawTensor) Data() []byte {
	return r.buffer.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	//nolint:gosec // zero-copy view, bounds fixed by NumElements
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.buffer.data[0])), r.NumElements())
}

// AsFloat16 interprets the data as []uint16 half-precision bit patterns.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []uint16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	//nolint:gosec // zero-copy view, bounds fixed by NumElements
	return unsafe.Slice((*uint16)(unsafe.Pointer(&r.buffer.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	//nolint:gosec // zero-copy view, bounds fixed by NumElements
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.buffer.data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	//nolint:gosec // zero-copy view, bounds fixed by NumElements
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.buffer.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	//nolint:gosec // zero-copy view, bounds fixed by NumElements
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.buffer.data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.buffer.data
}

// Clone creates a shallow copy sharing the underlying buffer.
// The buffer is reference-counted; call Release on copies no longer needed.
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Release decrements the buffer reference count, deallocating at zero.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// IsUnique reports whether this tensor is the only reference to its buffer.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.isUnique()
}

// WithShape returns a view of the tensor with a different shape.
// The element count must match; storage is shared.
func (r *RawTensor) WithShape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot view %v tensor as %v", r.shape, shape)
	}
	v := r.Clone()
	v.shape = shape.Clone()
	v.stride = shape.ComputeStrides()
	return v, nil
}
