// Package generic implements the pure-Go execution provider. It runs
// everywhere and is the fallback target when no accelerated device is
// supplied.
package generic

import (
	"fmt"

	"github.com/fathom-ml/fathom/internal/tensor"
)

// Compute implements tensor operations on host memory.
type Compute struct {
	device tensor.Device
}

// NewCompute creates the host compute backend.
func NewCompute() *Compute {
	return &Compute{device: tensor.Host}
}

// Name returns the backend name.
func (c *Compute) Name() string {
	return "Generic"
}

// Device returns the compute device.
func (c *Compute) Device() tensor.Device {
	return c.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (c *Compute) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y },
		func(x, y int32) int32 { return x + y },
		func(x, y int64) int64 { return x + y },
	)
}

// Sub performs element-wise subtraction with broadcasting.
func (c *Compute) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y },
		func(x, y int32) int32 { return x - y },
		func(x, y int64) int64 { return x - y },
	)
}

// Mul performs element-wise multiplication with broadcasting.
func (c *Compute) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y },
		func(x, y int32) int32 { return x * y },
		func(x, y int64) int64 { return x * y },
	)
}

// Div performs element-wise division with broadcasting. Integer division by
// zero panics; float division follows IEEE semantics.
func (c *Compute) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y },
		func(x, y int32) int32 { return x / y },
		func(x, y int64) int64 { return x / y },
	)
}

func (c *Compute) binaryOp(
	op string,
	a, b *tensor.RawTensor,
	f32 func(float32, float32) float32,
	f64 func(float64, float64) float64,
	i32 func(int32, int32) int32,
	i64 func(int64, int64) int64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	switch a.DType() {
	case tensor.Float32:
		applyBinary(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), f32,
			a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Float64:
		applyBinary(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), f64,
			a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Int32:
		applyBinary(result.AsInt32(), a.AsInt32(), b.AsInt32(), i32,
			a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Int64:
		applyBinary(result.AsInt64(), a.AsInt64(), b.AsInt64(), i64,
			a.Shape(), b.Shape(), outShape, needsBroadcast)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}

func applyBinary[T any](
	dst, a, b []T,
	f func(T, T) T,
	aShape, bShape, outShape tensor.Shape,
	needsBroadcast bool,
) {
	if !needsBroadcast {
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
		return
	}

	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	for i := range dst {
		dst[i] = f(a[flatIndex(i, outStrides, aStrides)], b[flatIndex(i, outStrides, bStrides)])
	}
}

// broadcastStrides computes strides for reading a tensor of inShape as if
// it had outShape. Broadcast dimensions read with stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)
	offset := outDim - len(inShape)
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}
	return strides
}

// flatIndex maps an output flat index to a source flat index through
// broadcast-adjusted strides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	flat := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flat += coord * inStrides[i]
	}
	return flat
}
