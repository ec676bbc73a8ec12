package generic

import (
	"fmt"

	"github.com/fathom-ml/fathom/internal/tensor"
)

// Reshape returns a view of x with a new shape. Element count must match.
func (c *Compute) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out, err := x.WithShape(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return out
}

// Transpose permutes the axes of x. With no axes given the order is
// reversed.
func (c *Compute) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	ndim := len(x.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %d dimensions", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, a := range axes {
		if a < 0 || a >= ndim || seen[a] {
			panic(fmt.Sprintf("transpose: invalid axes %v for shape %v", axes, x.Shape()))
		}
		seen[a] = true
	}

	inShape := x.Shape()
	outShape := make(tensor.Shape, ndim)
	for i, a := range axes {
		outShape[i] = inShape[a]
	}

	result, err := tensor.NewRaw(outShape, x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	elem := x.DType().Size()
	inStrides := inShape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	src, dst := x.Data(), result.Data()

	n := x.NumElements()
	for out := 0; out < n; out++ {
		rem := out
		in := 0
		for i := 0; i < ndim; i++ {
			coord := rem / outStrides[i]
			rem %= outStrides[i]
			in += coord * inStrides[axes[i]]
		}
		copy(dst[out*elem:(out+1)*elem], src[in*elem:(in+1)*elem])
	}

	return result
}

// Cast converts x to another element type. Float16 conversion goes through
// float32.
func (c *Compute) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	result, err := tensor.NewRaw(x.Shape(), dtype, c.device)
	if err != nil {
		panic(fmt.Sprintf("cast: %v", err))
	}

	// Read everything as float64, then narrow. Lossy by nature.
	vals := make([]float64, x.NumElements())
	switch x.DType() {
	case tensor.Float32:
		for i, v := range x.AsFloat32() {
			vals[i] = float64(v)
		}
	case tensor.Float16:
		for i, v := range x.AsFloat16() {
			vals[i] = float64(tensor.Float16ToFloat32(v))
		}
	case tensor.Float64:
		copy(vals, x.AsFloat64())
	case tensor.Int32:
		for i, v := range x.AsInt32() {
			vals[i] = float64(v)
		}
	case tensor.Int64:
		for i, v := range x.AsInt64() {
			vals[i] = float64(v)
		}
	case tensor.Uint8:
		for i, v := range x.AsUint8() {
			vals[i] = float64(v)
		}
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", x.DType()))
	}

	switch dtype {
	case tensor.Float32:
		dst := result.AsFloat32()
		for i, v := range vals {
			dst[i] = float32(v)
		}
	case tensor.Float16:
		dst := result.AsFloat16()
		for i, v := range vals {
			dst[i] = tensor.Float16FromFloat32(float32(v))
		}
	case tensor.Float64:
		copy(result.AsFloat64(), vals)
	case tensor.Int32:
		dst := result.AsInt32()
		for i, v := range vals {
			dst[i] = int32(v)
		}
	case tensor.Int64:
		dst := result.AsInt64()
		for i, v := range vals {
			dst[i] = int64(v)
		}
	case tensor.Uint8:
		dst := result.AsUint8()
		for i, v := range vals {
			dst[i] = uint8(v)
		}
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", dtype))
	}

	return result
}
