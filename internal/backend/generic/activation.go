package generic

import (
	"fmt"
	"math"

	"github.com/fathom-ml/fathom/internal/tensor"
)

// Relu computes element-wise max(x, 0).
func (c *Compute) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("relu: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			if v > 0 {
				dst[i] = v
			}
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			if v > 0 {
				dst[i] = v
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// Sigmoid computes element-wise 1 / (1 + exp(-x)).
func (c *Compute) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("sigmoid: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(1 / (1 + math.Exp(-float64(v))))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = 1 / (1 + math.Exp(-v))
		}
	default:
		panic(fmt.Sprintf("sigmoid: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// Softmax computes softmax along dim with a max-subtraction for numerical
// stability. Negative dim counts from the end.
func (c *Compute) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	ndim := len(x.Shape())
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dim %d out of range for shape %v", dim, x.Shape()))
	}

	result, err := tensor.NewRaw(x.Shape(), x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		softmaxFloat32(result, x, dim)
	case tensor.Float64:
		softmaxFloat64(result, x, dim)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

func softmaxFloat32(result, x *tensor.RawTensor, dim int) {
	src, dst := x.AsFloat32(), result.AsFloat32()
	dimSize, stride, outer := softmaxDims(x.Shape(), dim)

	for o := 0; o < outer; o++ {
		for s := 0; s < stride; s++ {
			base := o*dimSize*stride + s

			maxVal := src[base]
			for d := 1; d < dimSize; d++ {
				if v := src[base+d*stride]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for d := 0; d < dimSize; d++ {
				e := math.Exp(float64(src[base+d*stride] - maxVal))
				dst[base+d*stride] = float32(e)
				sum += e
			}
			inv := float32(1 / sum)
			for d := 0; d < dimSize; d++ {
				dst[base+d*stride] *= inv
			}
		}
	}
}

func softmaxFloat64(result, x *tensor.RawTensor, dim int) {
	src, dst := x.AsFloat64(), result.AsFloat64()
	dimSize, stride, outer := softmaxDims(x.Shape(), dim)

	for o := 0; o < outer; o++ {
		for s := 0; s < stride; s++ {
			base := o*dimSize*stride + s

			maxVal := src[base]
			for d := 1; d < dimSize; d++ {
				if v := src[base+d*stride]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for d := 0; d < dimSize; d++ {
				e := math.Exp(src[base+d*stride] - maxVal)
				dst[base+d*stride] = e
				sum += e
			}
			for d := 0; d < dimSize; d++ {
				dst[base+d*stride] /= sum
			}
		}
	}
}

func softmaxDims(shape tensor.Shape, dim int) (dimSize, stride, outer int) {
	dimSize = shape[dim]
	stride = 1
	for i := dim + 1; i < len(shape); i++ {
		stride *= shape[i]
	}
	outer = 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	return dimSize, stride, outer
}
