package generic

import (
	"fmt"

	"github.com/fathom-ml/fathom/internal/tensor"
)

// MatMul performs 2-D matrix multiplication: [m, k] x [k, n] -> [m, n].
func (c *Compute) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	if len(a.Shape()) != 2 || len(b.Shape()) != 2 {
		panic(fmt.Sprintf("matmul: expected 2-D operands, got %v x %v", a.Shape(), b.Shape()))
	}
	m, k := a.Shape()[0], a.Shape()[1]
	kb, n := b.Shape()[0], b.Shape()[1]
	if k != kb {
		panic(fmt.Sprintf("matmul: inner dimension mismatch: %v x %v", a.Shape(), b.Shape()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch: %s vs %s", a.DType(), b.DType()))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		matmul(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	case tensor.Float64:
		matmul(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n)
	case tensor.Int32:
		matmul(result.AsInt32(), a.AsInt32(), b.AsInt32(), m, k, n)
	case tensor.Int64:
		matmul(result.AsInt64(), a.AsInt64(), b.AsInt64(), m, k, n)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

func matmul[T int32 | int64 | float32 | float64](dst, a, b []T, m, k, n int) {
	// ikj loop order keeps the inner loop sequential over b and dst.
	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			row := p * n
			out := i * n
			for j := 0; j < n; j++ {
				dst[out+j] += av * b[row+j]
			}
		}
	}
}
