package engine

import (
	"fmt"

	"github.com/fathom-ml/fathom/internal/onnx"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// registerBuiltins installs the default-domain operator set.
func registerBuiltins(r *Registry) {
	r.Register("", "Add", binaryKernel(func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Add(a, b)
	}))
	r.Register("", "Sub", binaryKernel(func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Sub(a, b)
	}))
	r.Register("", "Mul", binaryKernel(func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Mul(a, b)
	}))
	r.Register("", "Div", binaryKernel(func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Div(a, b)
	}))
	r.Register("", "MatMul", binaryKernel(func(ctx *Context, a, b *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.MatMul(a, b)
	}))
	r.Register("", "Relu", unaryKernel(func(ctx *Context, x *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Relu(x)
	}))
	r.Register("", "Sigmoid", unaryKernel(func(ctx *Context, x *tensor.RawTensor) *tensor.RawTensor {
		return ctx.Backend.Sigmoid(x)
	}))
	r.Register("", "Identity", identityKernel)
	r.Register("", "Softmax", softmaxKernel)
	r.Register("", "Gemm", gemmKernel)
	r.Register("", "Reshape", reshapeKernel)
	r.Register("", "Transpose", transposeKernel)
	r.Register("", "Cast", castKernel)
}

func binaryKernel(f func(*Context, *tensor.RawTensor, *tensor.RawTensor) *tensor.RawTensor) Handler {
	return func(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := wantInputs(node, inputs, 2); err != nil {
			return nil, err
		}
		return []*tensor.RawTensor{f(ctx, inputs[0], inputs[1])}, nil
	}
}

func unaryKernel(f func(*Context, *tensor.RawTensor) *tensor.RawTensor) Handler {
	return func(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if err := wantInputs(node, inputs, 1); err != nil {
			return nil, err
		}
		return []*tensor.RawTensor{f(ctx, inputs[0])}, nil
	}
}

func identityKernel(_ *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs(node, inputs, 1); err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{inputs[0].Clone()}, nil
}

func softmaxKernel(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs(node, inputs, 1); err != nil {
		return nil, err
	}
	dim := int(intAttr(node, "axis", -1))
	return []*tensor.RawTensor{ctx.Backend.Softmax(inputs[0], dim)}, nil
}

// gemmKernel computes alpha*A'*B' + beta*C with optional transposes. Alpha
// and beta scaling is applied through element-wise multiplies so the whole
// kernel stays on the backend.
func gemmKernel(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs(node, inputs, 2); err != nil {
		return nil, err
	}
	a, b := inputs[0], inputs[1]
	if intAttr(node, "transA", 0) != 0 {
		a = ctx.Backend.Transpose(a)
	}
	if intAttr(node, "transB", 0) != 0 {
		b = ctx.Backend.Transpose(b)
	}

	out := ctx.Backend.MatMul(a, b)
	if alpha := floatAttr(node, "alpha", 1); alpha != 1 {
		out = ctx.Backend.Mul(out, scalar(alpha))
	}
	if len(inputs) > 2 && inputs[2] != nil {
		c := inputs[2]
		if beta := floatAttr(node, "beta", 1); beta != 1 {
			c = ctx.Backend.Mul(c, scalar(beta))
		}
		out = ctx.Backend.Add(out, c)
	}
	return []*tensor.RawTensor{out}, nil
}

func scalar(v float32) *tensor.RawTensor {
	s, err := tensor.FromFloat32([]float32{v}, tensor.Shape{1})
	if err != nil {
		panic(fmt.Sprintf("gemm: %v", err))
	}
	return s
}

// reshapeKernel reads the target shape from its second input. A -1 entry is
// inferred from the remaining elements; a 0 entry copies the corresponding
// input dimension.
func reshapeKernel(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs(node, inputs, 2); err != nil {
		return nil, err
	}
	x, shapeTensor := inputs[0], inputs[1]
	if shapeTensor.DType() != tensor.Int64 {
		return nil, fmt.Errorf("Reshape (%s): shape input must be int64, got %s", node.Name, shapeTensor.DType())
	}

	spec := shapeTensor.AsInt64()
	shape := make(tensor.Shape, len(spec))
	infer := -1
	known := 1
	for i, v := range spec {
		switch {
		case v == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("Reshape (%s): more than one -1 in shape %v", node.Name, spec)
			}
			infer = i
		case v == 0:
			if i >= len(x.Shape()) {
				return nil, fmt.Errorf("Reshape (%s): dimension %d copies beyond input rank", node.Name, i)
			}
			shape[i] = x.Shape()[i]
			known *= shape[i]
		default:
			shape[i] = int(v)
			known *= shape[i]
		}
	}
	if infer >= 0 {
		if known == 0 || x.NumElements()%known != 0 {
			return nil, fmt.Errorf("Reshape (%s): cannot infer dimension for %v from %d elements",
				node.Name, spec, x.NumElements())
		}
		shape[infer] = x.NumElements() / known
	}

	return []*tensor.RawTensor{ctx.Backend.Reshape(x, shape)}, nil
}

func transposeKernel(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs(node, inputs, 1); err != nil {
		return nil, err
	}
	perm := intsAttr(node, "perm")
	axes := make([]int, len(perm))
	for i, p := range perm {
		axes[i] = int(p)
	}
	return []*tensor.RawTensor{ctx.Backend.Transpose(inputs[0], axes...)}, nil
}

func castKernel(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := wantInputs(node, inputs, 1); err != nil {
		return nil, err
	}
	to := intAttr(node, "to", 0)
	dtype, err := dtypeFromElem(int32(to))
	if err != nil {
		return nil, fmt.Errorf("Cast (%s): %v", node.Name, err)
	}
	return []*tensor.RawTensor{ctx.Backend.Cast(inputs[0], dtype)}, nil
}

// dtypeFromElem maps a serialized element type to a tensor data type.
func dtypeFromElem(elem int32) (tensor.DataType, error) {
	switch elem {
	case onnx.ElemFloat:
		return tensor.Float32, nil
	case onnx.ElemFloat16:
		return tensor.Float16, nil
	case onnx.ElemDouble:
		return tensor.Float64, nil
	case onnx.ElemInt32:
		return tensor.Int32, nil
	case onnx.ElemInt64:
		return tensor.Int64, nil
	case onnx.ElemUint8:
		return tensor.Uint8, nil
	case onnx.ElemBool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("unsupported element type %d", elem)
	}
}
