package generic

import (
	"math"
	"testing"

	"github.com/fathom-ml/fathom/internal/backend"
	"github.com/fathom-ml/fathom/internal/memory"
	"github.com/fathom-ml/fathom/internal/tensor"
)

const epsilon = 1e-5

func tensorOf(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromFloat32(data, shape)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	return x
}

func assertFloats(t *testing.T, got *tensor.RawTensor, want []float32) {
	t.Helper()
	out := got.AsFloat32()
	if len(out) != len(want) {
		t.Fatalf("Expected %d elements, got %d", len(want), len(out))
	}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > epsilon {
			t.Errorf("Element %d: got %f, expected %f", i, out[i], want[i])
		}
	}
}

func TestBinaryOps(t *testing.T) {
	c := NewCompute()

	tests := []struct {
		name string
		op   func(a, b *tensor.RawTensor) *tensor.RawTensor
		a, b []float32
		want []float32
	}{
		{"add", c.Add, []float32{1, 2, 3, 4}, []float32{10, 20, 30, 40}, []float32{11, 22, 33, 44}},
		{"sub", c.Sub, []float32{10, 20, 30, 40}, []float32{1, 2, 3, 4}, []float32{9, 18, 27, 36}},
		{"mul", c.Mul, []float32{1, 2, 3, 4}, []float32{2, 2, 2, 2}, []float32{2, 4, 6, 8}},
		{"div", c.Div, []float32{2, 4, 6, 8}, []float32{2, 2, 2, 2}, []float32{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tensorOf(t, tt.a, tensor.Shape{2, 2})
			b := tensorOf(t, tt.b, tensor.Shape{2, 2})
			assertFloats(t, tt.op(a, b), tt.want)
		})
	}
}

func TestAddBroadcast(t *testing.T) {
	c := NewCompute()

	// [2, 3] + [3] broadcasts the row vector.
	a := tensorOf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := tensorOf(t, []float32{10, 20, 30}, tensor.Shape{3})

	result := c.Add(a, b)
	if !result.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("Expected shape [2 3], got %v", result.Shape())
	}
	assertFloats(t, result, []float32{11, 22, 33, 14, 25, 36})
}

func TestAddScalarBroadcast(t *testing.T) {
	c := NewCompute()

	a := tensorOf(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := tensorOf(t, []float32{100}, tensor.Shape{1})
	assertFloats(t, c.Add(a, b), []float32{101, 102, 103, 104})
}

func TestAddShapeMismatchPanics(t *testing.T) {
	c := NewCompute()

	a := tensorOf(t, []float32{1, 2, 3}, tensor.Shape{3})
	b := tensorOf(t, []float32{1, 2}, tensor.Shape{2})

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for incompatible shapes")
		}
	}()
	c.Add(a, b)
}

func TestMatMul(t *testing.T) {
	c := NewCompute()

	a := tensorOf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := tensorOf(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	result := c.MatMul(a, b)
	if !result.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("Expected shape [2 2], got %v", result.Shape())
	}
	assertFloats(t, result, []float32{58, 64, 139, 154})
}

func TestMatMulInnerDimMismatchPanics(t *testing.T) {
	c := NewCompute()

	a := tensorOf(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := tensorOf(t, []float32{1, 2, 3}, tensor.Shape{3, 1})

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for inner dimension mismatch")
		}
	}()
	c.MatMul(a, b)
}

func TestRelu(t *testing.T) {
	c := NewCompute()
	x := tensorOf(t, []float32{-2, -0.5, 0, 0.5, 2}, tensor.Shape{5})
	assertFloats(t, c.Relu(x), []float32{0, 0, 0, 0.5, 2})
}

func TestSigmoid(t *testing.T) {
	c := NewCompute()
	x := tensorOf(t, []float32{0, 2, -2}, tensor.Shape{3})

	out := c.Sigmoid(x).AsFloat32()
	want := []float32{0.5, 0.880797, 0.119203}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-4 {
			t.Errorf("sigmoid element %d: got %f, expected %f", i, out[i], want[i])
		}
	}
}

func TestSoftmax(t *testing.T) {
	c := NewCompute()
	x := tensorOf(t, []float32{1, 2, 3, 1, 1, 1}, tensor.Shape{2, 3})

	result := c.Softmax(x, -1)
	out := result.AsFloat32()

	// Rows sum to 1.
	for row := 0; row < 2; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			sum += float64(out[row*3+col])
		}
		if math.Abs(sum-1) > epsilon {
			t.Errorf("Row %d sums to %f, expected 1", row, sum)
		}
	}
	// Uniform row softmaxes to uniform.
	for col := 0; col < 3; col++ {
		if math.Abs(float64(out[3+col])-1.0/3.0) > epsilon {
			t.Errorf("Uniform row element %d: got %f", col, out[3+col])
		}
	}
	// Larger input gets larger probability.
	if !(out[2] > out[1] && out[1] > out[0]) {
		t.Errorf("Expected increasing probabilities, got %v", out[:3])
	}
}

func TestSoftmaxNonLastDim(t *testing.T) {
	c := NewCompute()
	x := tensorOf(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	out := c.Softmax(x, 0).AsFloat32()
	// Columns sum to 1.
	for col := 0; col < 2; col++ {
		sum := float64(out[col] + out[2+col])
		if math.Abs(sum-1) > epsilon {
			t.Errorf("Column %d sums to %f, expected 1", col, sum)
		}
	}
}

func TestReshape(t *testing.T) {
	c := NewCompute()
	x := tensorOf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	r := c.Reshape(x, tensor.Shape{3, 2})
	if !r.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Expected shape [3 2], got %v", r.Shape())
	}
	// Storage is shared, not copied.
	r.AsFloat32()[0] = 42
	if x.AsFloat32()[0] != 42 {
		t.Error("Expected reshape to share storage")
	}
}

func TestTranspose(t *testing.T) {
	c := NewCompute()
	x := tensorOf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	result := c.Transpose(x)
	if !result.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Expected shape [3 2], got %v", result.Shape())
	}
	assertFloats(t, result, []float32{1, 4, 2, 5, 3, 6})
}

func TestTransposeWithAxes(t *testing.T) {
	c := NewCompute()
	x, err := tensor.NewRaw(tensor.Shape{2, 3, 4}, tensor.Float32, tensor.Host)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	for i := range x.AsFloat32() {
		x.AsFloat32()[i] = float32(i)
	}

	result := c.Transpose(x, 1, 0, 2)
	if !result.Shape().Equal(tensor.Shape{3, 2, 4}) {
		t.Fatalf("Expected shape [3 2 4], got %v", result.Shape())
	}
	// [j, i, k] of result equals [i, j, k] of input.
	got := result.AsFloat32()
	if got[0*8+1*4+2] != x.AsFloat32()[1*12+0*4+2] {
		t.Error("Transpose permuted elements incorrectly")
	}
}

func TestCast(t *testing.T) {
	c := NewCompute()
	x := tensorOf(t, []float32{1.5, -2.25, 3}, tensor.Shape{3})

	i64 := c.Cast(x, tensor.Int64)
	want := []int64{1, -2, 3}
	for i, v := range i64.AsInt64() {
		if v != want[i] {
			t.Errorf("Cast to int64 element %d: got %d, expected %d", i, v, want[i])
		}
	}

	f16 := c.Cast(x, tensor.Float16)
	back := c.Cast(f16, tensor.Float32)
	assertFloats(t, back, []float32{1.5, -2.25, 3})
}

func TestProvider(t *testing.T) {
	p := New()

	if p.Kind() != backend.KindGeneric {
		t.Errorf("Expected generic kind, got %v", p.Kind())
	}
	if p.Compute().Device() != tensor.Host {
		t.Errorf("Expected host device, got %v", p.Compute().Device())
	}

	info := p.Allocator().Info()
	if info.MemoryKind() != memory.MemoryHostAccessible {
		t.Errorf("Expected host-accessible memory, got %v", info.MemoryKind())
	}

	alloc, err := p.Allocator().Alloc(64)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if err := p.Allocator().Free(alloc); err != nil {
		t.Fatalf("Free failed: %v", err)
	}

	p.Release()
	if !p.Released() {
		t.Error("Expected provider to report released")
	}
}

// Compile-time checks that the provider satisfies the execution contracts.
var (
	_ backend.Provider = (*Provider)(nil)
	_ tensor.Backend   = (*Compute)(nil)
)
