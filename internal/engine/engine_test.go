package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathom-ml/fathom/internal/backend/generic"
	"github.com/fathom-ml/fathom/internal/onnx"
	"github.com/fathom-ml/fathom/internal/onnx/onnxtest"
	"github.com/fathom-ml/fathom/internal/tensor"
)

func parseGraph(t *testing.T, data []byte) *onnx.Graph {
	t.Helper()
	m, err := onnx.Parse(data)
	require.NoError(t, err)
	return m.Graph
}

func hostCtx() *Context {
	return &Context{Backend: generic.NewCompute()}
}

func feed(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromFloat32(data, shape)
	require.NoError(t, err)
	return x
}

func TestExecuteSimpleAdd(t *testing.T) {
	g, err := Compile(parseGraph(t, onnxtest.SimpleAdd()), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "Y"}, g.InputNames())
	assert.Equal(t, []string{"Z"}, g.OutputNames())

	results, err := g.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 4}),
		"Y": feed(t, []float32{10, 20, 30, 40}, tensor.Shape{1, 4}),
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 22, 33, 44}, results["Z"].AsFloat32())
}

func TestExecuteMatMulInitializer(t *testing.T) {
	g, err := Compile(parseGraph(t, onnxtest.MatMulWithWeight()), nil)
	require.NoError(t, err)

	// W is carried by the graph, so only X is bindable.
	assert.Equal(t, []string{"X"}, g.InputNames())

	results, err := g.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 4}),
	})
	require.NoError(t, err)
	// W is all zeros, so the product is zero.
	assert.Equal(t, []float32{0, 0, 0, 0}, results["Y"].AsFloat32())
}

func TestExecuteMissingInput(t *testing.T) {
	g, err := Compile(parseGraph(t, onnxtest.SimpleAdd()), nil)
	require.NoError(t, err)

	_, err = g.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 4}),
	})
	assert.ErrorContains(t, err, "not bound")
}

func chainModel() []byte {
	// Nodes deliberately out of execution order.
	g := onnxtest.Graph("chain",
		[]*onnxtest.Buffer{
			onnxtest.Node("Relu", "relu0", []string{"sum"}, []string{"Y"}),
			onnxtest.Node("Add", "add0", []string{"X", "X"}, []string{"sum"}),
		},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{2})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat, []int64{2})},
		nil,
	)
	return onnxtest.Model(g, onnxtest.ModelOpts{})
}

func TestCompileReordersNodes(t *testing.T) {
	g, err := Compile(parseGraph(t, chainModel()), nil)
	require.NoError(t, err)

	results, err := g.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, []float32{-1, 2}, tensor.Shape{2}),
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 4}, results["Y"].AsFloat32())
}

func TestCompileCycle(t *testing.T) {
	g := onnxtest.Graph("cycle",
		[]*onnxtest.Buffer{
			onnxtest.Node("Add", "a", []string{"X", "u"}, []string{"v"}),
			onnxtest.Node("Add", "b", []string{"X", "v"}, []string{"u"}),
		},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{1})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("v", onnxtest.ElemFloat, []int64{1})},
		nil,
	)
	_, err := Compile(parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{})), nil)
	assert.ErrorContains(t, err, "cycle")
}

func TestCompileUnknownOperator(t *testing.T) {
	g := onnxtest.Graph("unknown",
		[]*onnxtest.Buffer{onnxtest.Node("FancyConv", "n0", []string{"X"}, []string{"Y"})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{1})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat, []int64{1})},
		nil,
	)
	_, err := Compile(parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{})), nil)
	assert.ErrorContains(t, err, "no handler")
}

func TestReshapeInference(t *testing.T) {
	g := onnxtest.Graph("reshape",
		[]*onnxtest.Buffer{onnxtest.Node("Reshape", "r0", []string{"X", "shape"}, []string{"Y"})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{2, 6})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat, []int64{3, 4})},
		[]*onnxtest.Buffer{onnxtest.Int64Initializer("shape", []int64{2}, []int64{3, -1})},
	)
	compiled, err := Compile(parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{})), nil)
	require.NoError(t, err)

	results, err := compiled.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, make([]float32, 12), tensor.Shape{2, 6}),
	})
	require.NoError(t, err)
	assert.True(t, results["Y"].Shape().Equal(tensor.Shape{3, 4}))
}

func TestCastThroughGraph(t *testing.T) {
	n := onnxtest.Node("Cast", "c0", []string{"X"}, []string{"Y"})
	onnxtest.IntAttr(n, "to", onnxtest.ElemInt64)
	g := onnxtest.Graph("cast",
		[]*onnxtest.Buffer{n},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{3})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemInt64, []int64{3})},
		nil,
	)
	compiled, err := Compile(parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{})), nil)
	require.NoError(t, err)

	results, err := compiled.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, []float32{1.7, -2.2, 3}, tensor.Shape{3}),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, -2, 3}, results["Y"].AsInt64())
}

func TestFoldIdentity(t *testing.T) {
	g := onnxtest.Graph("identity",
		[]*onnxtest.Buffer{
			onnxtest.Node("Identity", "id0", []string{"X"}, []string{"mid"}),
			onnxtest.Node("Relu", "relu0", []string{"mid"}, []string{"Y"}),
		},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{2})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat, []int64{2})},
		nil,
	)
	graph := parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{}))

	ApplyTransforms(graph)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "Relu", graph.Nodes[0].OpType)
	assert.Equal(t, []string{"X"}, graph.Nodes[0].Inputs)

	compiled, err := Compile(graph, nil)
	require.NoError(t, err)
	results, err := compiled.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, []float32{-1, 5}, tensor.Shape{2}),
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 5}, results["Y"].AsFloat32())
}

func TestIdentityProducingOutputIsKept(t *testing.T) {
	g := onnxtest.Graph("identity-out",
		[]*onnxtest.Buffer{onnxtest.Node("Identity", "id0", []string{"X"}, []string{"Y"})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{2})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat, []int64{2})},
		nil,
	)
	graph := parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{}))

	ApplyTransforms(graph)
	require.Len(t, graph.Nodes, 1)
}

func TestPruneDeadNodes(t *testing.T) {
	g := onnxtest.Graph("dead",
		[]*onnxtest.Buffer{
			onnxtest.Node("Relu", "live", []string{"X"}, []string{"Y"}),
			onnxtest.Node("Sigmoid", "dead", []string{"X"}, []string{"unused"}),
		},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{2})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat, []int64{2})},
		nil,
	)
	graph := parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{}))

	ApplyTransforms(graph)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "live", graph.Nodes[0].Name)
}

func TestCustomRegistryOverride(t *testing.T) {
	custom := NewRegistry()
	custom.Register("", "Relu", func(_ *Context, _ *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		// A deliberately wrong Relu that proves the override is used.
		return []*tensor.RawTensor{inputs[0].Clone()}, nil
	})

	registry := DefaultRegistry()
	registry.Merge(custom)

	g, err := Compile(parseGraph(t, chainModel()), registry)
	require.NoError(t, err)

	results, err := g.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"X": feed(t, []float32{-1, 2}, tensor.Shape{2}),
	})
	require.NoError(t, err)
	// Negative values survive because the override skipped the clamp.
	assert.Equal(t, []float32{-2, 4}, results["Y"].AsFloat32())
}

func TestGemm(t *testing.T) {
	n := onnxtest.Node("Gemm", "g0", []string{"A", "B", "C"}, []string{"Y"})
	g := onnxtest.Graph("gemm",
		[]*onnxtest.Buffer{n},
		[]*onnxtest.Buffer{
			onnxtest.ValueInfo("A", onnxtest.ElemFloat, []int64{2, 3}),
			onnxtest.ValueInfo("B", onnxtest.ElemFloat, []int64{3, 2}),
			onnxtest.ValueInfo("C", onnxtest.ElemFloat, []int64{2, 2}),
		},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat, []int64{2, 2})},
		nil,
	)
	compiled, err := Compile(parseGraph(t, onnxtest.Model(g, onnxtest.ModelOpts{})), nil)
	require.NoError(t, err)

	results, err := compiled.Execute(hostCtx(), map[string]*tensor.RawTensor{
		"A": feed(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}),
		"B": feed(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2}),
		"C": feed(t, []float32{1, 1, 1, 1}, tensor.Shape{2, 2}),
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{59, 65, 140, 155}, results["Y"].AsFloat32())
}
