package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathom-ml/fathom/internal/onnx/onnxtest"
)

func TestParseSimpleAdd(t *testing.T) {
	m, err := Parse(onnxtest.SimpleAdd())
	require.NoError(t, err)

	assert.Equal(t, int64(8), m.IRVersion)
	assert.Equal(t, "onnxtest", m.ProducerName)
	require.NotNil(t, m.Graph)
	assert.Equal(t, "simple_add", m.Graph.Name)

	require.Len(t, m.Graph.Nodes, 1)
	node := m.Graph.Nodes[0]
	assert.Equal(t, "Add", node.OpType)
	assert.Equal(t, []string{"X", "Y"}, node.Inputs)
	assert.Equal(t, []string{"Z"}, node.Outputs)

	require.Len(t, m.Graph.Inputs, 2)
	require.Len(t, m.Graph.Outputs, 1)
}

func TestParseValueInfoTypes(t *testing.T) {
	m, err := Parse(onnxtest.SimpleAdd())
	require.NoError(t, err)

	in := m.Graph.Inputs[0]
	assert.Equal(t, "X", in.Name)
	require.NotNil(t, in.Type)
	require.NotNil(t, in.Type.TensorType)
	assert.Equal(t, int32(ElemFloat), in.Type.TensorType.ElemType)

	require.NotNil(t, in.Type.TensorType.Shape)
	dims := in.Type.TensorType.Shape.Dims
	require.Len(t, dims, 2)
	assert.Equal(t, int64(1), dims[0].Value)
	assert.Equal(t, int64(4), dims[1].Value)
}

func TestParseInitializer(t *testing.T) {
	m, err := Parse(onnxtest.MatMulWithWeight())
	require.NoError(t, err)

	require.Len(t, m.Graph.Initializers, 1)
	w := m.Graph.Initializers[0]
	assert.Equal(t, "W", w.Name)
	assert.Equal(t, int32(ElemFloat), w.DataType)
	assert.Equal(t, []int64{4, 4}, w.Dims)
	assert.Len(t, w.RawData, 64)
}

func TestParseOpsetAndMetadata(t *testing.T) {
	g := onnxtest.Graph("g", nil, nil, nil, nil)
	data := onnxtest.Model(g, onnxtest.ModelOpts{
		Metadata: map[string]string{"license": "MIT"},
	})

	m, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, m.OpsetImports, 1)
	assert.Equal(t, "", m.OpsetImports[0].Domain)
	assert.Equal(t, int64(17), m.OpsetImports[0].Version)

	require.Len(t, m.Metadata, 1)
	assert.Equal(t, "license", m.Metadata[0].Key)
	assert.Equal(t, "MIT", m.Metadata[0].Value)
}

func TestParseAttributes(t *testing.T) {
	node := onnxtest.Node("Cast", "cast0", []string{"X"}, []string{"Y"})
	onnxtest.IntAttr(node, "to", int64(ElemFloat16))
	g := onnxtest.Graph("g",
		[]*onnxtest.Buffer{node},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{2})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", onnxtest.ElemFloat16, []int64{2})},
		nil,
	)

	m, err := Parse(onnxtest.Model(g, onnxtest.ModelOpts{}))
	require.NoError(t, err)

	require.Len(t, m.Graph.Nodes, 1)
	attrs := m.Graph.Nodes[0].Attributes
	require.Len(t, attrs, 1)
	assert.Equal(t, "to", attrs[0].Name)
	assert.Equal(t, int64(ElemFloat16), attrs[0].I)
	assert.Equal(t, int32(AttrInt), attrs[0].Type)
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xfe, 0x03, 0x99, 0x01})
	require.Error(t, err)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseDynamicDimension(t *testing.T) {
	g := onnxtest.Graph("g", nil,
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", onnxtest.ElemFloat, []int64{-1, 3})},
		nil, nil,
	)
	m, err := Parse(onnxtest.Model(g, onnxtest.ModelOpts{}))
	require.NoError(t, err)

	dims := m.Graph.Inputs[0].Type.TensorType.Shape.Dims
	require.Len(t, dims, 2)
	assert.Equal(t, "batch", dims[0].Param)
	assert.Equal(t, int64(3), dims[1].Value)
}

func TestModelClone(t *testing.T) {
	m, err := Parse(onnxtest.MatMulWithWeight())
	require.NoError(t, err)

	c := m.Clone()
	require.NotSame(t, m.Graph, c.Graph)

	c.Graph.Nodes[0].OpType = "Gemm"
	c.Graph.Initializers[0].RawData[0] = 0xAB
	c.Graph.Inputs[0].Type.TensorType.ElemType = ElemFloat16

	assert.Equal(t, "MatMul", m.Graph.Nodes[0].OpType)
	assert.Equal(t, byte(0), m.Graph.Initializers[0].RawData[0])
	assert.Equal(t, int32(ElemFloat), m.Graph.Inputs[0].Type.TensorType.ElemType)
}
