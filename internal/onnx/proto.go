// Package onnx decodes the ONNX serialized model format into an in-memory
// model tree. It implements just enough of the protobuf wire format to read
// model structure and weights; graph execution lives elsewhere.
package onnx

// Model is the root of a decoded ONNX model.
type Model struct {
	IRVersion       int64
	OpsetImports    []OperatorSet
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Graph           *Graph
	Metadata        []MetadataEntry
}

// Graph is the computation graph: nodes plus declared inputs, outputs and
// baked-in initializer tensors.
type Graph struct {
	Name         string
	Nodes        []Node
	Inputs       []ValueInfo
	Outputs      []ValueInfo
	Initializers []Tensor
	ValueInfos   []ValueInfo
	DocString    string
}

// Node is a single operation in the graph.
type Node struct {
	Name       string
	OpType     string
	Domain     string // empty for the default operator domain
	Inputs     []string
	Outputs    []string
	Attributes []Attribute
	DocString  string
}

// Tensor holds a constant tensor (weights and other initializers).
type Tensor struct {
	Name      string
	DataType  int32
	Dims      []int64
	RawData   []byte
	FloatData []float32
	Int32Data []int32
	Int64Data []int64
	DocString string
}

// ValueInfo describes a named, typed graph value.
type ValueInfo struct {
	Name      string
	Type      *Type
	DocString string
}

// Type is the oneof type wrapper; exactly one member is set.
type Type struct {
	TensorType   *TensorType
	SequenceType *SequenceType
	MapType      *MapType
}

// TensorType carries the element type and shape of a tensor value.
type TensorType struct {
	ElemType int32
	Shape    *TensorShape
}

// SequenceType describes a homogeneous sequence value.
type SequenceType struct {
	ElemType *Type
}

// MapType describes a map value with scalar keys.
type MapType struct {
	KeyType   int32
	ValueType *Type
}

// TensorShape is an ordered list of dimensions.
type TensorShape struct {
	Dims []Dimension
}

// Dimension is either a static size (Value) or a named dynamic size (Param).
type Dimension struct {
	Value int64
	Param string
}

// Attribute is a named node parameter.
type Attribute struct {
	Name      string
	Type      int32
	F         float32
	I         int64
	S         []byte
	T         *Tensor
	Floats    []float32
	Ints      []int64
	Strings   [][]byte
	DocString string
}

// OperatorSet identifies an operator domain and opset version.
type OperatorSet struct {
	Domain  string
	Version int64
}

// MetadataEntry is one key-value pair of free-form model metadata.
type MetadataEntry struct {
	Key   string
	Value string
}

// Element types (TensorProto.DataType values from the ONNX schema).
const (
	ElemUndefined  = 0
	ElemFloat      = 1  // float32
	ElemUint8      = 2
	ElemInt8       = 3
	ElemUint16     = 4
	ElemInt16      = 5
	ElemInt32      = 6
	ElemInt64      = 7
	ElemString     = 8
	ElemBool       = 9
	ElemFloat16    = 10
	ElemDouble     = 11 // float64
	ElemUint32     = 12
	ElemUint64     = 13
	ElemComplex64  = 14
	ElemComplex128 = 15
	ElemBfloat16   = 16
)

// Attribute types (AttributeProto.AttributeType values).
const (
	AttrUndefined = 0
	AttrFloat     = 1
	AttrInt       = 2
	AttrString    = 3
	AttrTensor    = 4
	AttrGraph     = 5
	AttrFloats    = 6
	AttrInts      = 7
	AttrStrings   = 8
)

// Clone returns a deep copy of the model tree.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	out := *m
	out.OpsetImports = append([]OperatorSet(nil), m.OpsetImports...)
	out.Metadata = append([]MetadataEntry(nil), m.Metadata...)
	out.Graph = m.Graph.Clone()
	return &out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := *g
	out.Nodes = make([]Node, len(g.Nodes))
	for i := range g.Nodes {
		out.Nodes[i] = g.Nodes[i].clone()
	}
	out.Inputs = cloneValueInfos(g.Inputs)
	out.Outputs = cloneValueInfos(g.Outputs)
	out.ValueInfos = cloneValueInfos(g.ValueInfos)
	out.Initializers = make([]Tensor, len(g.Initializers))
	for i := range g.Initializers {
		out.Initializers[i] = g.Initializers[i].clone()
	}
	return &out
}

func (n Node) clone() Node {
	out := n
	out.Inputs = append([]string(nil), n.Inputs...)
	out.Outputs = append([]string(nil), n.Outputs...)
	out.Attributes = make([]Attribute, len(n.Attributes))
	for i := range n.Attributes {
		out.Attributes[i] = n.Attributes[i].clone()
	}
	return out
}

func (t Tensor) clone() Tensor {
	out := t
	out.Dims = append([]int64(nil), t.Dims...)
	out.RawData = append([]byte(nil), t.RawData...)
	out.FloatData = append([]float32(nil), t.FloatData...)
	out.Int32Data = append([]int32(nil), t.Int32Data...)
	out.Int64Data = append([]int64(nil), t.Int64Data...)
	return out
}

func (a Attribute) clone() Attribute {
	out := a
	out.S = append([]byte(nil), a.S...)
	out.Floats = append([]float32(nil), a.Floats...)
	out.Ints = append([]int64(nil), a.Ints...)
	if a.T != nil {
		c := a.T.clone()
		out.T = &c
	}
	out.Strings = make([][]byte, len(a.Strings))
	for i, s := range a.Strings {
		out.Strings[i] = append([]byte(nil), s...)
	}
	return out
}

func cloneValueInfos(in []ValueInfo) []ValueInfo {
	out := make([]ValueInfo, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Type = in[i].Type.Clone()
	}
	return out
}

// Clone returns a deep copy of the type wrapper.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	out := &Type{}
	if t.TensorType != nil {
		tt := *t.TensorType
		if tt.Shape != nil {
			sh := TensorShape{Dims: append([]Dimension(nil), tt.Shape.Dims...)}
			tt.Shape = &sh
		}
		out.TensorType = &tt
	}
	if t.SequenceType != nil {
		out.SequenceType = &SequenceType{ElemType: t.SequenceType.ElemType.Clone()}
	}
	if t.MapType != nil {
		out.MapType = &MapType{
			KeyType:   t.MapType.KeyType,
			ValueType: t.MapType.ValueType.Clone(),
		}
	}
	return out
}
