// Package onnxtest synthesizes small ONNX model byte streams for tests.
// It writes the protobuf wire format directly so tests do not depend on the
// decoder they exercise.
package onnxtest

import (
	"encoding/binary"
	"math"
)

// Wire types and the schema constants the builders need.
const (
	wireVarint = 0
	wire32Bit  = 5
	wireBytes  = 2

	// TensorProto.DataType values.
	ElemFloat   = 1
	ElemInt64   = 7
	ElemFloat16 = 10

	// AttributeProto.AttributeType values.
	attrInt = 2
)

// Buffer accumulates protobuf-encoded fields.
type Buffer struct {
	data []byte
}

// Bytes returns the encoded payload.
func (b *Buffer) Bytes() []byte { return b.data }

// Varint writes a varint field.
func (b *Buffer) Varint(field int, v int64) {
	b.tag(field, wireVarint)
	b.uvarint(uint64(v)) //nolint:gosec // protobuf round-trips negatives through uint64
}

// String writes a length-delimited string field.
func (b *Buffer) String(field int, s string) {
	b.tag(field, wireBytes)
	b.uvarint(uint64(len(s)))
	b.data = append(b.data, s...)
}

// Raw writes a length-delimited bytes field.
func (b *Buffer) Raw(field int, p []byte) {
	b.tag(field, wireBytes)
	b.uvarint(uint64(len(p)))
	b.data = append(b.data, p...)
}

// Message writes a nested message field.
func (b *Buffer) Message(field int, m *Buffer) {
	b.Raw(field, m.data)
}

// Float writes a fixed32 float field.
func (b *Buffer) Float(field int, v float32) {
	b.tag(field, wire32Bit)
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], math.Float32bits(v))
	b.data = append(b.data, p[:]...)
}

func (b *Buffer) tag(field, wire int) {
	b.uvarint(uint64(field<<3 | wire)) //nolint:gosec // small positive values
}

func (b *Buffer) uvarint(v uint64) {
	for v >= 0x80 {
		b.data = append(b.data, byte(v)|0x80)
		v >>= 7
	}
	b.data = append(b.data, byte(v))
}

// ValueInfo encodes a named tensor value with element type and shape.
// Dimensions <= 0 are written as a dynamic "batch" parameter.
func ValueInfo(name string, elemType int64, dims []int64) *Buffer {
	shape := &Buffer{}
	for _, d := range dims {
		dim := &Buffer{}
		if d > 0 {
			dim.Varint(1, d)
		} else {
			dim.String(2, "batch")
		}
		shape.Message(1, dim)
	}

	tensorType := &Buffer{}
	tensorType.Varint(1, elemType)
	tensorType.Message(2, shape)

	typ := &Buffer{}
	typ.Message(1, tensorType)

	vi := &Buffer{}
	vi.String(1, name)
	vi.Message(2, typ)
	return vi
}

// Initializer encodes a constant tensor with raw little-endian data.
func Initializer(name string, elemType int64, dims []int64, raw []byte) *Buffer {
	t := &Buffer{}
	for _, d := range dims {
		t.Varint(1, d)
	}
	t.Varint(2, elemType)
	t.String(8, name)
	t.Raw(9, raw)
	return t
}

// Int64Initializer encodes a constant int64 tensor (shape operands etc.).
func Int64Initializer(name string, dims []int64, values []int64) *Buffer {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(v)) //nolint:gosec // raw encoding
	}
	return Initializer(name, ElemInt64, dims, raw)
}

// Node encodes an operation node in the default domain.
func Node(opType, name string, inputs, outputs []string) *Buffer {
	n := &Buffer{}
	for _, in := range inputs {
		n.String(1, in)
	}
	for _, out := range outputs {
		n.String(2, out)
	}
	n.String(3, name)
	n.String(4, opType)
	return n
}

// IntAttr encodes an INT attribute onto a node.
func IntAttr(n *Buffer, name string, v int64) {
	a := &Buffer{}
	a.String(1, name)
	a.Varint(3, v)
	a.Varint(20, attrInt)
	n.Message(5, a)
}

// Graph encodes a graph from pre-built node, input, output and initializer
// buffers.
func Graph(name string, nodes, inputs, outputs, initializers []*Buffer) *Buffer {
	g := &Buffer{}
	g.String(2, name)
	for _, n := range nodes {
		g.Message(1, n)
	}
	for _, init := range initializers {
		g.Message(5, init)
	}
	for _, in := range inputs {
		g.Message(11, in)
	}
	for _, out := range outputs {
		g.Message(12, out)
	}
	return g
}

// ModelOpts carries the optional scalar model fields.
type ModelOpts struct {
	ProducerName string
	Domain       string
	DocString    string
	ModelVersion int64
	Metadata     map[string]string
}

// Model encodes a complete model around a graph.
func Model(graph *Buffer, opts ModelOpts) []byte {
	m := &Buffer{}
	m.Varint(1, 8) // ir_version

	opset := &Buffer{}
	opset.String(1, "")
	opset.Varint(2, 17)
	m.Message(8, opset)

	if opts.ProducerName != "" {
		m.String(2, opts.ProducerName)
	}
	if opts.Domain != "" {
		m.String(4, opts.Domain)
	}
	if opts.ModelVersion != 0 {
		m.Varint(5, opts.ModelVersion)
	}
	if opts.DocString != "" {
		m.String(6, opts.DocString)
	}
	m.Message(7, graph)
	for k, v := range opts.Metadata {
		e := &Buffer{}
		e.String(1, k)
		e.String(2, v)
		m.Message(14, e)
	}
	return m.Bytes()
}

// SimpleAdd returns a model computing Z = X + Y with float32 [1, 4] values.
func SimpleAdd() []byte {
	g := Graph("simple_add",
		[]*Buffer{Node("Add", "add0", []string{"X", "Y"}, []string{"Z"})},
		[]*Buffer{
			ValueInfo("X", ElemFloat, []int64{1, 4}),
			ValueInfo("Y", ElemFloat, []int64{1, 4}),
		},
		[]*Buffer{ValueInfo("Z", ElemFloat, []int64{1, 4})},
		nil,
	)
	return Model(g, ModelOpts{ProducerName: "onnxtest"})
}

// MatMulWithWeight returns a model computing Y = MatMul(X, W) where W is a
// 4x4 float32 initializer that is also declared as a graph input.
func MatMulWithWeight() []byte {
	g := Graph("matmul",
		[]*Buffer{Node("MatMul", "mm0", []string{"X", "W"}, []string{"Y"})},
		[]*Buffer{
			ValueInfo("X", ElemFloat, []int64{1, 4}),
			ValueInfo("W", ElemFloat, []int64{4, 4}),
		},
		[]*Buffer{ValueInfo("Y", ElemFloat, []int64{1, 4})},
		[]*Buffer{Initializer("W", ElemFloat, []int64{4, 4}, make([]byte, 64))},
	)
	return Model(g, ModelOpts{ProducerName: "onnxtest"})
}
