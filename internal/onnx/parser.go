package onnx

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ParseError reports malformed model bytes.
type ParseError struct {
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("onnx: malformed model at byte %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

// Parse decodes ONNX model bytes into a Model tree.
func Parse(data []byte) (*Model, error) {
	d := &decoder{buf: data}
	m, err := d.model()
	if err != nil {
		return nil, &ParseError{Offset: d.pos, Err: err}
	}
	return m, nil
}

// decoder walks a protobuf-encoded byte slice. Nested messages are decoded
// by slicing out their payload into a child decoder.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) done() bool { return d.pos >= len(d.buf) }

func (d *decoder) uvarint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if d.pos >= len(d.buf) {
			return 0, io.ErrUnexpectedEOF
		}
		b := d.buf[d.pos]
		d.pos++
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("varint overflow")
		}
	}
}

func (d *decoder) varint() (int64, error) {
	v, err := d.uvarint()
	return int64(v), err //nolint:gosec // protobuf int64 fields round-trip through uint64
}

func (d *decoder) tag() (num, wire int, err error) {
	t, err := d.uvarint()
	if err != nil {
		return 0, 0, err
	}
	return int(t >> 3), int(t & 0x7), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	end := d.pos + int(n) //nolint:gosec // bounds-checked below
	if end < d.pos || end > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	out := d.buf[d.pos:end]
	d.pos = end
	return out, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	return string(b), err
}

func (d *decoder) sub() (*decoder, error) {
	b, err := d.bytes()
	if err != nil {
		return nil, err
	}
	return &decoder{buf: b}, nil
}

func (d *decoder) fixed32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := d.uvarint()
		return err
	case wire64Bit:
		if d.pos+8 > len(d.buf) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 8
		return nil
	case wireBytes:
		_, err := d.bytes()
		return err
	case wire32Bit:
		_, err := d.fixed32()
		return err
	default:
		return fmt.Errorf("unknown wire type %d", wire)
	}
}

// packedInt64 decodes a packed repeated varint payload, tolerating the
// unpacked single-value encoding some exporters still emit.
func (d *decoder) packedInt64(wire int, dst []int64) ([]int64, error) {
	if wire == wireVarint {
		v, err := d.varint()
		if err != nil {
			return dst, err
		}
		return append(dst, v), nil
	}
	sub, err := d.sub()
	if err != nil {
		return dst, err
	}
	for !sub.done() {
		v, err := sub.varint()
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

func (d *decoder) packedFloat32(dst []float32) ([]float32, error) {
	b, err := d.bytes()
	if err != nil {
		return dst, err
	}
	for i := 0; i+4 <= len(b); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
	}
	return dst, nil
}

func (d *decoder) model() (*Model, error) {
	m := &Model{}
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return nil, err
		}

		switch num {
		case 1: // ir_version
			m.IRVersion, err = d.varint()
		case 2: // producer_name
			m.ProducerName, err = d.str()
		case 3: // producer_version
			m.ProducerVersion, err = d.str()
		case 4: // domain
			m.Domain, err = d.str()
		case 5: // model_version
			m.ModelVersion, err = d.varint()
		case 6: // doc_string
			m.DocString, err = d.str()
		case 7: // graph
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				m.Graph, err = sub.graph()
			}
		case 8: // opset_import
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var os OperatorSet
				if os, err = sub.opset(); err == nil {
					m.OpsetImports = append(m.OpsetImports, os)
				}
			}
		case 14: // metadata_props
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var e MetadataEntry
				if e, err = sub.metadataEntry(); err == nil {
					m.Metadata = append(m.Metadata, e)
				}
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (d *decoder) graph() (*Graph, error) {
	g := &Graph{}
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return nil, err
		}

		switch num {
		case 1: // node
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var n Node
				if n, err = sub.node(); err == nil {
					g.Nodes = append(g.Nodes, n)
				}
			}
		case 2: // name
			g.Name, err = d.str()
		case 5: // initializer
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var t Tensor
				if t, err = sub.tensor(); err == nil {
					g.Initializers = append(g.Initializers, t)
				}
			}
		case 10: // doc_string
			g.DocString, err = d.str()
		case 11: // input
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var vi ValueInfo
				if vi, err = sub.valueInfo(); err == nil {
					g.Inputs = append(g.Inputs, vi)
				}
			}
		case 12: // output
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var vi ValueInfo
				if vi, err = sub.valueInfo(); err == nil {
					g.Outputs = append(g.Outputs, vi)
				}
			}
		case 13: // value_info
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var vi ValueInfo
				if vi, err = sub.valueInfo(); err == nil {
					g.ValueInfos = append(g.ValueInfos, vi)
				}
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (d *decoder) node() (Node, error) {
	var n Node
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return n, err
		}

		switch num {
		case 1: // input
			var s string
			if s, err = d.str(); err == nil {
				n.Inputs = append(n.Inputs, s)
			}
		case 2: // output
			var s string
			if s, err = d.str(); err == nil {
				n.Outputs = append(n.Outputs, s)
			}
		case 3: // name
			n.Name, err = d.str()
		case 4: // op_type
			n.OpType, err = d.str()
		case 5: // attribute
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var a Attribute
				if a, err = sub.attribute(); err == nil {
					n.Attributes = append(n.Attributes, a)
				}
			}
		case 6: // doc_string
			n.DocString, err = d.str()
		case 7: // domain
			n.Domain, err = d.str()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (d *decoder) tensor() (Tensor, error) {
	var t Tensor
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return t, err
		}

		switch num {
		case 1: // dims
			t.Dims, err = d.packedInt64(wire, t.Dims)
		case 2: // data_type
			var v int64
			if v, err = d.varint(); err == nil {
				t.DataType = int32(v) //nolint:gosec // schema enum fits int32
			}
		case 4: // float_data
			t.FloatData, err = d.packedFloat32(t.FloatData)
		case 5: // int32_data
			var vals []int64
			if vals, err = d.packedInt64(wire, nil); err == nil {
				for _, v := range vals {
					t.Int32Data = append(t.Int32Data, int32(v)) //nolint:gosec // schema int32
				}
			}
		case 7: // int64_data
			t.Int64Data, err = d.packedInt64(wire, t.Int64Data)
		case 8: // name
			t.Name, err = d.str()
		case 9: // raw_data
			var b []byte
			if b, err = d.bytes(); err == nil {
				t.RawData = b
			}
		case 12: // doc_string
			t.DocString, err = d.str()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

func (d *decoder) valueInfo() (ValueInfo, error) {
	var vi ValueInfo
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return vi, err
		}

		switch num {
		case 1: // name
			vi.Name, err = d.str()
		case 2: // type
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				vi.Type, err = sub.typeProto()
			}
		case 3: // doc_string
			vi.DocString, err = d.str()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return vi, err
		}
	}
	return vi, nil
}

func (d *decoder) typeProto() (*Type, error) {
	t := &Type{}
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return nil, err
		}

		switch num {
		case 1: // tensor_type
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				t.TensorType, err = sub.tensorType()
			}
		case 4: // sequence_type
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				t.SequenceType, err = sub.sequenceType()
			}
		case 5: // map_type
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				t.MapType, err = sub.mapType()
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (d *decoder) tensorType() (*TensorType, error) {
	tt := &TensorType{}
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return nil, err
		}

		switch num {
		case 1: // elem_type
			var v int64
			if v, err = d.varint(); err == nil {
				tt.ElemType = int32(v) //nolint:gosec // schema enum fits int32
			}
		case 2: // shape
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				tt.Shape, err = sub.tensorShape()
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return tt, nil
}

func (d *decoder) sequenceType() (*SequenceType, error) {
	st := &SequenceType{}
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return nil, err
		}

		if num == 1 { // elem_type
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				st.ElemType, err = sub.typeProto()
			}
		} else {
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (d *decoder) mapType() (*MapType, error) {
	mt := &MapType{}
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return nil, err
		}

		switch num {
		case 1: // key_type
			var v int64
			if v, err = d.varint(); err == nil {
				mt.KeyType = int32(v) //nolint:gosec // schema enum fits int32
			}
		case 2: // value_type
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				mt.ValueType, err = sub.typeProto()
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return mt, nil
}

func (d *decoder) tensorShape() (*TensorShape, error) {
	ts := &TensorShape{}
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return nil, err
		}

		if num == 1 { // dim
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var dim Dimension
				if dim, err = sub.dimension(); err == nil {
					ts.Dims = append(ts.Dims, dim)
				}
			}
		} else {
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func (d *decoder) dimension() (Dimension, error) {
	var dim Dimension
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return dim, err
		}

		switch num {
		case 1: // dim_value
			dim.Value, err = d.varint()
		case 2: // dim_param
			dim.Param, err = d.str()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return dim, err
		}
	}
	return dim, nil
}

func (d *decoder) attribute() (Attribute, error) {
	var a Attribute
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return a, err
		}

		switch num {
		case 1: // name
			a.Name, err = d.str()
		case 2: // f
			var v uint32
			if v, err = d.fixed32(); err == nil {
				a.F = math.Float32frombits(v)
			}
		case 3: // i
			a.I, err = d.varint()
		case 4: // s
			a.S, err = d.bytes()
		case 5: // t
			var sub *decoder
			if sub, err = d.sub(); err == nil {
				var t Tensor
				if t, err = sub.tensor(); err == nil {
					a.T = &t
				}
			}
		case 7: // floats
			a.Floats, err = d.packedFloat32(a.Floats)
		case 8: // ints
			a.Ints, err = d.packedInt64(wire, a.Ints)
		case 9: // strings
			var b []byte
			if b, err = d.bytes(); err == nil {
				a.Strings = append(a.Strings, b)
			}
		case 13: // doc_string
			a.DocString, err = d.str()
		case 20: // type
			var v int64
			if v, err = d.varint(); err == nil {
				a.Type = int32(v) //nolint:gosec // schema enum fits int32
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return a, err
		}
	}
	return a, nil
}

func (d *decoder) opset() (OperatorSet, error) {
	var os OperatorSet
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return os, err
		}

		switch num {
		case 1: // domain
			os.Domain, err = d.str()
		case 2: // version
			os.Version, err = d.varint()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return os, err
		}
	}
	return os, nil
}

func (d *decoder) metadataEntry() (MetadataEntry, error) {
	var e MetadataEntry
	for !d.done() {
		num, wire, err := d.tag()
		if err != nil {
			return e, err
		}

		switch num {
		case 1: // key
			e.Key, err = d.str()
		case 2: // value
			e.Value, err = d.str()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return e, err
		}
	}
	return e, nil
}
