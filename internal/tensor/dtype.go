// Package tensor provides the value types exchanged with execution backends:
// shapes, element types and the raw buffer-backed tensor handle.
package tensor

import "github.com/x448/float16"

// DataType represents runtime element type information for tensors.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float16
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Float16FromFloat32 converts a float32 to its IEEE 754 half-precision bits.
func Float16FromFloat32(v float32) uint16 {
	return float16.Fromfloat32(v).Bits()
}

// Float16ToFloat32 converts IEEE 754 half-precision bits to a float32.
func Float16ToFloat32(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}
