// Copyright 2026 Fathom ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for tensor values exchanged with
// the inference runtime:
//   - RawTensor: the typed, shaped value handle bound to model inputs and
//     outputs
//   - Backend: the device compute interface execution providers implement
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{1, 4})
package tensor

import (
	"github.com/fathom-ml/fathom/internal/tensor"
)

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Device represents where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	Host Device = tensor.Host
	GPU  Device = tensor.GPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{1, 3, 224, 224} is a batched image tensor.
type Shape = tensor.Shape

// RawTensor is the value handle passed through bindings and backends.
type RawTensor = tensor.RawTensor

// Backend is the device compute interface.
type Backend = tensor.Backend

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat32 creates a float32 tensor initialized from data.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(data, shape)
}

// FromBytes creates a tensor over a copy of raw little-endian element data.
func FromBytes(data []byte, shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.FromBytes(data, shape, dtype)
}

// BroadcastShapes computes the NumPy-style broadcast result of two shapes.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
