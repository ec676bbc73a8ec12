// Copyright 2026 Fathom ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the public API for loading and inspecting models
// before execution.
//
// A Descriptor owns one parsed model tree. Summarize derives the read-only
// digest (identity, metadata, input/output features) and Validate gates a
// model against a device's precision support:
//
//	d, err := model.Open("resnet.onnx")
//	if err != nil { ... }
//	s, err := model.Summarize(d)
//	if err := model.Validate(s, d, device.SupportsFloat16()); err != nil { ... }
package model

import (
	"io"

	"github.com/fathom-ml/fathom/internal/model"
)

// Descriptor wraps a parsed model with single-owner semantics.
type Descriptor = model.Descriptor

// Summary is the read-only digest of a model.
type Summary = model.Summary

// Feature describes one named model input or output.
type Feature = model.Feature

// FeatureKind classifies a feature.
type FeatureKind = model.FeatureKind

// Feature kinds.
const (
	FeatureTensor   FeatureKind = model.FeatureTensor
	FeatureImage    FeatureKind = model.FeatureImage
	FeatureMap      FeatureKind = model.FeatureMap
	FeatureSequence FeatureKind = model.FeatureSequence
)

// Feature descriptor variants.
type (
	TensorFeature   = model.TensorFeature
	ImageFeature    = model.ImageFeature
	MapFeature      = model.MapFeature
	SequenceFeature = model.SequenceFeature
)

// Dim is one dimension of a tensor feature's shape.
type Dim = model.Dim

// PrecisionError reports a float16 element on a device without float16
// support.
type PrecisionError = model.PrecisionError

// Common errors.
var (
	ErrNotFound = model.ErrNotFound
	ErrRead     = model.ErrRead
	ErrDetached = model.ErrDetached
)

// Open parses a model file.
func Open(path string) (*Descriptor, error) {
	return model.Open(path)
}

// Read parses a model from a stream.
func Read(r io.Reader) (*Descriptor, error) {
	return model.Read(r)
}

// FromBytes parses a model from raw bytes.
func FromBytes(data []byte) (*Descriptor, error) {
	return model.FromBytes(data)
}

// Copy deep-copies a descriptor; the source stays valid.
func Copy(d *Descriptor) (*Descriptor, error) {
	return model.Copy(d)
}

// Summarize extracts a summary without modifying the descriptor.
func Summarize(d *Descriptor) (*Summary, error) {
	return model.Summarize(d)
}

// Validate checks that a device can execute the model.
func Validate(s *Summary, d *Descriptor, supportsFloat16 bool) error {
	return model.Validate(s, d, supportsFloat16)
}
