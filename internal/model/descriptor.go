// Package model owns the application-facing model representation: the
// single-owner Descriptor around a parsed model tree, the derived Summary
// with its feature descriptors, and the device compatibility gate.
package model

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fathom-ml/fathom/internal/onnx"
)

// Descriptor wraps a parsed model tree with single-owner semantics.
// Detach transfers the tree out (to a session) and invalidates the
// descriptor; Copy produces an independent deep copy.
type Descriptor struct {
	tree *onnx.Model
}

// Open parses a model file.
// Returns ErrNotFound if the path does not exist, ErrRead on read failure
// and *onnx.ParseError on malformed bytes.
func Open(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // model path is caller-provided by design
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	return FromBytes(data)
}

// Read parses a model from a stream.
func Read(r io.Reader) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return FromBytes(data)
}

// FromBytes parses a model from raw bytes.
func FromBytes(data []byte) (*Descriptor, error) {
	tree, err := onnx.Parse(data)
	if err != nil {
		return nil, err
	}
	return FromProto(tree)
}

// FromProto wraps an already-decoded model tree. The descriptor takes
// ownership of the tree.
func FromProto(tree *onnx.Model) (*Descriptor, error) {
	if tree == nil || tree.Graph == nil {
		return nil, &onnx.ParseError{Err: errors.New("model has no graph")}
	}
	return &Descriptor{tree: tree}, nil
}

// Copy deep-copies an existing descriptor. The source stays valid.
func Copy(d *Descriptor) (*Descriptor, error) {
	if d.tree == nil {
		return nil, ErrDetached
	}
	return &Descriptor{tree: d.tree.Clone()}, nil
}

// Detach transfers the model tree out and invalidates the descriptor.
// Any further use of the descriptor fails with ErrDetached.
func (d *Descriptor) Detach() (*onnx.Model, error) {
	if d.tree == nil {
		return nil, ErrDetached
	}
	tree := d.tree
	d.tree = nil
	return tree, nil
}

// Valid reports whether the descriptor still owns its tree.
func (d *Descriptor) Valid() bool {
	return d.tree != nil
}

// Graph returns the computation graph for read-only inspection.
func (d *Descriptor) Graph() *onnx.Graph {
	if d.tree == nil {
		return nil
	}
	return d.tree.Graph
}

// Nodes returns the graph's operation nodes.
func (d *Descriptor) Nodes() []onnx.Node {
	if g := d.Graph(); g != nil {
		return g.Nodes
	}
	return nil
}

// Initializers returns the graph's constant tensors.
func (d *Descriptor) Initializers() []onnx.Tensor {
	if g := d.Graph(); g != nil {
		return g.Initializers
	}
	return nil
}

// Inputs returns the graph's declared inputs, initializers included.
func (d *Descriptor) Inputs() []onnx.ValueInfo {
	if g := d.Graph(); g != nil {
		return g.Inputs
	}
	return nil
}

// Outputs returns the graph's declared outputs.
func (d *Descriptor) Outputs() []onnx.ValueInfo {
	if g := d.Graph(); g != nil {
		return g.Outputs
	}
	return nil
}

// Metadata returns the model's metadata entries.
func (d *Descriptor) Metadata() []onnx.MetadataEntry {
	if d.tree == nil {
		return nil
	}
	return d.tree.Metadata
}
