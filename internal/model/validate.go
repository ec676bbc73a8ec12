package model

import "github.com/fathom-ml/fathom/internal/onnx"

// Validate checks that the device can execute the model. Devices that
// support 16-bit floats always pass. For devices that do not, the model is
// scanned for float16 usage: declared inputs first, then Cast operators that
// target float16, then initializer tensors, then declared outputs. The scan
// stops at the first offender and its name is reported in the error.
func Validate(s *Summary, d *Descriptor, supportsFloat16 bool) error {
	if supportsFloat16 {
		return nil
	}
	if d.tree == nil {
		return ErrDetached
	}

	for _, f := range s.Inputs {
		if f.IsFloat16() {
			return &PrecisionError{Component: "input", Name: f.Name()}
		}
	}

	for _, n := range d.tree.Graph.Nodes {
		if n.OpType != "Cast" || n.Domain != "" {
			continue
		}
		if castsToFloat16(n) {
			return &PrecisionError{Component: "operator", Name: n.Name}
		}
	}

	for _, t := range d.tree.Graph.Initializers {
		if isFloat16Elem(t.DataType) {
			return &PrecisionError{Component: "initializer", Name: t.Name}
		}
	}

	for _, f := range s.Outputs {
		if f.IsFloat16() {
			return &PrecisionError{Component: "output", Name: f.Name()}
		}
	}
	return nil
}

func castsToFloat16(n onnx.Node) bool {
	for _, a := range n.Attributes {
		if a.Name == "to" {
			return isFloat16Elem(int32(a.I))
		}
	}
	return false
}
