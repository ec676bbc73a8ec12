// Package engine compiles a parsed model graph into an executable form and
// runs it against an execution provider's compute backend.
package engine

import (
	"fmt"

	"github.com/fathom-ml/fathom/internal/onnx"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// Context is the per-run state handed to operator handlers.
type Context struct {
	Backend tensor.Backend
}

// Handler executes one operator. Inputs arrive in node order; a nil entry
// marks an optional input that was not provided. Handlers panic on invalid
// operands the way compute backends do; returned errors are for attribute
// and arity problems.
type Handler func(ctx *Context, node *onnx.Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)

// Registry maps operators to handlers, keyed by domain and op type.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// DefaultRegistry returns a registry with the built-in operator set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

func opKey(domain, opType string) string {
	return domain + ":" + opType
}

// Register binds a handler for an operator. Later registrations win.
func (r *Registry) Register(domain, opType string, h Handler) {
	r.handlers[opKey(domain, opType)] = h
}

// Lookup finds the handler for a node's operator.
func (r *Registry) Lookup(domain, opType string) (Handler, bool) {
	h, ok := r.handlers[opKey(domain, opType)]
	return h, ok
}

// Merge copies all handlers from other into r, overwriting collisions.
func (r *Registry) Merge(other *Registry) {
	for k, h := range other.handlers {
		r.handlers[k] = h
	}
}

// Len reports the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.handlers)
}

// Attribute accessors used by handlers.

func intAttr(node *onnx.Node, name string, def int64) int64 {
	for _, a := range node.Attributes {
		if a.Name == name {
			return a.I
		}
	}
	return def
}

func intsAttr(node *onnx.Node, name string) []int64 {
	for _, a := range node.Attributes {
		if a.Name == name {
			return a.Ints
		}
	}
	return nil
}

func floatAttr(node *onnx.Node, name string, def float32) float32 {
	for _, a := range node.Attributes {
		if a.Name == name {
			if a.Type == onnx.AttrFloat {
				return a.F
			}
		}
	}
	return def
}

func wantInputs(node *onnx.Node, inputs []*tensor.RawTensor, n int) error {
	if len(inputs) < n {
		return fmt.Errorf("%s (%s): expected %d inputs, got %d", node.OpType, node.Name, n, len(inputs))
	}
	for i := 0; i < n; i++ {
		if inputs[i] == nil {
			return fmt.Errorf("%s (%s): input %d is missing", node.OpType, node.Name, i)
		}
	}
	return nil
}
