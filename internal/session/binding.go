package session

import (
	"github.com/fathom-ml/fathom/internal/tensor"
)

// Binding carries the named input and output values for one session. Bind
// calls may overwrite earlier bindings for the same name; Run reads inputs
// and fills outputs.
type Binding struct {
	session *Session

	inputs map[string]*tensor.RawTensor

	// bound holds caller-supplied output tensors; a nil value requests an
	// engine-allocated output. results holds what Run produced.
	bound       map[string]*tensor.RawTensor
	results     map[string]*tensor.RawTensor
	outputOrder []string
}

func newBinding(s *Session) *Binding {
	return &Binding{
		session:     s,
		inputs:      make(map[string]*tensor.RawTensor),
		bound:       make(map[string]*tensor.RawTensor),
		outputOrder: s.graph.OutputNames(),
	}
}

// BindInput binds a tensor to a model input. Binding the same name again
// replaces the previous value.
func (b *Binding) BindInput(name string, t *tensor.RawTensor) error {
	if t == nil {
		return usageErr("BindInput", "input %q: tensor must not be nil", name)
	}
	if !contains(b.session.graph.InputNames(), name) {
		return usageErr("BindInput", "model has no input %q", name)
	}
	b.inputs[name] = t
	return nil
}

// BindOutput binds a destination for a model output. A nil tensor requests
// an engine-allocated output, available from Output after Run.
func (b *Binding) BindOutput(name string, t *tensor.RawTensor) error {
	if !contains(b.outputOrder, name) {
		return usageErr("BindOutput", "model has no output %q", name)
	}
	b.bound[name] = t
	return nil
}

// setResults distributes run results: caller-supplied output tensors are
// filled in place, nil-bound outputs keep the engine-allocated tensor.
// Every bound output is validated before the first copy so a mismatch
// never leaves caller storage partially updated.
func (b *Binding) setResults(results map[string]*tensor.RawTensor) error {
	for name, dst := range b.bound {
		result, ok := results[name]
		if !ok {
			return &ExecutionError{Err: usageErr("Run", "output %q was not produced", name)}
		}
		if dst == nil {
			continue
		}
		if dst.DType() != result.DType() {
			return usageErr("Run", "output %q: bound tensor is %s, model produced %s",
				name, dst.DType(), result.DType())
		}
		if !dst.Shape().Equal(result.Shape()) {
			return usageErr("Run", "output %q: bound tensor has shape %v, model produced %v",
				name, dst.Shape(), result.Shape())
		}
	}

	if b.results == nil {
		b.results = make(map[string]*tensor.RawTensor, len(b.bound))
	}
	for name, dst := range b.bound {
		result := results[name]
		if dst == nil {
			b.results[name] = result
			continue
		}
		copy(dst.Data(), result.Data())
		b.results[name] = dst
	}
	return nil
}

// OutputNames returns the bound output names in the model's declared
// output order.
func (b *Binding) OutputNames() []string {
	names := make([]string, 0, len(b.bound))
	for _, name := range b.outputOrder {
		if _, ok := b.bound[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Outputs returns the bound outputs' result tensors in declared order.
// Entries are nil before Run.
func (b *Binding) Outputs() []*tensor.RawTensor {
	names := b.OutputNames()
	out := make([]*tensor.RawTensor, len(names))
	for i, name := range names {
		out[i] = b.results[name]
	}
	return out
}

// Output returns the result tensor for one bound output, or nil before Run.
func (b *Binding) Output(name string) *tensor.RawTensor {
	return b.results[name]
}

// Clear removes all input and output bindings and any results.
func (b *Binding) Clear() {
	b.inputs = make(map[string]*tensor.RawTensor)
	b.bound = make(map[string]*tensor.RawTensor)
	b.results = nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
