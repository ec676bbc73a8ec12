package engine

import (
	"fmt"

	"github.com/fathom-ml/fathom/internal/onnx"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// Graph is one compiled model: nodes in execution order, initializers
// materialized as tensors, and the declared input/output names.
type Graph struct {
	nodes        []onnx.Node
	initializers map[string]*tensor.RawTensor
	inputNames   []string
	outputNames  []string
	registry     *Registry
}

// Compile prepares a parsed graph for execution: nodes are ordered
// topologically, every operator is resolved against the registry, and
// initializer tensors are decoded.
func Compile(g *onnx.Graph, registry *Registry) (*Graph, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}

	inits := make(map[string]*tensor.RawTensor, len(g.Initializers))
	for i := range g.Initializers {
		t, err := tensorFromProto(&g.Initializers[i])
		if err != nil {
			return nil, fmt.Errorf("initializer %q: %w", g.Initializers[i].Name, err)
		}
		inits[g.Initializers[i].Name] = t
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, ok := registry.Lookup(n.Domain, n.OpType); !ok {
			return nil, fmt.Errorf("no handler for operator %s%s%s (node %q)",
				n.Domain, domainSep(n.Domain), n.OpType, n.Name)
		}
	}

	ordered, err := topoSort(g.Nodes, inits, g.Inputs)
	if err != nil {
		return nil, err
	}

	compiled := &Graph{
		nodes:        ordered,
		initializers: inits,
		registry:     registry,
	}
	for _, v := range g.Inputs {
		if _, isInit := inits[v.Name]; isInit {
			continue
		}
		compiled.inputNames = append(compiled.inputNames, v.Name)
	}
	for _, v := range g.Outputs {
		compiled.outputNames = append(compiled.outputNames, v.Name)
	}
	return compiled, nil
}

func domainSep(domain string) string {
	if domain == "" {
		return ""
	}
	return "."
}

// InputNames returns the bindable input names in declaration order.
func (g *Graph) InputNames() []string {
	return g.inputNames
}

// OutputNames returns the output names in declaration order.
func (g *Graph) OutputNames() []string {
	return g.outputNames
}

// topoSort orders nodes so every node runs after the producers of its
// inputs. Cycles and references to undefined values are errors.
func topoSort(nodes []onnx.Node, inits map[string]*tensor.RawTensor, declared []onnx.ValueInfo) ([]onnx.Node, error) {
	producer := make(map[string]int, len(nodes))
	for i, n := range nodes {
		for _, out := range n.Outputs {
			if out != "" {
				producer[out] = i
			}
		}
	}

	available := make(map[string]bool, len(inits)+len(declared))
	for name := range inits {
		available[name] = true
	}
	for _, v := range declared {
		available[v.Name] = true
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, len(nodes))
	ordered := make([]onnx.Node, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("graph contains a cycle through node %q", nodes[i].Name)
		}
		state[i] = visiting
		for _, in := range nodes[i].Inputs {
			if in == "" || available[in] {
				continue
			}
			p, ok := producer[in]
			if !ok {
				return fmt.Errorf("node %q reads undefined value %q", nodes[i].Name, in)
			}
			if err := visit(p); err != nil {
				return err
			}
		}
		state[i] = done
		ordered = append(ordered, nodes[i])
		return nil
	}

	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Execute runs the graph over feeds and returns the declared outputs.
// Handler panics propagate to the caller.
func (g *Graph) Execute(ctx *Context, feeds map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	values := make(map[string]*tensor.RawTensor, len(g.initializers)+len(feeds))
	for name, t := range g.initializers {
		values[name] = t
	}
	for _, name := range g.inputNames {
		t, ok := feeds[name]
		if !ok {
			return nil, fmt.Errorf("input %q is not bound", name)
		}
		values[name] = t
	}

	for i := range g.nodes {
		n := &g.nodes[i]
		handler, _ := g.registry.Lookup(n.Domain, n.OpType)

		inputs := make([]*tensor.RawTensor, len(n.Inputs))
		for j, name := range n.Inputs {
			if name == "" {
				continue
			}
			inputs[j] = values[name]
		}

		outputs, err := handler(ctx, n, inputs)
		if err != nil {
			return nil, err
		}
		if len(outputs) < len(n.Outputs) {
			return nil, fmt.Errorf("%s (%s): handler produced %d outputs, node declares %d",
				n.OpType, n.Name, len(outputs), len(n.Outputs))
		}
		for j, name := range n.Outputs {
			if name != "" {
				values[name] = outputs[j]
			}
		}
	}

	results := make(map[string]*tensor.RawTensor, len(g.outputNames))
	for _, name := range g.outputNames {
		t, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("output %q was never produced", name)
		}
		results[name] = t
	}
	return results, nil
}

// tensorFromProto decodes an initializer into a host tensor.
func tensorFromProto(t *onnx.Tensor) (*tensor.RawTensor, error) {
	dtype, err := dtypeFromElem(t.DataType)
	if err != nil {
		return nil, err
	}

	shape := make(tensor.Shape, len(t.Dims))
	for i, d := range t.Dims {
		shape[i] = int(d)
	}
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}

	if len(t.RawData) > 0 {
		return tensor.FromBytes(t.RawData, shape, dtype)
	}

	out, err := tensor.NewRaw(shape, dtype, tensor.Host)
	if err != nil {
		return nil, err
	}
	switch {
	case len(t.FloatData) > 0 && dtype == tensor.Float32:
		copy(out.AsFloat32(), t.FloatData)
	case len(t.Int64Data) > 0 && dtype == tensor.Int64:
		copy(out.AsInt64(), t.Int64Data)
	case len(t.Int32Data) > 0 && dtype == tensor.Int32:
		copy(out.AsInt32(), t.Int32Data)
	}
	return out, nil
}
