package engine

import "github.com/fathom-ml/fathom/internal/onnx"

// ApplyTransforms runs the default graph rewrites in place: Identity nodes
// are folded away and nodes whose outputs reach no graph output are pruned.
// The rewrites preserve observable outputs exactly.
func ApplyTransforms(g *onnx.Graph) {
	foldIdentity(g)
	pruneDeadNodes(g)
}

// foldIdentity rewires consumers of an Identity node's output to read the
// node's input directly, then drops the node. Identity nodes that produce a
// declared graph output are kept.
func foldIdentity(g *onnx.Graph) {
	outputs := make(map[string]bool, len(g.Outputs))
	for _, v := range g.Outputs {
		outputs[v.Name] = true
	}

	rename := make(map[string]string)
	kept := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.OpType == "Identity" && n.Domain == "" &&
			len(n.Inputs) == 1 && len(n.Outputs) == 1 && !outputs[n.Outputs[0]] {
			rename[n.Outputs[0]] = n.Inputs[0]
			continue
		}
		kept = append(kept, n)
	}
	g.Nodes = kept

	resolve := func(name string) string {
		for {
			next, ok := rename[name]
			if !ok {
				return name
			}
			name = next
		}
	}
	for i := range g.Nodes {
		for j, in := range g.Nodes[i].Inputs {
			g.Nodes[i].Inputs[j] = resolve(in)
		}
	}
}

// pruneDeadNodes removes nodes that cannot influence any declared output.
func pruneDeadNodes(g *onnx.Graph) {
	producer := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		for _, out := range n.Outputs {
			if out != "" {
				producer[out] = i
			}
		}
	}

	live := make([]bool, len(g.Nodes))
	var mark func(name string)
	mark = func(name string) {
		i, ok := producer[name]
		if !ok || live[i] {
			return
		}
		live[i] = true
		for _, in := range g.Nodes[i].Inputs {
			if in != "" {
				mark(in)
			}
		}
	}
	for _, v := range g.Outputs {
		mark(v.Name)
	}

	kept := g.Nodes[:0]
	for i, n := range g.Nodes {
		if live[i] {
			kept = append(kept, n)
		}
	}
	g.Nodes = kept
}
