package model

// Summary is the read-only digest of a model: identity fields, free-form
// metadata and the input/output feature descriptors. Missing string fields
// come back empty and a missing version comes back zero.
type Summary struct {
	Author      string
	Name        string
	Domain      string
	Description string
	Version     int64
	Metadata    map[string]string
	Inputs      []Feature
	Outputs     []Feature
}

// Summarize extracts a summary from a descriptor. The descriptor is only
// read, never modified.
//
// Graph inputs that are actually initializers (baked-in weights declared in
// the input list) are not model inputs and are excluded. Inputs and outputs
// with no name or no type are skipped.
func Summarize(d *Descriptor) (*Summary, error) {
	if d.tree == nil {
		return nil, ErrDetached
	}
	tree := d.tree
	g := tree.Graph

	s := &Summary{
		Author:      tree.ProducerName,
		Name:        g.Name,
		Domain:      tree.Domain,
		Description: tree.DocString,
		Version:     tree.ModelVersion,
		Metadata:    make(map[string]string, len(tree.Metadata)),
	}
	for _, kv := range tree.Metadata {
		s.Metadata[kv.Key] = kv.Value
	}

	initializers := make(map[string]struct{}, len(g.Initializers))
	for _, t := range g.Initializers {
		initializers[t.Name] = struct{}{}
	}

	for _, v := range g.Inputs {
		if _, isInit := initializers[v.Name]; isInit {
			continue
		}
		if f := buildFeature(v, s.Metadata); f != nil {
			s.Inputs = append(s.Inputs, f)
		}
	}
	for _, v := range g.Outputs {
		if f := buildFeature(v, s.Metadata); f != nil {
			s.Outputs = append(s.Outputs, f)
		}
	}
	return s, nil
}

// Input returns the named input feature, or nil.
func (s *Summary) Input(name string) Feature {
	return findFeature(s.Inputs, name)
}

// Output returns the named output feature, or nil.
func (s *Summary) Output(name string) Feature {
	return findFeature(s.Outputs, name)
}

func findFeature(fs []Feature, name string) Feature {
	for _, f := range fs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}
