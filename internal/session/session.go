// Package session owns the inference lifecycle: building an execution
// target, loading a model into an executable graph, binding values and
// running them.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fathom-ml/fathom/internal/backend"
	"github.com/fathom-ml/fathom/internal/engine"
	"github.com/fathom-ml/fathom/internal/model"
	"github.com/fathom-ml/fathom/internal/onnx"
	"github.com/fathom-ml/fathom/internal/tensor"
)

// Session drives one loaded model against one execution provider. All
// methods are safe for concurrent use; Run calls serialize.
type Session struct {
	env      *Env
	provider backend.Provider
	kind     backend.Kind

	mu sync.Mutex

	tree     *onnx.Model
	graph    *engine.Graph
	registry *engine.Registry

	applyTransforms bool
	ran             bool
	invalid         bool
	closed          bool

	profile *profileRun
}

type profileRun struct {
	id      string
	started time.Time
}

// New builds a session over the given execution target.
func New(env *Env, builder Builder) (*Session, error) {
	cfg, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building execution target: %w", err)
	}
	env.Logger().Info("session created", "target", builder.Kind().String())
	return &Session{
		env:      env,
		provider: cfg.Provider,
		kind:     builder.Kind(),
		registry: engine.DefaultRegistry(),
	}, nil
}

// Kind reports the session's provider family.
func (s *Session) Kind() backend.Kind {
	return s.kind
}

// Provider exposes the session's execution provider.
func (s *Session) Provider() backend.Provider {
	return s.provider
}

// LoadModel takes ownership of the descriptor's model tree. The descriptor
// is detached and unusable afterwards. A session loads exactly one model.
func (s *Session) LoadModel(d *model.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return usageErr("LoadModel", "session is closed")
	}
	if s.tree != nil {
		return usageErr("LoadModel", "a model is already loaded")
	}

	tree, err := d.Detach()
	if err != nil {
		return usageErr("LoadModel", "descriptor is not usable: %v", err)
	}
	s.tree = tree
	s.env.Logger().Info("model loaded", "graph", tree.Graph.Name, "nodes", len(tree.Graph.Nodes))
	return nil
}

// RegisterGraphTransformers enables or disables the default graph rewrites
// for this session. Allowed any number of times before the first Run; a
// call after the graph was already compiled discards it, and the next Run
// recompiles.
func (s *Session) RegisterGraphTransformers(enableDefault bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ran {
		return usageErr("RegisterGraphTransformers", "session has already run")
	}
	s.applyTransforms = enableDefault
	s.graph = nil
	return nil
}

// RegisterCustomRegistry merges caller-supplied operator handlers into the
// session's registry. A nil registry is accepted and does nothing. Allowed
// any number of times before the first Run; a call after the graph was
// already compiled discards it, and the next Run recompiles.
func (s *Session) RegisterCustomRegistry(reg *engine.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ran {
		return usageErr("RegisterCustomRegistry", "session has already run")
	}
	if reg == nil {
		return nil
	}
	s.registry.Merge(reg)
	s.graph = nil
	return nil
}

// NewBinding creates a binding for this session's model. The model must be
// loaded first.
func (s *Session) NewBinding() (*Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree == nil {
		return nil, usageErr("NewBinding", "no model loaded")
	}
	if err := s.compileLocked(); err != nil {
		return nil, err
	}
	return newBinding(s), nil
}

// compileLocked compiles the loaded tree on first use. Callers hold s.mu.
func (s *Session) compileLocked() error {
	if s.graph != nil {
		return nil
	}
	if s.applyTransforms {
		engine.ApplyTransforms(s.tree.Graph)
	}
	graph, err := engine.Compile(s.tree.Graph, s.registry)
	if err != nil {
		return &ExecutionError{Err: fmt.Errorf("compiling graph: %w", err)}
	}
	s.graph = graph
	return nil
}

// Run executes the graph synchronously over the binding's inputs and fills
// its outputs. The session stays usable after ordinary failures; device
// loss marks it permanently invalid.
func (s *Session) Run(opts *RunOptions, b *Binding) error {
	if opts == nil {
		opts = &RunOptions{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return usageErr("Run", "session is closed")
	}
	if s.invalid {
		return usageErr("Run", "session is invalid after device loss")
	}
	if s.tree == nil {
		return usageErr("Run", "no model loaded")
	}
	if b == nil || b.session != s {
		return usageErr("Run", "binding does not belong to this session")
	}
	if err := s.compileLocked(); err != nil {
		return err
	}
	s.ran = true

	start := time.Now()
	results, err := s.execute(b)
	elapsed := time.Since(start)

	logger := s.env.Logger()
	if s.profile != nil {
		logger = logger.With("profile_id", s.profile.id)
	}
	if err != nil {
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			execErr = &ExecutionError{Err: err}
		}
		if execErr.DeviceLost || opts.TerminateOnError {
			s.invalid = true
		}
		logger.Error("run failed", "tag", opts.Tag, "elapsed", elapsed, "error", execErr.Err, "device_lost", execErr.DeviceLost)
		return execErr
	}

	if err := b.setResults(results); err != nil {
		logger.Error("run failed", "tag", opts.Tag, "elapsed", elapsed, "error", err)
		return err
	}
	logger.Info("run complete", "tag", opts.Tag, "elapsed", elapsed)
	return nil
}

// execute runs the compiled graph, converting handler panics into
// execution errors. Callers hold s.mu.
func (s *Session) execute(b *Binding) (results map[string]*tensor.RawTensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			if e, ok := r.(error); ok && errors.Is(e, backend.ErrDeviceLost) {
				err = &ExecutionError{Err: e, DeviceLost: true}
				return
			}
			err = &ExecutionError{Err: fmt.Errorf("operator panic: %v", r)}
		}
	}()

	ctx := &engine.Context{Backend: s.provider.Compute()}
	out, execErr := s.graph.Execute(ctx, b.inputs)
	if execErr != nil {
		if errors.Is(execErr, backend.ErrDeviceLost) {
			return nil, &ExecutionError{Err: execErr, DeviceLost: true}
		}
		return nil, &ExecutionError{Err: execErr}
	}
	return out, nil
}

// StartProfiling begins a profiling run. Runs started while profiling is
// active are tagged with the returned id in the log stream.
func (s *Session) StartProfiling() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile != nil {
		return "", usageErr("StartProfiling", "profiling already active")
	}
	s.profile = &profileRun{id: uuid.NewString(), started: time.Now()}
	s.env.Logger().Info("profiling started", "profile_id", s.profile.id, "dir", s.env.ProfileDir())
	return s.profile.id, nil
}

// EndProfiling closes the active profiling run. Calls must pair with
// StartProfiling.
func (s *Session) EndProfiling() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return usageErr("EndProfiling", "profiling is not active")
	}
	s.env.Logger().Info("profiling ended",
		"profile_id", s.profile.id, "elapsed", time.Since(s.profile.started))
	s.profile = nil
	return nil
}

// FlushContext submits pending device work. A no-op success on providers
// without a maintenance surface; provider-internal failures are logged,
// never returned.
func (s *Session) FlushContext() error {
	return s.maintain("FlushContext", func(m backend.Maintainer) error { return m.FlushContext() })
}

// TrimUploadHeap releases pooled staging memory. A no-op success on
// providers without a maintenance surface; provider-internal failures are
// logged, never returned.
func (s *Session) TrimUploadHeap() error {
	return s.maintain("TrimUploadHeap", func(m backend.Maintainer) error { return m.TrimUploadHeap() })
}

// ReleaseCompletedReferences drops references held for completed device
// work. A no-op success on providers without a maintenance surface;
// provider-internal failures are logged, never returned.
func (s *Session) ReleaseCompletedReferences() error {
	return s.maintain("ReleaseCompletedReferences", func(m backend.Maintainer) error { return m.ReleaseCompletedReferences() })
}

func (s *Session) maintain(op string, f func(backend.Maintainer) error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return usageErr(op, "session is closed")
	}
	if m, ok := s.provider.(backend.Maintainer); ok {
		if err := f(m); err != nil {
			s.env.Logger().Warn("device maintenance failed", "op", op, "error", err)
		}
	}
	return nil
}

// CopyInputAcrossDevices is not implemented by this runtime; inputs are
// staged by the provider during Run instead.
func (s *Session) CopyInputAcrossDevices(name string) error {
	return fmt.Errorf("CopyInputAcrossDevices(%s): %w", name, ErrUnsupported)
}

// Close releases the session's provider. Further calls are usage errors;
// Close itself is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.provider.Release()
	s.env.Logger().Info("session closed")
	return nil
}
