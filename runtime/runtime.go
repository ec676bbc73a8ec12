// Copyright 2026 Fathom ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package runtime provides the public API for executing models: sessions,
// bindings and execution-target selection.
//
//	env := runtime.NewEnv(runtime.WithLogger(logger))
//	s, err := runtime.NewSession(env, runtime.SelectBuilder(nil, nil))
//	if err != nil { ... }
//	defer s.Close()
//
//	if err := s.LoadModel(descriptor); err != nil { ... }
//	b, err := s.NewBinding()
//	_ = b.BindInput("X", x)
//	_ = b.BindOutput("Y", nil)
//	if err := s.Run(nil, b); err != nil { ... }
//	y := b.Output("Y")
package runtime

import (
	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/fathom-ml/fathom/internal/backend"
	"github.com/fathom-ml/fathom/internal/engine"
	"github.com/fathom-ml/fathom/internal/session"
)

// Session drives one loaded model against one execution provider.
type Session = session.Session

// Binding carries named input and output values for a session.
type Binding = session.Binding

// Env carries process-wide runtime state shared by sessions.
type Env = session.Env

// EnvOption configures an Env.
type EnvOption = session.EnvOption

// RunOptions tunes a single Run call.
type RunOptions = session.RunOptions

// Builder constructs the execution target for a session.
type Builder = session.Builder

// Builder implementations.
type (
	GenericBuilder     = session.GenericBuilder
	AcceleratedBuilder = session.AcceleratedBuilder
)

// Kind identifies a provider family.
type Kind = backend.Kind

// Provider families.
const (
	KindGeneric     Kind = backend.KindGeneric
	KindAccelerated Kind = backend.KindAccelerated
)

// Registry maps operators to custom handlers.
type Registry = engine.Registry

// Error types.
type (
	UsageError     = session.UsageError
	ExecutionError = session.ExecutionError
)

// ErrUnsupported marks operations this runtime does not implement.
var ErrUnsupported = session.ErrUnsupported

// NewEnv creates an Env. Without options it logs nowhere.
func NewEnv(opts ...EnvOption) *Env {
	return session.NewEnv(opts...)
}

// WithLogger sets the environment's structured logger.
var WithLogger = session.WithLogger

// WithProfileDir sets where profiling runs write their traces.
var WithProfileDir = session.WithProfileDir

// NewSession builds a session over the given execution target.
func NewSession(env *Env, builder Builder) (*Session, error) {
	return session.New(env, builder)
}

// SelectBuilder picks the execution target for a device handle: nil selects
// the generic pure-Go target, anything else the accelerated one.
func SelectBuilder(device *wgpu.Device, queue *wgpu.Queue) Builder {
	return session.SelectBuilder(device, queue)
}

// NewRegistry creates an empty custom operator registry for
// Session.RegisterCustomRegistry.
func NewRegistry() *Registry {
	return engine.NewRegistry()
}
