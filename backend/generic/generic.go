// Copyright 2026 Fathom ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package generic exposes the pure-Go execution provider.
package generic

import (
	"github.com/fathom-ml/fathom/internal/backend/generic"
)

// Provider is the pure-Go execution provider.
type Provider = generic.Provider

// Compute is the host tensor compute backend.
type Compute = generic.Compute

// New creates a generic provider.
func New() *Provider {
	return generic.New()
}

// NewCompute creates the host compute backend on its own.
func NewCompute() *Compute {
	return generic.NewCompute()
}
