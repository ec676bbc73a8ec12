// Copyright 2026 Fathom ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu exposes the accelerated execution provider.
package webgpu

import (
	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/fathom-ml/fathom/internal/backend/webgpu"
)

// Provider is the accelerated execution provider.
type Provider = webgpu.Provider

// Backend is the GPU tensor compute backend.
type Backend = webgpu.Backend

// MemoryStats reports device-buffer accounting.
type MemoryStats = webgpu.MemoryStats

// New creates a provider over caller-owned device handles.
func New(device *wgpu.Device, queue *wgpu.Queue) *Provider {
	return webgpu.New(device, queue)
}

// Acquire builds a provider that requests and owns its own device.
func Acquire() (*Provider, error) {
	return webgpu.Acquire()
}
