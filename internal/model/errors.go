package model

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound = errors.New("model source not found")
	ErrRead     = errors.New("model source read failed")
	ErrDetached = errors.New("descriptor has been detached")
)

// PrecisionError reports a float16 element found in a model targeted at a
// device without float16 support. Component identifies where the element was
// found (input, cast, initializer, output) and Name the offending value.
type PrecisionError struct {
	Component string
	Name      string
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("model contains a 16-bit float %s (%q), but the device does not support 16-bit float",
		e.Component, e.Name)
}
