package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes applies NumPy-style broadcasting rules to two shapes.
// Dimensions are compared right to left; they are compatible when equal or
// when one of them is 1, and missing leading dimensions count as 1.
// Returns the broadcast shape and whether any expansion is required.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	out := make(Shape, n)
	needs := len(a) != len(b)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if i < len(a) {
			da = a[len(a)-1-i]
		}
		if i < len(b) {
			db = b[len(b)-1-i]
		}

		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
			needs = true
		case db == 1:
			out[n-1-i] = da
			needs = true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v are not broadcastable", a, b)
		}
	}
	return out, needs, nil
}
