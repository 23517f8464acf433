package tensor

import "errors"

// Common errors.
var (
	ErrSizeMismatch       = errors.New("tensor: element count mismatch")
	ErrIncompatibleShapes = errors.New("tensor: shapes not compatible")
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
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
