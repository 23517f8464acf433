// Copyright 2026 freeinfer authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/freeinfer/freeinfer/internal/tensor"
)

// Tensor is a dense 3-D float32 array.
type Tensor = tensor.Tensor

// Shape is a list of axis sizes.
type Shape = tensor.Shape

// Errors returned by shape-changing and elementwise operations.
var (
	ErrSizeMismatch       = tensor.ErrSizeMismatch
	ErrIncompatibleShapes = tensor.ErrIncompatibleShapes
)

// New creates a zero-filled (channels, rows, cols) tensor.
func New(channels, rows, cols int) *Tensor {
	return tensor.New(channels, rows, cols)
}

// New1D creates a zero-filled tensor with one axis.
func New1D(size int) *Tensor {
	return tensor.New1D(size)
}

// New2D creates a zero-filled tensor with two axes.
func New2D(rows, cols int) *Tensor {
	return tensor.New2D(rows, cols)
}

// FromShape creates a zero-filled tensor from a 1, 2 or 3 axis shape.
func FromShape(shape Shape) *Tensor {
	return tensor.FromShape(shape)
}

// FromSlice creates a tensor of the given shape filled row-major with values.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice(values []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(values, shape)
}

// Add returns a + b with per-channel broadcasting.
func Add(a, b *Tensor) (*Tensor, error) {
	return tensor.Add(a, b)
}

// Mul returns a * b with per-channel broadcasting.
func Mul(a, b *Tensor) (*Tensor, error) {
	return tensor.Mul(a, b)
}

// Sin returns the elementwise sine of t.
func Sin(t *Tensor) *Tensor {
	return tensor.Sin(t)
}

// Broadcast expands a and b to a common shape.
func Broadcast(a, b *Tensor) (*Tensor, *Tensor, error) {
	return tensor.Broadcast(a, b)
}
