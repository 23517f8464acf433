// Copyright 2026 freeinfer authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the freeinfer runtime.
//
// # Overview
//
// A Tensor is a dense float32 array addressed as (channel, row, col). Lower
// rank tensors keep leading axes of size 1 and remember the shape they were
// created with:
//
//	x := tensor.New1D(8)
//	x.Shapes()    // [1 1 8]
//	x.RawShapes() // [8]
//
// # Layout
//
// Storage is one buffer, plane by plane, each plane row-major. Slice(c)
// returns channel c as a view, so writes through it are visible in the
// tensor.
//
// # Elementwise Operations
//
// Add and Mul broadcast a (C, 1, 1) operand across the rows and cols of a
// (C, R, W) operand. Any other shape mismatch fails with
// ErrIncompatibleShapes.
package tensor
