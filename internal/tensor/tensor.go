// Package tensor provides the dense float32 tensor used by the freeinfer runtime.
//
// A Tensor is a 3-axis (channel, row, col) array. Storage is one contiguous
// buffer laid out plane by plane, each plane row-major:
//
//	data[c*rows*cols + r*cols + col]
//
// Lower-rank tensors are represented with leading axes of size 1. The shape a
// tensor was requested with is kept separately as its raw shape, so a tensor
// built as New1D(8) reports RawShapes() == [8] while Shapes() == [1, 1, 8].
package tensor

import (
	"fmt"
	"math/rand"
	"strings"
)

// Tensor is an owning dense 3-D float32 array.
type Tensor struct {
	channels int
	rows     int
	cols     int

	rawShapes Shape
	data      []float32
}

// New creates a zero-filled tensor with the given channels, rows and cols.
func New(channels, rows, cols int) *Tensor {
	if channels < 0 || rows < 0 || cols < 0 {
		panic(fmt.Sprintf("tensor: negative dimension (%d, %d, %d)", channels, rows, cols))
	}
	t := &Tensor{
		channels: channels,
		rows:     rows,
		cols:     cols,
		data:     make([]float32, channels*rows*cols),
	}
	t.rawShapes = Collapse(channels, rows, cols)
	return t
}

// New1D creates a zero-filled tensor of shape (1, 1, size).
func New1D(size int) *Tensor {
	t := New(1, 1, size)
	t.rawShapes = Shape{size}
	return t
}

// New2D creates a zero-filled tensor of shape (1, rows, cols).
func New2D(rows, cols int) *Tensor {
	t := New(1, rows, cols)
	t.rawShapes = Shape{rows, cols}
	return t
}

// FromShape creates a zero-filled tensor from a 1, 2 or 3 axis shape.
func FromShape(shape Shape) *Tensor {
	switch len(shape) {
	case 1:
		return New1D(shape[0])
	case 2:
		return New2D(shape[0], shape[1])
	case 3:
		return New(shape[0], shape[1], shape[2])
	default:
		panic(fmt.Sprintf("tensor: unsupported shape rank %d (want 1..3)", len(shape)))
	}
}

// FromSlice creates a tensor of the given shape and fills it row-major with values.
func FromSlice(values []float32, shape Shape) (*Tensor, error) {
	if len(shape) < 1 || len(shape) > 3 {
		return nil, fmt.Errorf("tensor: unsupported shape rank %d (want 1..3)", len(shape))
	}
	if shape.NumElements() != len(values) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrSizeMismatch, len(values), shape)
	}
	t := FromShape(shape)
	copy(t.data, values)
	return t, nil
}

// Collapse returns the raw shape New gives a (channels, rows, cols) tensor:
// leading unit axes are dropped.
func Collapse(channels, rows, cols int) Shape {
	switch {
	case channels == 1 && rows == 1:
		return Shape{cols}
	case channels == 1:
		return Shape{rows, cols}
	default:
		return Shape{channels, rows, cols}
	}
}

// Channels returns the number of channel planes.
func (t *Tensor) Channels() int { return t.channels }

// Rows returns the number of rows in each plane.
func (t *Tensor) Rows() int { return t.rows }

// Cols returns the number of columns in each plane.
func (t *Tensor) Cols() int { return t.cols }

// Size returns the number of elements.
func (t *Tensor) Size() int { return len(t.data) }

// PlaneSize returns rows*cols.
func (t *Tensor) PlaneSize() int { return t.rows * t.cols }

// Empty reports whether the tensor holds no elements.
func (t *Tensor) Empty() bool { return t == nil || len(t.data) == 0 }

// Shapes returns the physical (channels, rows, cols) shape.
func (t *Tensor) Shapes() Shape {
	return Shape{t.channels, t.rows, t.cols}
}

// RawShapes returns the shape the tensor was created or reshaped with.
func (t *Tensor) RawShapes() Shape {
	return t.rawShapes.Clone()
}

// Data returns the backing buffer. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 { return t.data }

// Slice returns channel c as a view into the backing buffer.
func (t *Tensor) Slice(c int) []float32 {
	if c < 0 || c >= t.channels {
		panic(fmt.Sprintf("tensor: channel %d out of range [0, %d)", c, t.channels))
	}
	plane := t.rows * t.cols
	return t.data[c*plane : (c+1)*plane : (c+1)*plane]
}

func (t *Tensor) offset(c, r, w int) int {
	if c < 0 || c >= t.channels || r < 0 || r >= t.rows || w < 0 || w >= t.cols {
		panic(fmt.Sprintf("tensor: index (%d, %d, %d) out of range %v", c, r, w, t.Shapes()))
	}
	return (c*t.rows+r)*t.cols + w
}

// At returns the element at (channel, row, col).
func (t *Tensor) At(c, r, w int) float32 {
	return t.data[t.offset(c, r, w)]
}

// Set stores v at (channel, row, col).
func (t *Tensor) Set(c, r, w int, v float32) {
	t.data[t.offset(c, r, w)] = v
}

// Index returns the element at a flat row-major offset.
func (t *Tensor) Index(offset int) float32 {
	return t.data[offset]
}

// SetIndex stores v at a flat row-major offset.
func (t *Tensor) SetIndex(offset int, v float32) {
	t.data[offset] = v
}

// Fill copies values into the tensor.
//
// With rowMajor each plane is filled row by row; otherwise each plane is
// filled column by column. len(values) must equal Size().
func (t *Tensor) Fill(values []float32, rowMajor bool) {
	if len(values) != len(t.data) {
		panic(fmt.Sprintf("tensor: fill with %d values, tensor has %d elements", len(values), len(t.data)))
	}
	if rowMajor {
		copy(t.data, values)
		return
	}
	plane := t.rows * t.cols
	for c := 0; c < t.channels; c++ {
		src := values[c*plane : (c+1)*plane]
		dst := t.data[c*plane : (c+1)*plane]
		for w := 0; w < t.cols; w++ {
			for r := 0; r < t.rows; r++ {
				dst[r*t.cols+w] = src[w*t.rows+r]
			}
		}
	}
}

// FillValue sets every element to v.
func (t *Tensor) FillValue(v float32) {
	for i := range t.data {
		t.data[i] = v
	}
}

// Ones sets every element to 1.
func (t *Tensor) Ones() { t.FillValue(1) }

// Rand fills the tensor with normally distributed values.
func (t *Tensor) Rand() {
	for i := range t.data {
		t.data[i] = float32(rand.NormFloat64()) //nolint:gosec // weights for tests, not crypto
	}
}

// Values returns a copy of the elements, row-major or column-major per plane.
func (t *Tensor) Values(rowMajor bool) []float32 {
	values := make([]float32, len(t.data))
	if rowMajor {
		copy(values, t.data)
		return values
	}
	plane := t.rows * t.cols
	for c := 0; c < t.channels; c++ {
		src := t.data[c*plane : (c+1)*plane]
		dst := values[c*plane : (c+1)*plane]
		for w := 0; w < t.cols; w++ {
			for r := 0; r < t.rows; r++ {
				dst[w*t.rows+r] = src[r*t.cols+w]
			}
		}
	}
	return values
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{
		channels:  t.channels,
		rows:      t.rows,
		cols:      t.cols,
		rawShapes: t.rawShapes.Clone(),
		data:      data,
	}
}

// Transform applies fn to every element in place.
func (t *Tensor) Transform(fn func(float32) float32) {
	for i, v := range t.data {
		t.data[i] = fn(v)
	}
}

// String renders the tensor plane by plane.
func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor%v\n", t.rawShapes)
	for c := 0; c < t.channels; c++ {
		fmt.Fprintf(&sb, "channel %d:\n", c)
		plane := t.Slice(c)
		for r := 0; r < t.rows; r++ {
			fmt.Fprintf(&sb, "%v\n", plane[r*t.cols:(r+1)*t.cols])
		}
	}
	return sb.String()
}
