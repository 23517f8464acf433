package tensor

import (
	"fmt"
	"math"
)

// Broadcast returns a and b expanded to a common shape.
//
// Equal shapes are returned as-is. Otherwise the channel counts must match
// and one side must hold a single element per channel (shape (C, 1, 1)); that
// side is expanded into a new tensor holding the per-channel constant across
// the other side's rows and cols.
func Broadcast(a, b *Tensor) (*Tensor, *Tensor, error) {
	if a.Empty() || b.Empty() {
		return nil, nil, fmt.Errorf("broadcast: empty operand")
	}
	if a.Shapes().Equal(b.Shapes()) {
		return a, b, nil
	}
	if a.channels != b.channels {
		return nil, nil, fmt.Errorf("%w: %v vs %v (channel mismatch)", ErrIncompatibleShapes, a.Shapes(), b.Shapes())
	}
	switch {
	case b.rows == 1 && b.cols == 1:
		return a, expand(b, a.rows, a.cols), nil
	case a.rows == 1 && a.cols == 1:
		return expand(a, b.rows, b.cols), b, nil
	default:
		return nil, nil, fmt.Errorf("%w: %v vs %v", ErrIncompatibleShapes, a.Shapes(), b.Shapes())
	}
}

// expand builds a (C, rows, cols) tensor where every plane is filled with the
// single value of the matching channel of t.
func expand(t *Tensor, rows, cols int) *Tensor {
	out := New(t.channels, rows, cols)
	for c := 0; c < t.channels; c++ {
		v := t.data[c]
		plane := out.Slice(c)
		for i := range plane {
			plane[i] = v
		}
	}
	return out
}

// Add returns the elementwise sum of a and b with broadcasting.
func Add(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, "add", func(x, y float32) float32 { return x + y })
}

// Mul returns the elementwise product of a and b with broadcasting.
func Mul(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, "mul", func(x, y float32) float32 { return x * y })
}

func binary(a, b *Tensor, name string, fn func(x, y float32) float32) (*Tensor, error) {
	lhs, rhs, err := Broadcast(a, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	out := lhs.sameShape()
	for i := range out.data {
		out.data[i] = fn(lhs.data[i], rhs.data[i])
	}
	return out, nil
}

// Sin returns a new tensor holding the elementwise sine of t.
func Sin(t *Tensor) *Tensor {
	out := t.sameShape()
	for i, v := range t.data {
		out.data[i] = float32(math.Sin(float64(v)))
	}
	return out
}

// sameShape allocates a zero tensor with t's dims and raw shape.
func (t *Tensor) sameShape() *Tensor {
	return &Tensor{
		channels:  t.channels,
		rows:      t.rows,
		cols:      t.cols,
		rawShapes: t.rawShapes.Clone(),
		data:      make([]float32, len(t.data)),
	}
}
