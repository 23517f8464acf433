package tensor

import "fmt"

// Reshape changes the tensor's shape in place.
//
// shape has 1, 2 or 3 axes and must describe Size() elements. With rowMajor
// the row-major element order is preserved; otherwise the per-plane
// column-major order is preserved.
func (t *Tensor) Reshape(shape Shape, rowMajor bool) error {
	if len(shape) < 1 || len(shape) > 3 {
		return fmt.Errorf("tensor: reshape to rank %d (want 1..3)", len(shape))
	}
	if shape.NumElements() != len(t.data) {
		return fmt.Errorf("%w: reshape %v (%d elements) to %v", ErrSizeMismatch, t.rawShapes, len(t.data), shape)
	}

	var values []float32
	if !rowMajor {
		values = t.Values(false)
	}

	switch len(shape) {
	case 1:
		t.channels, t.rows, t.cols = 1, 1, shape[0]
	case 2:
		t.channels, t.rows, t.cols = 1, shape[0], shape[1]
	case 3:
		t.channels, t.rows, t.cols = shape[0], shape[1], shape[2]
	}
	t.rawShapes = shape.Clone()

	if !rowMajor {
		t.Fill(values, false)
	}
	return nil
}

// Flatten reshapes the tensor to one axis of Size() elements.
func (t *Tensor) Flatten(rowMajor bool) error {
	return t.Reshape(Shape{len(t.data)}, rowMajor)
}

// Padding grows every plane by pads = {up, bottom, left, right}, filling the
// new border with value.
func (t *Tensor) Padding(pads [4]int, value float32) {
	up, bottom, left, right := pads[0], pads[1], pads[2], pads[3]
	if up < 0 || bottom < 0 || left < 0 || right < 0 {
		panic(fmt.Sprintf("tensor: negative padding %v", pads))
	}
	rows := t.rows + up + bottom
	cols := t.cols + left + right
	data := make([]float32, t.channels*rows*cols)
	for i := range data {
		data[i] = value
	}
	for c := 0; c < t.channels; c++ {
		for r := 0; r < t.rows; r++ {
			src := t.data[(c*t.rows+r)*t.cols : (c*t.rows+r+1)*t.cols]
			dst := data[(c*rows+r+up)*cols+left:]
			copy(dst[:t.cols], src)
		}
	}
	t.rows, t.cols = rows, cols
	t.data = data
	t.rawShapes = Collapse(t.channels, rows, cols)
}
