package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReshape_RoundTrip(t *testing.T) {
	shapes := []Shape{
		{4, 3, 2},
		{24},
		{6, 4},
		{1, 24},
		{2, 12},
	}

	for _, rowMajor := range []bool{true, false} {
		for _, s := range shapes {
			x := New(2, 3, 4)
			x.Fill(seq(24), true)
			before := x.Values(true)

			require.NoError(t, x.Reshape(s, rowMajor))
			assert.Equal(t, s, x.RawShapes())
			assert.Equal(t, 24, x.Size())

			require.NoError(t, x.Reshape(Shape{2, 3, 4}, rowMajor))
			assert.Equal(t, before, x.Values(true), "shape %v rowMajor=%v", s, rowMajor)
		}
	}
}

func TestReshape_RowMajorKeepsOrder(t *testing.T) {
	x := New(2, 3, 4)
	x.Fill(seq(24), true)

	require.NoError(t, x.Reshape(Shape{4, 3, 2}, true))
	assert.Equal(t, seq(24), x.Values(true))
	assert.Equal(t, float32(3), x.At(0, 1, 0))
}

func TestReshape_SizeMismatch(t *testing.T) {
	x := New(2, 3, 4)
	err := x.Reshape(Shape{5, 5}, true)
	require.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, Shape{2, 3, 4}, x.Shapes(), "failed reshape must not modify the tensor")

	require.Error(t, x.Reshape(Shape{1, 2, 3, 4}, true))
}

func TestFlatten(t *testing.T) {
	x := New(2, 2, 2)
	x.Fill(seq(8), true)
	require.NoError(t, x.Flatten(true))
	assert.Equal(t, Shape{8}, x.RawShapes())
	assert.Equal(t, Shape{1, 1, 8}, x.Shapes())
	assert.Equal(t, seq(8), x.Values(true))
}

func TestPadding(t *testing.T) {
	x := New(2, 2, 2)
	x.Fill(seq(8), true)
	x.Padding([4]int{1, 1, 1, 2}, -1)

	assert.Equal(t, Shape{2, 4, 5}, x.Shapes())
	assert.Equal(t, float32(-1), x.At(0, 0, 0))
	assert.Equal(t, float32(1), x.At(0, 1, 1))
	assert.Equal(t, float32(4), x.At(0, 2, 2))
	assert.Equal(t, float32(-1), x.At(0, 2, 3))
	assert.Equal(t, float32(5), x.At(1, 1, 1))
	assert.Equal(t, float32(-1), x.At(1, 3, 4))
}
