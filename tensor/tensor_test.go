package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeinfer/freeinfer/tensor"
)

func TestPublicAPI(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 3}, x.Shapes())

	scale := tensor.New(1, 1, 1)
	scale.FillValue(2)
	y, err := tensor.Mul(x, scale)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12}, y.Values(true))

	_, err = tensor.Add(x, tensor.New(2, 2, 3))
	require.ErrorIs(t, err, tensor.ErrIncompatibleShapes)

	require.ErrorIs(t, x.Reshape(tensor.Shape{4}, true), tensor.ErrSizeMismatch)
}
