package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeinfer/freeinfer/layer"
	"github.com/freeinfer/freeinfer/runtime"
)

func TestNew_DefaultState(t *testing.T) {
	g := runtime.New("model.param", "model.bin")
	assert.Equal(t, runtime.NeedInit, g.State())
	require.ErrorIs(t, runtime.New("", "").Init(), runtime.ErrEmptyPath)
}

func TestDefaultOptions(t *testing.T) {
	opts := runtime.DefaultOptions()
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Loader)
	assert.Same(t, layer.Default(), opts.Registry)
	assert.False(t, opts.Parallel.Enabled)
	assert.Contains(t, layer.Types(), "nn.Conv2d")
}
