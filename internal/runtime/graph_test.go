package runtime

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/layer"
	"github.com/freeinfer/freeinfer/internal/parallel"
	"github.com/freeinfer/freeinfer/internal/pnnx"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

// smallNet is conv -> relu -> maxpool -> add(x, x) -> avgpool -> flatten ->
// linear -> softmax over a batch of two 1x6x6 images.
const smallNet = `7767517
10 9
pnnx.Input           pnnx_input_0  0 1 0 #0=(2,1,6,6)f32
nn.Conv2d            conv1         1 1 0 1 bias=True dilation=(1,1) groups=1 in_channels=1 kernel_size=(3,3) out_channels=2 padding=(1,1) padding_mode=zeros stride=(1,1) @bias=(2)f32 @weight=(2,1,3,3)f32 #1=(2,2,6,6)f32
nn.ReLU              relu1         1 1 1 2 #2=(2,2,6,6)f32
nn.MaxPool2d         pool1         1 1 2 3 kernel_size=(2,2) padding=(0,0) stride=(2,2) #3=(2,2,3,3)f32
pnnx.Expression      expr1         2 1 3 3 4 expr=add(@0,@1) #4=(2,2,3,3)f32
nn.AdaptiveAvgPool2d avg1          1 1 4 5 output_size=(1,1) #5=(2,2,1,1)f32
torch.flatten        flat1         1 1 5 6 end_dim=-1 start_dim=1 #6=(2,2)f32
nn.Linear            fc1           1 1 6 7 bias=True in_features=2 out_features=3 @bias=(3)f32 @weight=(3,2)f32 #7=(2,3)f32
nn.Softmax           softmax1      1 1 7 8 dim=1 #8=(2,3)f32
pnnx.Output          pnnx_output_0 1 0 8
`

func f32(values ...float32) []byte {
	return ir.Float32Attribute([]int{len(values)}, values).Weight
}

func smallNetWeights() map[string][]byte {
	conv := make([]float32, 18)
	conv[4] = 1  // channel 0 passes the input through
	conv[13] = 2 // channel 1 doubles it
	return map[string][]byte{
		"conv1.weight": f32(conv...),
		"conv1.bias":   f32(0, 1),
		"fc1.weight":   f32(0.01, 0, 0, 0.01, 0.01, -0.01),
		"fc1.bias":     f32(0.1, 0.2, 0.3),
	}
}

func writeModel(t *testing.T, param string, weights map[string][]byte) (string, string) {
	t.Helper()
	dir := t.TempDir()
	paramPath := filepath.Join(dir, "model.pnnx.param")
	binPath := filepath.Join(dir, "model.pnnx.bin")
	require.NoError(t, os.WriteFile(paramPath, []byte(param), 0o600))

	var buf bytes.Buffer
	require.NoError(t, pnnx.WriteWeights(&buf, weights))
	require.NoError(t, os.WriteFile(binPath, buf.Bytes(), 0o600))
	return paramPath, binPath
}

// memLoader parses a model held in memory.
type memLoader struct {
	param   string
	weights map[string][]byte
}

func (m memLoader) Load(_, _ string) (*pnnx.Graph, error) {
	return pnnx.Parse(strings.NewReader(m.param), func(key string) ([]byte, error) {
		data, ok := m.weights[key]
		if !ok {
			return nil, pnnx.ErrMissingWeight
		}
		return append([]byte(nil), data...), nil
	})
}

func newSmallNet(t *testing.T) *Graph {
	t.Helper()
	paramPath, binPath := writeModel(t, smallNet, smallNetWeights())
	return New(paramPath, binPath)
}

func smallNetInputs() []*tensor.Tensor {
	inputs := make([]*tensor.Tensor, 2)
	for b := range inputs {
		in := tensor.New(1, 6, 6)
		for r := 0; r < 6; r++ {
			for c := 0; c < 6; c++ {
				in.Set(0, r, c, float32(b*100+r*6+c+1))
			}
		}
		inputs[b] = in
	}
	return inputs
}

// smallNetExpected computes the network output by hand.
func smallNetExpected(b int) []float64 {
	var a0, a1 float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m := float64(b*100 + (2*i+1)*6 + (2*j+1) + 1)
			a0 += 2 * m
			a1 += 2 * (2*m + 1)
		}
	}
	a0 /= 9
	a1 /= 9
	logits := []float64{0.01*a0 + 0.1, 0.01*a1 + 0.2, 0.01*(a0-a1) + 0.3}
	peak := math.Max(logits[0], math.Max(logits[1], logits[2]))
	var sum float64
	out := make([]float64, 3)
	for i, l := range logits {
		out[i] = math.Exp(l - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func TestGraph_StateMachine(t *testing.T) {
	g := newSmallNet(t)
	assert.Equal(t, NeedInit, g.State())

	require.NoError(t, g.Init())
	assert.Equal(t, NeedBuild, g.State())
	assert.Len(t, g.Operators(), 10)

	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))
	assert.Equal(t, Complete, g.State())
	assert.Equal(t, "pnnx_input_0", g.InputName())
	assert.Equal(t, "pnnx_output_0", g.OutputName())
}

func TestGraph_BuildFromNeedInit(t *testing.T) {
	g := newSmallNet(t)
	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))
	assert.Equal(t, Complete, g.State())
}

func TestGraph_BuildIdempotent(t *testing.T) {
	g := newSmallNet(t)
	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))

	ops := len(g.Operators())
	topo := append([]*ir.Operator(nil), g.TopoQueue()...)
	conv, ok := g.Operator("conv1")
	require.True(t, ok)
	buffers := append([]*tensor.Tensor(nil), conv.Output.Datas...)

	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))
	assert.Equal(t, Complete, g.State())
	assert.Len(t, g.Operators(), ops)
	require.Len(t, g.TopoQueue(), len(topo))
	for i := range topo {
		assert.Same(t, topo[i], g.TopoQueue()[i])
	}
	for i := range buffers {
		assert.Same(t, buffers[i], conv.Output.Datas[i])
	}
}

func TestGraph_TopoOrder(t *testing.T) {
	g := newSmallNet(t)
	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))

	topo := g.TopoQueue()
	require.Len(t, topo, len(g.Operators()))
	position := make(map[*ir.Operator]int, len(topo))
	for i, op := range topo {
		position[op] = i
	}
	for _, op := range g.Operators() {
		for _, consumer := range op.OutputOperators {
			assert.Less(t, position[op], position[consumer], "%s must run before %s", op.Name, consumer.Name)
		}
	}
	assert.Equal(t, ir.TypeInput, topo[0].Type)
	assert.Equal(t, ir.TypeOutput, topo[len(topo)-1].Type)
}

// diamondNet fans the input out to two ReLUs and joins them with a constant
// source that has no inputs.
const diamondNet = `7767517
6 5
pnnx.Input      in0  0 1 0 #0=(1,1,2,2)f32
custom.Const    c0   0 1 1 #1=(1,1,2,2)f32
nn.ReLU         r0   1 1 0 2 #2=(1,1,2,2)f32
nn.ReLU         r1   1 1 0 3 #3=(1,1,2,2)f32
pnnx.Expression e0   3 1 2 3 1 4 expr=add(add(@0,@1),@2) #4=(1,1,2,2)f32
pnnx.Output     out0 1 0 4
`

type constLayer struct{ layer.Base }

func diamondRegistry(t *testing.T) *layer.Registry {
	t.Helper()
	reg := layer.NewRegistry()
	for _, typ := range []string{"nn.ReLU", "pnnx.Expression"} {
		creator, ok := layer.Default().Get(typ)
		require.True(t, ok, typ)
		reg.Register(typ, creator)
	}
	reg.Register("custom.Const", func(_ *layer.Context, op *ir.Operator) (ir.Layer, error) {
		return &constLayer{Base: layer.NewBase(op.Name)}, nil
	})
	return reg
}

func TestGraph_TopoOrderMultipleSources(t *testing.T) {
	g := New("model.param", "model.bin", Options{
		Loader:   memLoader{param: diamondNet},
		Registry: diamondRegistry(t),
	})
	require.NoError(t, g.Build("in0", "out0"))

	topo := g.TopoQueue()
	require.Len(t, topo, len(g.Operators()))
	position := make(map[string]int, len(topo))
	for i, op := range topo {
		position[op.Name] = i
	}
	require.Len(t, position, len(g.Operators()))
	for _, op := range g.Operators() {
		for _, name := range op.OutputNames {
			assert.Less(t, position[op.Name], position[name], "%s must run before %s", op.Name, name)
		}
	}
	assert.Equal(t, "out0", topo[len(topo)-1].Name)
}

func TestGraph_ForwardIdentityExpression(t *testing.T) {
	param := `7767517
4 3
pnnx.Input      in0  0 1 0 #0=(1,1,2,2)f32
pnnx.Expression e0   1 1 0 1 expr=@0 #1=(1,1,2,2)f32
nn.ReLU         r0   1 1 1 2 #2=(1,1,2,2)f32
pnnx.Output     out0 1 0 2
`
	g := New("model.param", "model.bin", Options{Loader: memLoader{param: param}})
	require.NoError(t, g.Build("in0", "out0"))

	for run := 0; run < 2; run++ {
		in := tensor.New(1, 2, 2)
		in.FillValue(3)
		out, err := g.Forward([]*tensor.Tensor{in})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, []float32{3, 3, 3, 3}, out[0].Values(true), "run %d", run)
	}
}

func TestGraph_BuildReusesOutputTensors(t *testing.T) {
	g := newSmallNet(t)
	require.NoError(t, g.Init())

	avg, ok := g.Operator("avg1")
	require.True(t, ok)
	existing := []*tensor.Tensor{tensor.New1D(2), tensor.New(3, 1, 1)}
	avg.Output = &ir.Operand{Datas: slices.Clone(existing)}

	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))
	assert.Equal(t, "avg1_output", avg.Output.Name)
	assert.Same(t, existing[0], avg.Output.Datas[0], "same element count is reshaped in place")
	assert.Equal(t, tensor.Shape{2, 1, 1}, avg.Output.Datas[0].Shapes())
	assert.NotSame(t, existing[1], avg.Output.Datas[1], "different element count is reallocated")
	assert.Equal(t, tensor.Shape{2, 1, 1}, avg.Output.Datas[1].Shapes())
}

func TestGraph_OperandWiring(t *testing.T) {
	g := newSmallNet(t)
	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))

	conv, _ := g.Operator("conv1")
	assert.Equal(t, "conv1_output", conv.Output.Name)
	assert.Equal(t, []int{2, 2, 6, 6}, conv.Output.Shapes)
	require.Len(t, conv.Output.Datas, 2)
	assert.Equal(t, tensor.Shape{2, 6, 6}, conv.Output.Datas[0].Shapes())
	assert.Equal(t, []string{"relu1"}, conv.OutputNames)

	relu, _ := g.Operator("relu1")
	require.Len(t, relu.Inputs, 1)
	assert.Equal(t, "conv1", relu.Inputs[0].Name)
	assert.Same(t, relu.Inputs[0], relu.InputMap["conv1"])
	assert.Equal(t, ir.DataTypeFloat32, relu.Inputs[0].Type)

	expr, _ := g.Operator("expr1")
	require.Len(t, expr.Inputs, 2)
	assert.Same(t, expr.Inputs[0], expr.Inputs[1], "repeated producer shares one operand")

	fc, _ := g.Operator("fc1")
	assert.Equal(t, tensor.Shape{3}, fc.Output.Datas[0].RawShapes())
	_, isLinear := fc.Layer.(*layer.Linear)
	assert.True(t, isLinear)

	in, _ := g.Operator("pnnx_input_0")
	assert.Nil(t, in.Layer)
}

func TestGraph_Forward(t *testing.T) {
	g := newSmallNet(t)
	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))

	for run := 0; run < 2; run++ {
		out, err := g.Forward(smallNetInputs())
		require.NoError(t, err)
		require.Len(t, out, 2)
		for b, got := range out {
			want := smallNetExpected(b)
			require.Equal(t, 3, got.Size())
			for i, w := range want {
				assert.InDelta(t, w, got.Index(i), 1e-4, "batch %d class %d", b, i)
			}
		}
	}
}

func TestGraph_ForwardErrors(t *testing.T) {
	g := newSmallNet(t)
	_, err := g.Forward(smallNetInputs())
	require.ErrorIs(t, err, ErrNotBuilt)

	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))
	_, err = g.Forward(smallNetInputs()[:1])
	require.ErrorIs(t, err, ErrBatchMismatch)

	_, err = g.Forward([]*tensor.Tensor{tensor.New(1, 5, 5), tensor.New(1, 5, 5)})
	require.Error(t, err)
}

func TestGraph_InitErrors(t *testing.T) {
	require.ErrorIs(t, New("", "model.bin").Init(), ErrEmptyPath)
	require.ErrorIs(t, New("model.param", "").Init(), ErrEmptyPath)

	dir := t.TempDir()
	require.Error(t, New(filepath.Join(dir, "a.param"), filepath.Join(dir, "a.bin")).Init())

	paramPath, binPath := writeModel(t, "7767517\n0 0\n", map[string][]byte{})
	require.ErrorIs(t, New(paramPath, binPath).Init(), ErrNoOperators)
}

func TestGraph_BuildPanicsWhenInitFails(t *testing.T) {
	g := New("", "")
	assert.Panics(t, func() { _ = g.Build("pnnx_input_0", "pnnx_output_0") })
}

func TestGraph_BuildUnknownEndpoints(t *testing.T) {
	g := newSmallNet(t)
	require.ErrorIs(t, g.Build("missing", "pnnx_output_0"), ErrUnknownOperator)
	require.ErrorIs(t, g.Build("pnnx_input_0", "missing"), ErrUnknownOperator)
	assert.Equal(t, NeedBuild, g.State())
}

func TestGraph_UnknownLayerPanics(t *testing.T) {
	param := `7767517
3 2
pnnx.Input  in   0 1 0 #0=(1,1,2,2)f32
nn.GELU     gelu 1 1 0 1 #1=(1,1,2,2)f32
pnnx.Output out  1 0 1
`
	g := New("model.param", "model.bin", Options{Loader: memLoader{param: param}})
	assert.Panics(t, func() { _ = g.Build("in", "out") })
}

func TestGraph_UnsupportedRankPanics(t *testing.T) {
	param := `7767517
3 2
pnnx.Input  in   0 1 0 #0=(4)f32
nn.ReLU     relu 1 1 0 1 #1=(4)f32
pnnx.Output out  1 0 1
`
	g := New("model.param", "model.bin", Options{Loader: memLoader{param: param}})
	assert.Panics(t, func() { _ = g.Build("in", "out") })
}

func TestGraph_CustomOptions(t *testing.T) {
	g := New("model.param", "model.bin", Options{
		Loader:   memLoader{param: smallNet, weights: smallNetWeights()},
		Registry: layer.Default(),
		Parallel: parallel.Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1},
	})
	require.NoError(t, g.Build("pnnx_input_0", "pnnx_output_0"))

	out, err := g.Forward(smallNetInputs())
	require.NoError(t, err)
	assert.InDelta(t, smallNetExpected(1)[2], out[1].Index(2), 1e-4)

	g.SetParamPath("other.param")
	g.SetBinPath("other.bin")
	assert.Equal(t, "other.param", g.ParamPath())
	assert.Equal(t, "other.bin", g.BinPath())
}

func TestGraph_ConcurrentBuilds(t *testing.T) {
	paramPath, binPath := writeModel(t, smallNet, smallNetWeights())

	const workers = 4
	results := make([][]*tensor.Tensor, workers)
	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			g := New(paramPath, binPath)
			if err := g.Build("pnnx_input_0", "pnnx_output_0"); err != nil {
				return err
			}
			out, err := g.Forward(smallNetInputs())
			results[w] = out
			return err
		})
	}
	require.NoError(t, eg.Wait())

	for w := 1; w < workers; w++ {
		for b := range results[0] {
			assert.Equal(t, results[0][b].Values(true), results[w][b].Values(true))
		}
	}
}
