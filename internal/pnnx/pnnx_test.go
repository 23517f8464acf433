package pnnx

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyParam = `7767517
4 3
pnnx.Input      pnnx_input_0   0 1 0 #0=(1,1,4,4)f32
nn.Conv2d       conv1          1 1 0 1 bias=True dilation=(1,1) groups=1 in_channels=1 kernel_size=(3,3) out_channels=2 padding=(1,1) padding_mode=zeros stride=(1,1) @bias=(2)f32 @weight=(2,1,3,3)f32 #0=(1,1,4,4)f32 #1=(1,2,4,4)f32
nn.ReLU         relu1          1 1 1 2 #1=(1,2,4,4)f32 #2=(1,2,4,4)f32
pnnx.Output     pnnx_output_0  1 0 2
`

func float32Bytes(values ...float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func tinyWeights() map[string][]byte {
	return map[string][]byte{
		"conv1.weight": float32Bytes(make([]float32, 18)...),
		"conv1.bias":   float32Bytes(0.5, -0.5),
	}
}

func mapSource(entries map[string][]byte) WeightSource {
	return func(key string) ([]byte, error) {
		data, ok := entries[key]
		if !ok {
			return nil, errors.Wrap(ErrMissingWeight, key)
		}
		return data, nil
	}
}

func TestParse_Graph(t *testing.T) {
	g, err := Parse(strings.NewReader(tinyParam), mapSource(tinyWeights()))
	require.NoError(t, err)

	require.Len(t, g.Operators, 4)
	require.Len(t, g.Operands, 3)

	conv := g.Operators[1]
	assert.Equal(t, "nn.Conv2d", conv.Type)
	assert.Equal(t, "conv1", conv.Name)
	assert.Equal(t, []string{"0"}, conv.InputNames)
	require.Len(t, conv.Inputs, 1)
	assert.Same(t, g.Operators[0], conv.Inputs[0].Producer)

	assert.Equal(t, Parameter{Type: ParamBool, B: true}, conv.Params["bias"])
	assert.Equal(t, []int{3, 3}, conv.Params["kernel_size"].AI)
	assert.Equal(t, "zeros", conv.Params["padding_mode"].S)
	assert.Equal(t, 1, conv.Params["groups"].I)

	weight := conv.Attrs["weight"]
	assert.Equal(t, TypeFloat32, weight.Type)
	assert.Equal(t, []int{2, 1, 3, 3}, weight.Shape)
	assert.Len(t, weight.Data, 72)

	out, ok := g.Operand("1")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 4, 4}, out.Shape)
	assert.Equal(t, TypeFloat32, out.Type)
	require.Len(t, out.Consumers, 1)
	assert.Equal(t, "relu1", out.Consumers[0].Name)
}

func TestParseParameter(t *testing.T) {
	tests := []struct {
		in   string
		want Parameter
	}{
		{"None", Parameter{Type: ParamNull}},
		{"True", Parameter{Type: ParamBool, B: true}},
		{"False", Parameter{Type: ParamBool}},
		{"3", Parameter{Type: ParamInt, I: 3}},
		{"-1", Parameter{Type: ParamInt, I: -1}},
		{"1e-05", Parameter{Type: ParamFloat, F: 1e-05}},
		{"0.5", Parameter{Type: ParamFloat, F: 0.5}},
		{"zeros", Parameter{Type: ParamString, S: "zeros"}},
		{"mul(@0,@1)", Parameter{Type: ParamString, S: "mul(@0,@1)"}},
		{"(1,1)", Parameter{Type: ParamIntArray, AI: []int{1, 1}}},
		{"[2,-3]", Parameter{Type: ParamIntArray, AI: []int{2, -3}}},
		{"()", Parameter{Type: ParamIntArray, AI: []int{}}},
		{"(0.5,2.0)", Parameter{Type: ParamFloatArray, AF: []float32{0.5, 2}}},
		{"(a,b)", Parameter{Type: ParamStringArray, AS: []string{"a", "b"}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseParameter(tt.in), tt.in)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		param string
	}{
		{"bad magic", "123\n1 1\n"},
		{"empty", ""},
		{"bad counts", "7767517\n1\n"},
		{"missing operator", "7767517\n2 1\npnnx.Input in 0 1 0\n"},
		{"undefined operand", "7767517\n1 0\nnn.ReLU relu 1 0 x\n"},
		{"operand count", "7767517\n1 2\npnnx.Input in 0 1 0\n"},
		{"short names", "7767517\n1 1\npnnx.Input in 0 2 0\n"},
		{"bad shape", "7767517\n1 1\npnnx.Input in 0 1 0 #0=1,2f32\n"},
		{"bad type", "7767517\n1 1\npnnx.Input in 0 1 0 #0=(1,2)q8\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.param), nil)
			require.Error(t, err)
		})
	}

	_, err := Parse(strings.NewReader("42\n"), nil)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestParse_WeightErrors(t *testing.T) {
	weights := tinyWeights()
	delete(weights, "conv1.bias")
	_, err := Parse(strings.NewReader(tinyParam), mapSource(weights))
	require.ErrorIs(t, err, ErrMissingWeight)

	weights = tinyWeights()
	weights["conv1.weight"] = float32Bytes(1, 2, 3)
	_, err = Parse(strings.NewReader(tinyParam), mapSource(weights))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs 72")

	_, err = Parse(strings.NewReader(tinyParam), nil)
	require.Error(t, err)
}

func TestParse_DynamicShape(t *testing.T) {
	g, err := Parse(strings.NewReader("7767517\n1 1\npnnx.Input in 0 1 0 #0=(1,3,?,?)f32\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, -1, -1}, g.Operands[0].Shape)
}

func TestLoad_ZipArchive(t *testing.T) {
	dir := t.TempDir()
	paramPath := filepath.Join(dir, "tiny.pnnx.param")
	binPath := filepath.Join(dir, "tiny.pnnx.bin")
	require.NoError(t, os.WriteFile(paramPath, []byte(tinyParam), 0o600))

	var buf bytes.Buffer
	require.NoError(t, WriteWeights(&buf, tinyWeights()))
	require.NoError(t, os.WriteFile(binPath, buf.Bytes(), 0o600))

	g, err := FileLoader{}.Load(paramPath, binPath)
	require.NoError(t, err)
	assert.Equal(t, float32Bytes(0.5, -0.5), g.Operators[1].Attrs["bias"].Data)

	_, err = Load(filepath.Join(dir, "missing.param"), binPath)
	require.Error(t, err)
	_, err = Load(paramPath, filepath.Join(dir, "missing.bin"))
	require.Error(t, err)
}
