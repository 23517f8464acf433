package layer

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

func init() {
	Register("nn.Linear", createLinear)
}

// Linear applies y = x W^T + b row by row. Inputs are (1, h, in) and
// outputs (1, h, out).
type Linear struct {
	Base
	inFeatures  int
	outFeatures int
	useBias     bool

	weight []float32 // [out, in] row-major
	bias   []float32
}

// NewLinear returns a linear layer without weights.
func NewLinear(name string, inFeatures, outFeatures int, useBias bool) *Linear {
	return &Linear{Base: NewBase(name), inFeatures: inFeatures, outFeatures: outFeatures, useBias: useBias}
}

// SetWeight installs the [out, in] weight matrix.
func (l *Linear) SetWeight(values []float32) error {
	if len(values) != l.inFeatures*l.outFeatures || len(values) == 0 {
		return inferErr(l.Name(), InferWeightParameterError, "got %d weight values, want %d", len(values), l.inFeatures*l.outFeatures)
	}
	l.weight = append(l.weight[:0], values...)
	return nil
}

// SetBias installs one bias value per output feature.
func (l *Linear) SetBias(values []float32) error {
	if len(values) != l.outFeatures {
		return inferErr(l.Name(), InferBiasParameterError, "got %d bias values, want %d", len(values), l.outFeatures)
	}
	l.bias = append(l.bias[:0], values...)
	return nil
}

// Forward computes every batch element. Missing outputs are allocated.
func (l *Linear) Forward(inputs, outputs []*tensor.Tensor) error {
	if len(inputs) == 0 {
		return inferErr(l.Name(), InferInputEmpty, "no input tensors")
	}
	if len(inputs) != len(outputs) {
		return inferErr(l.Name(), InferInputOutputSizeMismatch, "%d inputs, %d outputs", len(inputs), len(outputs))
	}
	if len(l.weight) == 0 {
		return inferErr(l.Name(), InferWeightParameterError, "no weight configured")
	}
	if l.useBias && len(l.bias) != l.outFeatures {
		return inferErr(l.Name(), InferBiasParameterError, "%d bias values for %d features", len(l.bias), l.outFeatures)
	}

	weight := blas32.General{Rows: l.outFeatures, Cols: l.inFeatures, Stride: l.inFeatures, Data: l.weight}
	for i, in := range inputs {
		if in.Empty() {
			return inferErr(l.Name(), InferInputEmpty, "batch %d is empty", i)
		}
		if in.Channels() != 1 || in.Cols() != l.inFeatures {
			return inferErr(l.Name(), InferShapeParameterError, "batch %d has shape %v, want [1 h %d]", i, in.Shapes(), l.inFeatures)
		}
		h := in.Rows()
		if outputs[i] == nil {
			outputs[i] = tensor.New(1, h, l.outFeatures)
		}
		out := outputs[i]
		if !out.Shapes().Equal(tensor.Shape{1, h, l.outFeatures}) {
			return inferErr(l.Name(), InferInputOutputSizeMismatch, "batch %d output shape %v, want [1 %d %d]", i, out.Shapes(), h, l.outFeatures)
		}

		x := blas32.General{Rows: h, Cols: l.inFeatures, Stride: l.inFeatures, Data: in.Data()}
		y := blas32.General{Rows: h, Cols: l.outFeatures, Stride: l.outFeatures, Data: out.Data()}
		blas32.Gemm(blas.NoTrans, blas.Trans, 1, x, weight, 0, y)

		if l.useBias {
			for r := 0; r < h; r++ {
				row := y.Data[r*l.outFeatures : (r+1)*l.outFeatures]
				for j, b := range l.bias {
					row[j] += b
				}
			}
		}
	}
	return nil
}

func createLinear(_ *Context, op *ir.Operator) (ir.Layer, error) {
	r := opReader{op: op}

	useBias, err := r.bool("bias", ParameterMissingUseBias)
	if err != nil {
		return nil, err
	}
	in, err := r.int("in_features", ParameterMissingInFeatures)
	if err != nil {
		return nil, err
	}
	out, err := r.int("out_features", ParameterMissingOutFeatures)
	if err != nil {
		return nil, err
	}
	if in <= 0 || out <= 0 {
		return nil, r.fail(ParameterMissingInFeatures, "features (%d, %d) must be positive", in, out)
	}

	l := NewLinear(op.Name, in, out, useBias)
	if useBias {
		bias, err := r.floats("bias", AttrMissingBias, AttrBiasShapeWrong, out)
		if err != nil {
			return nil, err
		}
		if err := l.SetBias(bias); err != nil {
			return nil, r.fail(AttrBiasShapeWrong, "%v", err)
		}
	}
	weight, err := r.floats("weight", AttrMissingWeight, AttrWeightShapeWrong, in*out)
	if err != nil {
		return nil, err
	}
	if err := l.SetWeight(weight); err != nil {
		return nil, r.fail(AttrWeightShapeWrong, "%v", err)
	}
	return l, nil
}
