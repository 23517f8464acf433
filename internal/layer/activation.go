package layer

import (
	"math"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

func init() {
	Register("nn.ReLU", func(_ *Context, op *ir.Operator) (ir.Layer, error) { return NewReLU(op.Name), nil })
	Register("nn.Sigmoid", func(_ *Context, op *ir.Operator) (ir.Layer, error) { return NewSigmoid(op.Name), nil })
	Register("F.sigmoid", func(_ *Context, op *ir.Operator) (ir.Layer, error) { return NewSigmoid(op.Name), nil })
	Register("nn.Softmax", func(_ *Context, op *ir.Operator) (ir.Layer, error) { return NewSoftmax(op.Name), nil })
}

// elementwise applies fn from each input to its output, allocating missing
// outputs with the input's shape.
func elementwise(name string, inputs, outputs []*tensor.Tensor, fn func(dst, src []float32)) error {
	if err := checkBatches(name, inputs, outputs); err != nil {
		return err
	}
	for i, in := range inputs {
		if in.Empty() {
			return inferErr(name, InferInputEmpty, "batch %d is empty", i)
		}
		if outputs[i] == nil {
			outputs[i] = tensor.FromShape(in.RawShapes())
		}
		if !outputs[i].Shapes().Equal(in.Shapes()) {
			return inferErr(name, InferInputOutputSizeMismatch, "batch %d input shape %v, output shape %v",
				i, in.Shapes(), outputs[i].Shapes())
		}
		fn(outputs[i].Data(), in.Data())
	}
	return nil
}

// ReLU computes max(x, 0).
type ReLU struct{ Base }

// NewReLU returns a ReLU layer.
func NewReLU(name string) *ReLU { return &ReLU{Base: NewBase(name)} }

// Forward applies ReLU to every batch element.
func (l *ReLU) Forward(inputs, outputs []*tensor.Tensor) error {
	return elementwise(l.Name(), inputs, outputs, func(dst, src []float32) {
		for i, v := range src {
			dst[i] = max(v, 0)
		}
	})
}

// Sigmoid computes 1 / (1 + e^-x).
type Sigmoid struct{ Base }

// NewSigmoid returns a sigmoid layer.
func NewSigmoid(name string) *Sigmoid { return &Sigmoid{Base: NewBase(name)} }

// Forward applies the sigmoid to every batch element.
func (l *Sigmoid) Forward(inputs, outputs []*tensor.Tensor) error {
	return elementwise(l.Name(), inputs, outputs, func(dst, src []float32) {
		for i, v := range src {
			dst[i] = float32(1 / (1 + math.Exp(-float64(v))))
		}
	})
}

// Softmax normalizes every element of each batch tensor.
type Softmax struct{ Base }

// NewSoftmax returns a softmax layer.
func NewSoftmax(name string) *Softmax { return &Softmax{Base: NewBase(name)} }

// Forward applies softmax over each batch tensor as a whole.
func (l *Softmax) Forward(inputs, outputs []*tensor.Tensor) error {
	return elementwise(l.Name(), inputs, outputs, func(dst, src []float32) {
		peak := src[0]
		for _, v := range src[1:] {
			peak = max(peak, v)
		}
		var sum float64
		for i, v := range src {
			e := math.Exp(float64(v - peak))
			dst[i] = float32(e)
			sum += e
		}
		for i := range dst {
			dst[i] = float32(float64(dst[i]) / sum)
		}
	})
}
