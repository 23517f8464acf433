package layer

import (
	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

func init() {
	Register("torch.flatten", createFlatten)
}

// Flatten merges the axes [startDim, endDim] of each (c, r, w) batch tensor.
// Axis 0 is the batch axis, so 1 <= startDim <= endDim <= 3.
type Flatten struct {
	Base
	startDim, endDim int
}

// NewFlatten returns a flatten layer. Negative dims count from the end of a
// rank-4 (n, c, r, w) shape.
func NewFlatten(name string, startDim, endDim int) (*Flatten, error) {
	if startDim < 0 {
		startDim += 4
	}
	if endDim < 0 {
		endDim += 4
	}
	if startDim < 1 || startDim > 3 {
		return nil, &ParseError{Operator: name, Type: "torch.flatten", Status: ParameterMissingStartDim, Details: "start_dim out of range"}
	}
	if endDim < startDim || endDim > 3 {
		return nil, &ParseError{Operator: name, Type: "torch.flatten", Status: ParameterMissingEndDim, Details: "end_dim out of range"}
	}
	return &Flatten{Base: NewBase(name), startDim: startDim, endDim: endDim}, nil
}

// Forward replaces each output with a reshaped copy of its input.
func (f *Flatten) Forward(inputs, outputs []*tensor.Tensor) error {
	if err := checkBatches(f.Name(), inputs, outputs); err != nil {
		return err
	}
	for i, in := range inputs {
		if in.Empty() {
			return inferErr(f.Name(), InferInputEmpty, "batch %d is empty", i)
		}
		c, r, w := in.Channels(), in.Rows(), in.Cols()
		var shape tensor.Shape
		switch {
		case f.startDim == 1 && f.endDim == 3:
			shape = tensor.Shape{c * r * w}
		case f.startDim == 2 && f.endDim == 3:
			shape = tensor.Shape{c, r * w}
		case f.startDim == 1 && f.endDim == 2:
			shape = tensor.Shape{c * r, w}
		default:
			shape = in.Shapes()
		}
		out := in.Clone()
		if err := out.Reshape(shape, true); err != nil {
			return inferErr(f.Name(), InferShapeParameterError, "batch %d: %v", i, err)
		}
		outputs[i] = out
	}
	return nil
}

func createFlatten(_ *Context, op *ir.Operator) (ir.Layer, error) {
	r := opReader{op: op}
	start, err := r.int("start_dim", ParameterMissingStartDim)
	if err != nil {
		return nil, err
	}
	end, err := r.int("end_dim", ParameterMissingEndDim)
	if err != nil {
		return nil, err
	}
	f, err := NewFlatten(op.Name, start, end)
	if err != nil {
		return nil, err
	}
	return f, nil
}
