package layer

import (
	"weak"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

// Base carries the state shared by every layer: its name and a weak
// reference to the operator that owns it. Kernels embed Base and override
// Forward.
type Base struct {
	name string
	op   weak.Pointer[ir.Operator]
}

// NewBase returns a Base for the named layer.
func NewBase(name string) Base {
	return Base{name: name}
}

// Name returns the layer name.
func (b *Base) Name() string { return b.name }

// Bind records the owning operator. The layer does not keep it alive.
func (b *Base) Bind(op *ir.Operator) {
	b.op = weak.Make(op)
}

// Operator returns the bound operator, or nil if unbound or collected.
func (b *Base) Operator() *ir.Operator {
	return b.op.Value()
}

// Forward fails with InferNotImplemented.
func (b *Base) Forward(_, _ []*tensor.Tensor) error {
	return &InferError{Layer: b.name, Status: InferNotImplemented}
}

// Run executes the owning operator's layer over the operator's input
// operands, writing into its pre-allocated output operand.
func (b *Base) Run() error {
	op := b.op.Value()
	if op == nil {
		return inferErr(b.name, InferUnknown, "layer is not bound to an operator")
	}
	if op.Layer == nil {
		return inferErr(b.name, InferUnknown, "operator %s has no layer", op.Name)
	}
	if len(op.Inputs) == 0 {
		return inferErr(b.name, InferInputEmpty, "operator %s has no input operands", op.Name)
	}
	inputs := op.InputBatches()
	if len(inputs) == 0 {
		return inferErr(b.name, InferInputEmpty, "operator %s input operands hold no tensors", op.Name)
	}
	if op.Output == nil || len(op.Output.Datas) == 0 {
		return inferErr(b.name, InferOutputEmpty, "operator %s has no allocated output", op.Name)
	}
	return op.Layer.Forward(inputs, op.Output.Datas)
}
