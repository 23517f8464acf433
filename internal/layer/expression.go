package layer

import (
	"github.com/freeinfer/freeinfer/internal/expr"
	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

func init() {
	Register("pnnx.Expression", createExpression)
}

// Expression evaluates a fused elementwise formula such as
// "mul(@0,add(@1,@2))" over its input operands.
type Expression struct {
	Base
	program *expr.Program
}

// NewExpression compiles statement into an expression layer.
func NewExpression(name, statement string) (*Expression, error) {
	program, err := expr.Compile(statement)
	if err != nil {
		return nil, &ParseError{Operator: name, Type: "pnnx.Expression", Status: ParameterMissingExpr, Err: err}
	}
	return &Expression{Base: NewBase(name), program: program}, nil
}

// Statement returns the source formula.
func (e *Expression) Statement() string { return e.program.Statement() }

// Forward evaluates the formula. inputs holds every operand's batch back to
// back; len(outputs) is the batch size.
func (e *Expression) Forward(inputs, outputs []*tensor.Tensor) error {
	if len(inputs) == 0 {
		return inferErr(e.Name(), InferInputEmpty, "no input tensors")
	}
	if len(outputs) == 0 {
		return inferErr(e.Name(), InferOutputEmpty, "no output tensors")
	}
	batch := len(outputs)
	if len(inputs)%batch != 0 {
		return inferErr(e.Name(), InferInputOutputSizeMismatch, "%d inputs do not split into batches of %d", len(inputs), batch)
	}
	for _, out := range outputs {
		if out != nil {
			out.FillValue(0)
		}
	}

	results, err := e.program.Evaluate(inputs, batch)
	if err != nil {
		return &InferError{Layer: e.Name(), Status: InferShapeParameterError, Details: err.Error()}
	}
	for i, res := range results {
		if outputs[i] != nil && !outputs[i].Shapes().Equal(res.Shapes()) {
			return inferErr(e.Name(), InferInputOutputSizeMismatch, "batch %d result shape %v, output shape %v",
				i, res.Shapes(), outputs[i].Shapes())
		}
		outputs[i] = res
	}
	return nil
}

func createExpression(_ *Context, op *ir.Operator) (ir.Layer, error) {
	statement, err := opReader{op: op}.str("expr", ParameterMissingExpr)
	if err != nil {
		return nil, err
	}
	e, err := NewExpression(op.Name, statement)
	if err != nil {
		return nil, err
	}
	return e, nil
}
