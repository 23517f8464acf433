package ir

import "github.com/freeinfer/freeinfer/internal/tensor"

// Reserved operator types for graph endpoints. They carry no layer.
const (
	TypeInput  = "pnnx.Input"
	TypeOutput = "pnnx.Output"
)

// Operand is a value flowing along a graph edge: one tensor per batch
// element.
type Operand struct {
	Name   string
	Type   DataType
	Shapes []int
	Datas  []*tensor.Tensor
}

// Layer is the executable form of an operator.
type Layer interface {
	// Name returns the operator name the layer was built for.
	Name() string
	// Forward computes outputs from inputs. The slices are batch-aligned.
	Forward(inputs, outputs []*tensor.Tensor) error
	// Run executes the layer against its bound operator's operands.
	Run() error
	// Bind attaches the operator that owns the layer.
	Bind(op *Operator)
}

// Operator is one node of the runtime graph.
type Operator struct {
	Name string
	Type string

	// Inputs in declaration order. InputMap indexes the same operands by
	// the name of the producing operator.
	Inputs   []*Operand
	InputMap map[string]*Operand

	// OutputNames lists the consumers of this operator's output. Output is
	// the operand this operator writes.
	OutputNames     []string
	Output          *Operand
	OutputOperators map[string]*Operator

	Params map[string]Parameter
	Attrs  map[string]*Attribute

	Layer   Layer
	Visited bool
}

// NewOperator returns an operator with its maps allocated.
func NewOperator(name, typ string) *Operator {
	return &Operator{
		Name:            name,
		Type:            typ,
		InputMap:        make(map[string]*Operand),
		OutputOperators: make(map[string]*Operator),
		Params:          make(map[string]Parameter),
		Attrs:           make(map[string]*Attribute),
	}
}

// AddInput appends an operand produced by the operator named producer.
func (op *Operator) AddInput(producer string, operand *Operand) {
	op.Inputs = append(op.Inputs, operand)
	op.InputMap[producer] = operand
}

// InputBatches returns every input tensor, operand by operand, batch
// elements contiguous within an operand.
func (op *Operator) InputBatches() []*tensor.Tensor {
	var out []*tensor.Tensor
	for _, in := range op.Inputs {
		out = append(out, in.Datas...)
	}
	return out
}

// Param returns the named parameter.
func (op *Operator) Param(name string) (Parameter, bool) {
	p, ok := op.Params[name]
	return p, ok
}

// Attr returns the named attribute.
func (op *Operator) Attr(name string) (*Attribute, bool) {
	a, ok := op.Attrs[name]
	return a, ok
}
