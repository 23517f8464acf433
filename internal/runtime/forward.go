package runtime

import (
	"fmt"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

// Forward runs the graph over one batch. inputs must match the batch size
// and per-element shape of the input operator's output operand. The result
// is a copy of the batch arriving at the output operator.
func (g *Graph) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if g.state != Complete {
		return nil, fmt.Errorf("%w: state %s", ErrNotBuilt, g.state)
	}
	input := g.byName[g.inputName]
	output := g.byName[g.outputName]
	if input.Output == nil {
		return nil, fmt.Errorf("runtime: input operator %s produces no operand", input.Name)
	}

	slots := input.Output.Datas
	if len(inputs) != len(slots) {
		return nil, fmt.Errorf("%w: got %d tensors, model expects %d", ErrBatchMismatch, len(inputs), len(slots))
	}
	for i, in := range inputs {
		if in.Empty() {
			return nil, fmt.Errorf("runtime: input %d is empty", i)
		}
		if !in.Shapes().Equal(slots[i].Shapes()) {
			return nil, fmt.Errorf("runtime: input %d has shape %v, model expects %v", i, in.Shapes(), slots[i].Shapes())
		}
		copy(slots[i].Data(), in.Data())
	}

	for _, op := range g.topo {
		switch op.Type {
		case ir.TypeInput:
		case ir.TypeOutput:
			continue
		default:
			if err := op.Layer.Run(); err != nil {
				return nil, fmt.Errorf("runtime: operator %s (%s): %w", op.Name, op.Type, err)
			}
		}
		if err := propagate(op); err != nil {
			return nil, err
		}
	}

	results := output.InputBatches()
	for i, t := range results {
		if t != nil {
			results[i] = t.Clone()
		}
	}
	return results, nil
}

// propagate hands op's output tensors to every consumer's input operand.
func propagate(op *ir.Operator) error {
	if op.Output == nil {
		return nil
	}
	for _, name := range op.OutputNames {
		consumer, ok := op.OutputOperators[name]
		if !ok {
			continue
		}
		operand, ok := consumer.InputMap[op.Name]
		if !ok {
			return fmt.Errorf("runtime: operator %s does not read from %s", consumer.Name, op.Name)
		}
		if len(operand.Datas) != len(op.Output.Datas) {
			return fmt.Errorf("runtime: operator %s expects batch %d from %s, got %d",
				consumer.Name, len(operand.Datas), op.Name, len(op.Output.Datas))
		}
		copy(operand.Datas, op.Output.Datas)
	}
	return nil
}
