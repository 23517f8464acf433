package expr

import (
	"errors"
	"fmt"

	"github.com/freeinfer/freeinfer/internal/tensor"
)

// Program is a compiled statement ready for stack evaluation.
type Program struct {
	statement string
	root      *Node
	code      []*Node
}

// Compile tokenizes, parses and linearizes statement.
func Compile(statement string) (*Program, error) {
	tokens, err := Tokenize(statement)
	if err != nil {
		return nil, err
	}
	root, err := Parse(tokens)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) && se.Statement == "" {
			se.Statement = statement
		}
		return nil, err
	}
	return &Program{statement: statement, root: root, code: root.ReversePolish()}, nil
}

// Statement returns the source statement.
func (p *Program) Statement() string { return p.statement }

// Root returns the parsed tree.
func (p *Program) Root() *Node { return p.root }

// Instructions returns the program in reverse Polish order.
func (p *Program) Instructions() []*Node { return p.code }

// Inputs returns the number of input operands the program references, which
// is one more than the highest @N index.
func (p *Program) Inputs() int {
	n := 0
	for _, node := range p.code {
		if node.Type == TokenInputNumber && node.Index+1 > n {
			n = node.Index + 1
		}
	}
	return n
}

// Evaluate runs the program over inputs, which holds the batches of every
// referenced operand back to back: operand N occupies
// inputs[N*batch : N*batch+batch]. It returns one tensor per batch element;
// the results never share storage with inputs.
func (p *Program) Evaluate(inputs []*tensor.Tensor, batch int) ([]*tensor.Tensor, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("expr: batch size %d must be positive", batch)
	}

	var stack [][]*tensor.Tensor
	pop := func() []*tensor.Tensor {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top
	}

	for _, node := range p.code {
		switch node.Type {
		case TokenInputNumber:
			if node.Index < 0 || node.Index >= len(inputs)/batch {
				return nil, fmt.Errorf("expr: input @%d out of range (%d tensors for batch %d)", node.Index, len(inputs), batch)
			}
			start := node.Index * batch
			stack = append(stack, inputs[start:start+batch])

		case TokenSin:
			if len(stack) < 1 {
				return nil, fmt.Errorf("expr: sin needs one operand")
			}
			in := pop()
			out := make([]*tensor.Tensor, batch)
			for i, t := range in {
				if t.Empty() {
					return nil, fmt.Errorf("expr: sin of empty tensor at batch %d", i)
				}
				out[i] = tensor.Sin(t)
			}
			stack = append(stack, out)

		case TokenAdd, TokenMul:
			if len(stack) < 2 {
				return nil, fmt.Errorf("expr: %s needs two operands", node.Type)
			}
			rhs := pop()
			lhs := pop()
			op := tensor.Add
			if node.Type == TokenMul {
				op = tensor.Mul
			}
			out := make([]*tensor.Tensor, batch)
			for i := range out {
				t, err := op(lhs[i], rhs[i])
				if err != nil {
					return nil, fmt.Errorf("expr: batch %d: %w", i, err)
				}
				out[i] = t
			}
			stack = append(stack, out)

		default:
			panic(fmt.Sprintf("expr: unexpected instruction %v", node.Type))
		}
	}

	if len(stack) != 1 {
		return nil, fmt.Errorf("expr: %d results left on stack, want 1", len(stack))
	}
	if p.root.Type == TokenInputNumber {
		// A bare @N leaves the input tensors themselves on the stack.
		out := make([]*tensor.Tensor, batch)
		for i, t := range stack[0] {
			if t.Empty() {
				return nil, fmt.Errorf("expr: input @%d is empty at batch %d", p.root.Index, i)
			}
			out[i] = t.Clone()
		}
		return out, nil
	}
	return stack[0], nil
}
