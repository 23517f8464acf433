package expr

import (
	"fmt"
	"strconv"
)

// Node is a node of a parsed expression tree. Input nodes carry Index and
// have no children; sin nodes use Left only.
type Node struct {
	Type  TokenType
	Index int
	Left  *Node
	Right *Node
}

// String renders the subtree back into statement form.
func (n *Node) String() string {
	switch n.Type {
	case TokenInputNumber:
		return "@" + strconv.Itoa(n.Index)
	case TokenSin:
		return fmt.Sprintf("sin(%s)", n.Left)
	default:
		return fmt.Sprintf("%s(%s,%s)", n.Type, n.Left, n.Right)
	}
}

// ReversePolish returns the subtree in post-order (left, right, self).
func (n *Node) ReversePolish() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(node *Node) {
		if node == nil {
			return
		}
		walk(node.Left)
		walk(node.Right)
		out = append(out, node)
	}
	walk(n)
	return out
}

type parser struct {
	tokens []Token
	pos    int
}

// Parse builds the expression tree from tokens. Every token must be consumed.
func Parse(tokens []Token) (*Node, error) {
	if len(tokens) == 0 {
		return nil, &SyntaxError{Msg: "no tokens"}
	}
	p := &parser{tokens: tokens}
	root, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.pos != len(tokens) {
		return nil, p.errorf("unexpected trailing token %q", tokens[p.pos].Text)
	}
	return root, nil
}

func (p *parser) errorf(format string, args ...any) error {
	pos := 0
	if p.pos < len(p.tokens) {
		pos = p.tokens[p.pos].Start
	} else if n := len(p.tokens); n > 0 {
		pos = p.tokens[n-1].End
	}
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(typ TokenType) error {
	if p.pos >= len(p.tokens) {
		return p.errorf("expected %q, got end of statement", typ)
	}
	if got := p.tokens[p.pos]; got.Type != typ {
		return p.errorf("expected %q, got %q", typ, got.Text)
	}
	p.pos++
	return nil
}

func (p *parser) expression() (*Node, error) {
	if p.pos >= len(p.tokens) {
		return nil, p.errorf("unexpected end of statement")
	}
	tok := p.tokens[p.pos]
	switch tok.Type {
	case TokenInputNumber:
		index, err := strconv.Atoi(tok.Text[1:])
		if err != nil {
			return nil, p.errorf("bad input reference %q", tok.Text)
		}
		p.pos++
		return &Node{Type: TokenInputNumber, Index: index}, nil

	case TokenAdd, TokenMul, TokenSin:
		p.pos++
		if err := p.expect(TokenLeftBracket); err != nil {
			return nil, err
		}
		node := &Node{Type: tok.Type}
		left, err := p.expression()
		if err != nil {
			return nil, err
		}
		node.Left = left
		if tok.Type != TokenSin {
			if err := p.expect(TokenComma); err != nil {
				return nil, err
			}
			right, err := p.expression()
			if err != nil {
				return nil, err
			}
			node.Right = right
		}
		if err := p.expect(TokenRightBracket); err != nil {
			return nil, err
		}
		return node, nil

	default:
		return nil, p.errorf("unexpected token %q", tok.Text)
	}
}
