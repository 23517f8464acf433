// Package expr implements the small formula language used by fused
// expression operators.
//
// The grammar is fixed:
//
//	E := @N | add(E,E) | mul(E,E) | sin(E)
//
// where N is the zero-based index of an input operand. Whitespace is not
// significant and is stripped before tokenizing.
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType identifies a lexical token.
type TokenType int

// Token types.
const (
	TokenUnknown TokenType = iota - 1
	TokenInputNumber
	TokenComma
	TokenAdd
	TokenMul
	TokenSin
	TokenLeftBracket
	TokenRightBracket
)

var tokenNames = map[TokenType]string{
	TokenUnknown:      "unknown",
	TokenInputNumber:  "input",
	TokenComma:        ",",
	TokenAdd:          "add",
	TokenMul:          "mul",
	TokenSin:          "sin",
	TokenLeftBracket:  "(",
	TokenRightBracket: ")",
}

// String returns the token type name.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is one lexical token of a statement. Start and End are byte offsets
// into the whitespace-stripped statement, End exclusive.
type Token struct {
	Type  TokenType
	Start int
	End   int
	Text  string
}

// SyntaxError reports a malformed statement.
type SyntaxError struct {
	Statement string
	Pos       int
	Msg       string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr: %s at position %d in %q", e.Msg, e.Pos, e.Statement)
}

// keywords maps the three-letter operator names to their token types.
var keywords = map[string]TokenType{
	"add": TokenAdd,
	"mul": TokenMul,
	"sin": TokenSin,
}

// Tokenize splits statement into tokens in a single left-to-right pass.
func Tokenize(statement string) ([]Token, error) {
	stmt := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, statement)
	if stmt == "" {
		return nil, &SyntaxError{Statement: statement, Msg: "empty statement"}
	}

	var tokens []Token
	for i := 0; i < len(stmt); {
		c := stmt[i]
		switch {
		case c == 'a' || c == 'm' || c == 's':
			if i+3 > len(stmt) {
				return nil, &SyntaxError{Statement: stmt, Pos: i, Msg: "truncated keyword"}
			}
			word := stmt[i : i+3]
			typ, ok := keywords[word]
			if !ok {
				return nil, &SyntaxError{Statement: stmt, Pos: i, Msg: fmt.Sprintf("unknown keyword %q", word)}
			}
			tokens = append(tokens, Token{Type: typ, Start: i, End: i + 3, Text: word})
			i += 3
		case c == '@':
			j := i + 1
			for j < len(stmt) && stmt[j] >= '0' && stmt[j] <= '9' {
				j++
			}
			if j == i+1 {
				return nil, &SyntaxError{Statement: stmt, Pos: i, Msg: "'@' must be followed by a digit"}
			}
			tokens = append(tokens, Token{Type: TokenInputNumber, Start: i, End: j, Text: stmt[i:j]})
			i = j
		case c == ',':
			tokens = append(tokens, Token{Type: TokenComma, Start: i, End: i + 1, Text: ","})
			i++
		case c == '(':
			tokens = append(tokens, Token{Type: TokenLeftBracket, Start: i, End: i + 1, Text: "("})
			i++
		case c == ')':
			tokens = append(tokens, Token{Type: TokenRightBracket, Start: i, End: i + 1, Text: ")"})
			i++
		default:
			return nil, &SyntaxError{Statement: stmt, Pos: i, Msg: fmt.Sprintf("unknown character %q", c)}
		}
	}
	return tokens, nil
}
