package layer

import (
	"github.com/freeinfer/freeinfer/internal/ir"
)

// opReader pulls typed parameters and attributes off an operator, turning
// absence or a wrong type into the given ParseStatus.
type opReader struct {
	op *ir.Operator
}

func (r opReader) fail(status ParseStatus, format string, args ...any) *ParseError {
	return parseErr(r.op.Name, r.op.Type, status, format, args...)
}

func (r opReader) int(name string, status ParseStatus) (int, error) {
	p, ok := r.op.Param(name)
	if !ok {
		return 0, r.fail(status, "parameter %q not found", name)
	}
	v, ok := p.Int()
	if !ok {
		return 0, r.fail(status, "parameter %q is not an int", name)
	}
	return v, nil
}

func (r opReader) bool(name string, status ParseStatus) (bool, error) {
	p, ok := r.op.Param(name)
	if !ok {
		return false, r.fail(status, "parameter %q not found", name)
	}
	v, ok := p.Bool()
	if !ok {
		return false, r.fail(status, "parameter %q is not a bool", name)
	}
	return v, nil
}

func (r opReader) str(name string, status ParseStatus) (string, error) {
	p, ok := r.op.Param(name)
	if !ok {
		return "", r.fail(status, "parameter %q not found", name)
	}
	v, ok := p.Str()
	if !ok {
		return "", r.fail(status, "parameter %q is not a string", name)
	}
	return v, nil
}

// pair reads a two-element int array parameter.
func (r opReader) pair(name string, status ParseStatus) (int, int, error) {
	p, ok := r.op.Param(name)
	if !ok {
		return 0, 0, r.fail(status, "parameter %q not found", name)
	}
	v, ok := p.Ints()
	if !ok || len(v) != 2 {
		return 0, 0, r.fail(status, "parameter %q must be an int array of length 2, got %s", name, p)
	}
	return v[0], v[1], nil
}

// floats decodes a float32 attribute and checks its element count. The raw
// bytes are released once decoded.
func (r opReader) floats(name string, missing, wrongShape ParseStatus, want int) ([]float32, error) {
	attr, ok := r.op.Attr(name)
	if !ok {
		return nil, r.fail(missing, "attribute %q not found", name)
	}
	values, err := attr.Float32s()
	if err != nil {
		e := r.fail(wrongShape, "attribute %q", name)
		e.Err = err
		return nil, e
	}
	if len(values) != want {
		return nil, r.fail(wrongShape, "attribute %q has %d elements, want %d", name, len(values), want)
	}
	attr.Release()
	return values, nil
}
