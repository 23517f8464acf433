package pnnx

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Magic is the first line of every .param file.
const Magic = 7767517

// ErrBadMagic is returned when a .param file does not start with Magic.
var ErrBadMagic = errors.New("pnnx: bad magic number")

// WeightSource returns the raw bytes stored under key ("<op>.<attr>").
type WeightSource func(key string) ([]byte, error)

// Parse reads a .param description from r. Attribute data is fetched from
// weights, which may be nil when the model declares no attributes.
func Parse(r io.Reader, weights WeightSource) (*Graph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text != "" {
				return text, true
			}
		}
		return "", false
	}

	header, ok := next()
	if !ok {
		return nil, errors.Wrap(ErrBadMagic, "empty param file")
	}
	if magic, err := strconv.Atoi(header); err != nil || magic != Magic {
		return nil, errors.Wrapf(ErrBadMagic, "got %q", header)
	}

	counts, ok := next()
	if !ok {
		return nil, errors.New("pnnx: missing operator/operand counts")
	}
	fields := strings.Fields(counts)
	if len(fields) != 2 {
		return nil, errors.Errorf("pnnx: line %d: want \"<operators> <operands>\", got %q", line, counts)
	}
	opCount, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, errors.Wrapf(err, "pnnx: line %d: operator count", line)
	}
	operandCount, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, errors.Wrapf(err, "pnnx: line %d: operand count", line)
	}

	g := &Graph{}
	operands := make(map[string]*Operand, operandCount)
	for i := 0; i < opCount; i++ {
		text, ok := next()
		if !ok {
			return nil, errors.Errorf("pnnx: expected %d operators, found %d", opCount, i)
		}
		op, err := parseOperator(g, operands, text)
		if err != nil {
			return nil, errors.Wrapf(err, "pnnx: line %d", line)
		}
		if err := loadAttrs(op, weights); err != nil {
			return nil, errors.Wrapf(err, "pnnx: line %d", line)
		}
		g.Operators = append(g.Operators, op)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "pnnx: read param")
	}
	if len(g.Operands) != operandCount {
		return nil, errors.Errorf("pnnx: header declares %d operands, found %d", operandCount, len(g.Operands))
	}
	return g, nil
}

func parseOperator(g *Graph, operands map[string]*Operand, text string) (*Operator, error) {
	fields := strings.Fields(text)
	if len(fields) < 4 {
		return nil, errors.Errorf("operator line %q is too short", text)
	}
	op := &Operator{
		Type:   fields[0],
		Name:   fields[1],
		Params: make(map[string]Parameter),
		Attrs:  make(map[string]Attribute),
	}
	nin, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, errors.Wrapf(err, "operator %s: input count", op.Name)
	}
	nout, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, errors.Wrapf(err, "operator %s: output count", op.Name)
	}
	if nin < 0 || nout < 0 || len(fields) < 4+nin+nout {
		return nil, errors.Errorf("operator %s: declares %d inputs and %d outputs, line has %d names", op.Name, nin, nout, len(fields)-4)
	}

	for _, name := range fields[4 : 4+nin] {
		operand, ok := operands[name]
		if !ok {
			return nil, errors.Errorf("operator %s: operand %q used before it is produced", op.Name, name)
		}
		operand.Consumers = append(operand.Consumers, op)
		op.Inputs = append(op.Inputs, operand)
		op.InputNames = append(op.InputNames, name)
	}
	for _, name := range fields[4+nin : 4+nin+nout] {
		if _, dup := operands[name]; dup {
			return nil, errors.Errorf("operator %s: operand %q produced twice", op.Name, name)
		}
		operand := &Operand{Name: name, Producer: op}
		operands[name] = operand
		g.Operands = append(g.Operands, operand)
		op.Outputs = append(op.Outputs, operand)
	}

	for _, kv := range fields[4+nin+nout:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("operator %s: malformed entry %q", op.Name, kv)
		}
		switch key[0] {
		case '@':
			typ, shape, err := parseShapeType(value)
			if err != nil {
				return nil, errors.Wrapf(err, "operator %s: attribute %s", op.Name, key[1:])
			}
			op.Attrs[key[1:]] = Attribute{Type: typ, Shape: shape}
		case '#':
			operand, ok := operands[key[1:]]
			if !ok {
				return nil, errors.Errorf("operator %s: shape for unknown operand %q", op.Name, key[1:])
			}
			typ, shape, err := parseShapeType(value)
			if err != nil {
				return nil, errors.Wrapf(err, "operator %s: operand %s", op.Name, key[1:])
			}
			operand.Type, operand.Shape = typ, shape
		default:
			op.Params[key] = ParseParameter(value)
		}
	}
	return op, nil
}

// parseShapeType decodes "(1,3,?,?)f32".
func parseShapeType(s string) (int, []int, error) {
	if !strings.HasPrefix(s, "(") {
		return 0, nil, errors.Errorf("shape %q does not start with '('", s)
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return 0, nil, errors.Errorf("shape %q is not closed", s)
	}
	typ, ok := typeNames[s[end+1:]]
	if !ok {
		return 0, nil, errors.Errorf("unknown element type %q", s[end+1:])
	}
	var shape []int
	if body := s[1:end]; body != "" {
		for _, d := range strings.Split(body, ",") {
			if d == "?" {
				shape = append(shape, -1)
				continue
			}
			v, err := strconv.Atoi(d)
			if err != nil {
				return 0, nil, errors.Wrapf(err, "shape %q", s)
			}
			shape = append(shape, v)
		}
	}
	return typ, shape, nil
}

// ParseParameter decodes a parameter value the way PNNX writes it.
func ParseParameter(value string) Parameter {
	switch value {
	case "None", "":
		return Parameter{Type: ParamNull}
	case "True":
		return Parameter{Type: ParamBool, B: true}
	case "False":
		return Parameter{Type: ParamBool, B: false}
	}

	if n := len(value); n >= 2 && (value[0] == '(' && value[n-1] == ')' || value[0] == '[' && value[n-1] == ']') {
		body := strings.TrimSpace(value[1 : len(value)-1])
		if body == "" {
			return Parameter{Type: ParamIntArray, AI: []int{}}
		}
		elems := strings.Split(body, ",")
		switch {
		case !isNumber(elems[0]):
			return Parameter{Type: ParamStringArray, AS: elems}
		case isFloat(elems[0]):
			p := Parameter{Type: ParamFloatArray}
			for _, e := range elems {
				f, _ := strconv.ParseFloat(e, 32)
				p.AF = append(p.AF, float32(f))
			}
			return p
		default:
			p := Parameter{Type: ParamIntArray}
			for _, e := range elems {
				v, _ := strconv.Atoi(e)
				p.AI = append(p.AI, v)
			}
			return p
		}
	}

	if !isNumber(value) {
		return Parameter{Type: ParamString, S: value}
	}
	if isFloat(value) {
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return Parameter{Type: ParamString, S: value}
		}
		return Parameter{Type: ParamFloat, F: float32(f)}
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return Parameter{Type: ParamString, S: value}
	}
	return Parameter{Type: ParamInt, I: v}
}

// isNumber reports whether s starts like a number: a digit, or '-' followed
// by a digit.
func isNumber(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func isFloat(s string) bool {
	return strings.ContainsAny(s, ".eE")
}

// loadAttrs fetches and size-checks the data of every attribute of op.
func loadAttrs(op *Operator, weights WeightSource) error {
	for name, attr := range op.Attrs {
		if weights == nil {
			return errors.Errorf("operator %s: attribute %s declared but no weight source", op.Name, name)
		}
		key := op.Name + "." + name
		data, err := weights(key)
		if err != nil {
			return errors.Wrapf(err, "operator %s: attribute %s", op.Name, name)
		}
		want := ElemSize(attr.Type)
		for _, d := range attr.Shape {
			want *= d
		}
		if len(data) != want {
			return errors.Errorf("operator %s: attribute %s holds %d bytes, shape %v needs %d", op.Name, name, len(data), attr.Shape, want)
		}
		attr.Data = data
		op.Attrs[name] = attr
	}
	return nil
}
