package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Parameter is a scalar or array operator parameter. Only the field that
// matches Type is meaningful.
type Parameter struct {
	Type ParameterType

	b  bool
	i  int
	f  float32
	s  string
	is []int
	fs []float32
	ss []string
}

// BoolParam returns a bool parameter.
func BoolParam(v bool) Parameter { return Parameter{Type: ParameterBool, b: v} }

// IntParam returns an int parameter.
func IntParam(v int) Parameter { return Parameter{Type: ParameterInt, i: v} }

// FloatParam returns a float parameter.
func FloatParam(v float32) Parameter { return Parameter{Type: ParameterFloat, f: v} }

// StringParam returns a string parameter.
func StringParam(v string) Parameter { return Parameter{Type: ParameterString, s: v} }

// IntsParam returns an int array parameter.
func IntsParam(v ...int) Parameter { return Parameter{Type: ParameterIntArray, is: v} }

// FloatsParam returns a float array parameter.
func FloatsParam(v ...float32) Parameter { return Parameter{Type: ParameterFloatArray, fs: v} }

// StringsParam returns a string array parameter.
func StringsParam(v ...string) Parameter { return Parameter{Type: ParameterStringArray, ss: v} }

// Bool returns the value of a bool parameter.
func (p Parameter) Bool() (bool, bool) { return p.b, p.Type == ParameterBool }

// Int returns the value of an int parameter.
func (p Parameter) Int() (int, bool) { return p.i, p.Type == ParameterInt }

// Float returns the value of a float parameter.
func (p Parameter) Float() (float32, bool) { return p.f, p.Type == ParameterFloat }

// Str returns the value of a string parameter.
func (p Parameter) Str() (string, bool) { return p.s, p.Type == ParameterString }

// Ints returns the value of an int array parameter.
func (p Parameter) Ints() ([]int, bool) { return p.is, p.Type == ParameterIntArray }

// Floats returns the value of a float array parameter.
func (p Parameter) Floats() ([]float32, bool) { return p.fs, p.Type == ParameterFloatArray }

// Strings returns the value of a string array parameter.
func (p Parameter) Strings() ([]string, bool) { return p.ss, p.Type == ParameterStringArray }

// String renders the parameter in model-description syntax.
func (p Parameter) String() string {
	switch p.Type {
	case ParameterBool:
		if p.b {
			return "True"
		}
		return "False"
	case ParameterInt:
		return strconv.Itoa(p.i)
	case ParameterFloat:
		return strconv.FormatFloat(float64(p.f), 'e', -1, 32)
	case ParameterString:
		return p.s
	case ParameterIntArray:
		parts := make([]string, len(p.is))
		for i, v := range p.is {
			parts[i] = strconv.Itoa(v)
		}
		return "(" + strings.Join(parts, ",") + ")"
	case ParameterFloatArray:
		parts := make([]string, len(p.fs))
		for i, v := range p.fs {
			parts[i] = strconv.FormatFloat(float64(v), 'e', -1, 32)
		}
		return "(" + strings.Join(parts, ",") + ")"
	case ParameterStringArray:
		return "(" + strings.Join(p.ss, ",") + ")"
	default:
		return fmt.Sprintf("Parameter(%d)", int(p.Type))
	}
}
