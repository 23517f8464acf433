// Package pnnx reads models in the PNNX format: a ".param" text file
// describing operators and the operands between them, plus a ".bin" zip
// archive holding the raw weights.
//
// The records produced here mirror the file closely. Type tags are the
// format's own integers; conversion into runtime types happens in the
// graph builder.
package pnnx

// Parameter kinds, as stored in Parameter.Type.
const (
	ParamNull        = 0
	ParamBool        = 1
	ParamInt         = 2
	ParamFloat       = 3
	ParamString      = 4
	ParamIntArray    = 5
	ParamFloatArray  = 6
	ParamStringArray = 7
)

// Element types of operands and attributes.
const (
	TypeNull    = 0
	TypeFloat32 = 1
	TypeFloat64 = 2
	TypeFloat16 = 3
	TypeInt32   = 4
	TypeInt64   = 5
	TypeInt16   = 6
	TypeInt8    = 7
	TypeUint8   = 8
	TypeBool    = 9
)

// Graph is a parsed model description.
type Graph struct {
	Operators []*Operator
	Operands  []*Operand
}

// Operator is one line of a .param file.
type Operator struct {
	Type    string
	Name    string
	Inputs  []*Operand
	Outputs []*Operand

	// InputNames holds the operand names in declaration order.
	InputNames []string
	Params     map[string]Parameter
	Attrs      map[string]Attribute
}

// Operand is a named edge. Producer writes it, Consumers read it.
type Operand struct {
	Name      string
	Producer  *Operator
	Consumers []*Operator
	Type      int
	Shape     []int // -1 marks a dynamic axis
}

// Parameter is a decoded key=value pair.
type Parameter struct {
	Type int
	B    bool
	I    int
	F    float32
	S    string
	AI   []int
	AF   []float32
	AS   []string
}

// Attribute is a weight blob declared with @name=(shape)type.
type Attribute struct {
	Type  int
	Shape []int
	Data  []byte
}

// Operand returns the operand with the given name.
func (g *Graph) Operand(name string) (*Operand, bool) {
	for _, o := range g.Operands {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}

// typeNames maps the format's element type suffixes to tags.
var typeNames = map[string]int{
	"f32":  TypeFloat32,
	"f64":  TypeFloat64,
	"f16":  TypeFloat16,
	"i32":  TypeInt32,
	"i64":  TypeInt64,
	"i16":  TypeInt16,
	"i8":   TypeInt8,
	"u8":   TypeUint8,
	"bool": TypeBool,
}

// ElemSize returns the byte size of one element of type tag t, or 0.
func ElemSize(t int) int {
	switch t {
	case TypeFloat32, TypeInt32:
		return 4
	case TypeFloat64, TypeInt64:
		return 8
	case TypeFloat16, TypeInt16:
		return 2
	case TypeInt8, TypeUint8, TypeBool:
		return 1
	default:
		return 0
	}
}
