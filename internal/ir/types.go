package ir

import "fmt"

// DataType is the element type tag of an operand or attribute, using the
// loader's numbering.
type DataType int

// Element types.
const (
	DataTypeUnknown DataType = iota
	DataTypeFloat32
	DataTypeFloat64
	DataTypeFloat16
	DataTypeInt32
	DataTypeInt64
	DataTypeInt16
	DataTypeInt8
	DataTypeUint8
	DataTypeBool
)

var dataTypeNames = [...]string{
	DataTypeUnknown: "unknown",
	DataTypeFloat32: "f32",
	DataTypeFloat64: "f64",
	DataTypeFloat16: "f16",
	DataTypeInt32:   "i32",
	DataTypeInt64:   "i64",
	DataTypeInt16:   "i16",
	DataTypeInt8:    "i8",
	DataTypeUint8:   "u8",
	DataTypeBool:    "bool",
}

// String returns the short type name used in model descriptions.
func (d DataType) String() string {
	if d >= 0 && int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// Size returns the element size in bytes, or 0 for unknown types.
func (d DataType) Size() int {
	switch d {
	case DataTypeFloat32, DataTypeInt32:
		return 4
	case DataTypeFloat64, DataTypeInt64:
		return 8
	case DataTypeFloat16, DataTypeInt16:
		return 2
	case DataTypeInt8, DataTypeUint8, DataTypeBool:
		return 1
	default:
		return 0
	}
}

// ParseDataType maps a short type name ("f32", "i64", ...) to its tag.
func ParseDataType(name string) (DataType, bool) {
	for i, n := range dataTypeNames {
		if i > 0 && n == name {
			return DataType(i), true
		}
	}
	return DataTypeUnknown, false
}

// ParameterType is the discriminant of a Parameter value.
type ParameterType int

// Parameter kinds.
const (
	ParameterUnknown ParameterType = iota
	ParameterBool
	ParameterInt
	ParameterFloat
	ParameterString
	ParameterIntArray
	ParameterFloatArray
	ParameterStringArray
)

// Valid reports whether t is one of the supported parameter kinds.
func (t ParameterType) Valid() bool {
	return t >= ParameterBool && t <= ParameterStringArray
}
