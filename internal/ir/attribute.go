package ir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrWeightLength is returned when a weight buffer does not hold a whole
// number of elements.
var ErrWeightLength = errors.New("ir: weight buffer length is not a multiple of the element size")

// Attribute is a weight blob attached to an operator, such as a convolution
// kernel or a bias vector.
type Attribute struct {
	Type   DataType
	Shape  []int
	Weight []byte
}

// NumElements returns the product of Shape.
func (a *Attribute) NumElements() int {
	if len(a.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Float32s decodes Weight as little-endian float32 values.
func (a *Attribute) Float32s() ([]float32, error) {
	if a.Type != DataTypeFloat32 {
		return nil, fmt.Errorf("ir: attribute type %s is not f32", a.Type)
	}
	if len(a.Weight)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrWeightLength, len(a.Weight))
	}
	values := make([]float32, len(a.Weight)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(a.Weight[i*4:]))
	}
	return values, nil
}

// Release drops the raw bytes once they have been decoded into a layer.
func (a *Attribute) Release() {
	a.Weight = nil
}

// Float32Attribute encodes values as an f32 attribute of the given shape.
func Float32Attribute(shape []int, values []float32) *Attribute {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return &Attribute{Type: DataTypeFloat32, Shape: shape, Weight: buf}
}
