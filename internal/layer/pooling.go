package layer

import (
	"math"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

func init() {
	Register("nn.MaxPool2d", createMaxPool)
	Register("nn.AdaptiveAvgPool2d", createAdaptiveAvgPool)
}

// MaxPool is a 2-D max pooling layer. Padded positions count as
// -math.MaxFloat32 so they never win against real values.
type MaxPool struct {
	Base
	kernelH, kernelW   int
	strideH, strideW   int
	paddingH, paddingW int
}

// NewMaxPool returns a max pooling layer.
func NewMaxPool(name string, kernelH, kernelW, strideH, strideW, paddingH, paddingW int) *MaxPool {
	return &MaxPool{
		Base:     NewBase(name),
		kernelH:  kernelH,
		kernelW:  kernelW,
		strideH:  strideH,
		strideW:  strideW,
		paddingH: paddingH,
		paddingW: paddingW,
	}
}

// Forward pools every batch element. Missing outputs are allocated.
func (m *MaxPool) Forward(inputs, outputs []*tensor.Tensor) error {
	if err := checkBatches(m.Name(), inputs, outputs); err != nil {
		return err
	}
	if m.strideH <= 0 || m.strideW <= 0 {
		return inferErr(m.Name(), InferStrideParameterError, "stride (%d, %d)", m.strideH, m.strideW)
	}
	if m.kernelH <= 0 || m.kernelW <= 0 {
		return inferErr(m.Name(), InferShapeParameterError, "kernel (%d, %d)", m.kernelH, m.kernelW)
	}

	for i, in := range inputs {
		if in.Empty() {
			return inferErr(m.Name(), InferInputEmpty, "batch %d is empty", i)
		}
		h, w := in.Rows(), in.Cols()
		oh := (h+2*m.paddingH-m.kernelH)/m.strideH + 1
		ow := (w+2*m.paddingW-m.kernelW)/m.strideW + 1
		if oh <= 0 || ow <= 0 {
			return inferErr(m.Name(), InferOutputSizeError, "batch %d output size (%d, %d)", i, oh, ow)
		}
		out, err := ensureOutput(m.Name(), outputs, i, in.Channels(), oh, ow)
		if err != nil {
			return err
		}

		for c := 0; c < in.Channels(); c++ {
			src := in.Slice(c)
			dst := out.Slice(c)
			for y := 0; y < oh; y++ {
				for x := 0; x < ow; x++ {
					best := float32(-math.MaxFloat32)
					for ki := 0; ki < m.kernelH; ki++ {
						r := y*m.strideH - m.paddingH + ki
						for kj := 0; kj < m.kernelW; kj++ {
							col := x*m.strideW - m.paddingW + kj
							v := float32(-math.MaxFloat32)
							if r >= 0 && r < h && col >= 0 && col < w {
								v = src[r*w+col]
							}
							if v > best {
								best = v
							}
						}
					}
					dst[y*ow+x] = best
				}
			}
		}
	}
	return nil
}

func createMaxPool(_ *Context, op *ir.Operator) (ir.Layer, error) {
	r := opReader{op: op}
	sh, sw, err := r.pair("stride", ParameterMissingStride)
	if err != nil {
		return nil, err
	}
	ph, pw, err := r.pair("padding", ParameterMissingPadding)
	if err != nil {
		return nil, err
	}
	kh, kw, err := r.pair("kernel_size", ParameterMissingKernel)
	if err != nil {
		return nil, err
	}
	return NewMaxPool(op.Name, kh, kw, sh, sw, ph, pw), nil
}

// AdaptiveAvgPool averages each plane down to a fixed output size. The
// window is derived from the input: stride = in/out, kernel = in-(out-1)*stride.
type AdaptiveAvgPool struct {
	Base
	outputH, outputW int
}

// NewAdaptiveAvgPool returns an adaptive average pooling layer.
func NewAdaptiveAvgPool(name string, outputH, outputW int) *AdaptiveAvgPool {
	return &AdaptiveAvgPool{Base: NewBase(name), outputH: outputH, outputW: outputW}
}

// Forward pools every batch element. Missing outputs are allocated.
func (a *AdaptiveAvgPool) Forward(inputs, outputs []*tensor.Tensor) error {
	if err := checkBatches(a.Name(), inputs, outputs); err != nil {
		return err
	}
	if a.outputH <= 0 || a.outputW <= 0 {
		return inferErr(a.Name(), InferOutputSizeError, "output size (%d, %d)", a.outputH, a.outputW)
	}

	for i, in := range inputs {
		if in.Empty() {
			return inferErr(a.Name(), InferInputEmpty, "batch %d is empty", i)
		}
		h, w := in.Rows(), in.Cols()
		sh, sw := h/a.outputH, w/a.outputW
		if sh <= 0 || sw <= 0 {
			return inferErr(a.Name(), InferOutputSizeError, "batch %d input (%d, %d) smaller than output (%d, %d)",
				i, h, w, a.outputH, a.outputW)
		}
		kh := h - (a.outputH-1)*sh
		kw := w - (a.outputW-1)*sw
		out, err := ensureOutput(a.Name(), outputs, i, in.Channels(), a.outputH, a.outputW)
		if err != nil {
			return err
		}

		scale := 1 / float32(kh*kw)
		for c := 0; c < in.Channels(); c++ {
			src := in.Slice(c)
			dst := out.Slice(c)
			for y := 0; y < a.outputH; y++ {
				for x := 0; x < a.outputW; x++ {
					var sum float32
					for ki := 0; ki < kh; ki++ {
						row := src[(y*sh+ki)*w:]
						for kj := 0; kj < kw; kj++ {
							sum += row[x*sw+kj]
						}
					}
					dst[y*a.outputW+x] = sum * scale
				}
			}
		}
	}
	return nil
}

func createAdaptiveAvgPool(_ *Context, op *ir.Operator) (ir.Layer, error) {
	r := opReader{op: op}
	oh, ow, err := r.pair("output_size", ParameterMissingOutputSize)
	if err != nil {
		return nil, err
	}
	return NewAdaptiveAvgPool(op.Name, oh, ow), nil
}

// checkBatches validates the batch pairing shared by the simple kernels.
func checkBatches(name string, inputs, outputs []*tensor.Tensor) error {
	if len(inputs) == 0 {
		return inferErr(name, InferInputEmpty, "no input tensors")
	}
	if len(inputs) != len(outputs) {
		return inferErr(name, InferInputOutputSizeMismatch, "%d inputs, %d outputs", len(inputs), len(outputs))
	}
	return nil
}

// ensureOutput allocates outputs[i] as (c, h, w) when missing, and otherwise
// checks that it already has that shape.
func ensureOutput(name string, outputs []*tensor.Tensor, i, c, h, w int) (*tensor.Tensor, error) {
	if outputs[i] == nil {
		outputs[i] = tensor.New(c, h, w)
		return outputs[i], nil
	}
	if !outputs[i].Shapes().Equal(tensor.Shape{c, h, w}) {
		return nil, inferErr(name, InferOutputSizeError, "batch %d output shape %v, want [%d %d %d]",
			i, outputs[i].Shapes(), c, h, w)
	}
	return outputs[i], nil
}
