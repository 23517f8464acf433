package layer

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/parallel"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

func init() {
	Register("nn.Conv2d", createConvolution)
}

// ConvolutionConfig describes a grouped 2-D convolution.
type ConvolutionConfig struct {
	OutChannels int
	InChannels  int // total input channels; every kernel spans InChannels/Groups
	KernelH     int
	KernelW     int
	PaddingH    int
	PaddingW    int
	StrideH     int
	StrideW     int
	Groups      int
	UseBias     bool
}

// Convolution is a grouped 2-D convolution with zero padding, computed as
// im2col followed by one GEMM per group.
type Convolution struct {
	Base
	cfg ConvolutionConfig

	kernels []*tensor.Tensor // out tensors of (in/groups, kh, kw)
	bias    []float32

	// kernelMatrix holds, per group, the (out/groups) x (in/groups*kh*kw)
	// row-major matrix of flattened kernels, groups back to back.
	kernelMatrix []float32

	parallel parallel.Config
}

// NewConvolution returns a convolution layer without weights.
func NewConvolution(name string, cfg ConvolutionConfig) *Convolution {
	if cfg.Groups <= 0 {
		cfg.Groups = 1
	}
	return &Convolution{Base: NewBase(name), cfg: cfg}
}

// Config returns the layer configuration.
func (c *Convolution) Config() ConvolutionConfig { return c.cfg }

// kernelSize is the length of one flattened kernel.
func (c *Convolution) kernelSize() int {
	return c.cfg.InChannels / c.cfg.Groups * c.cfg.KernelH * c.cfg.KernelW
}

// SetWeights installs the kernels, laid out [out, in/groups, kh, kw]
// row-major, and precomputes the per-group kernel matrices.
func (c *Convolution) SetWeights(values []float32) error {
	want := c.cfg.OutChannels * c.kernelSize()
	if want == 0 || len(values) != want {
		return inferErr(c.Name(), InferWeightParameterError, "got %d weight values, want %d", len(values), want)
	}
	k := c.kernelSize()
	c.kernels = make([]*tensor.Tensor, c.cfg.OutChannels)
	for i := range c.kernels {
		kernel := tensor.New(c.cfg.InChannels/c.cfg.Groups, c.cfg.KernelH, c.cfg.KernelW)
		kernel.Fill(values[i*k:(i+1)*k], true)
		c.kernels[i] = kernel
	}
	c.initKernelMatrix()
	return nil
}

// Kernels returns the installed kernels, one (in/groups, kh, kw) tensor per
// output channel.
func (c *Convolution) Kernels() []*tensor.Tensor { return c.kernels }

// SetBias installs one bias value per output channel.
func (c *Convolution) SetBias(values []float32) error {
	if len(values) != c.cfg.OutChannels {
		return inferErr(c.Name(), InferBiasParameterError, "got %d bias values, want %d", len(values), c.cfg.OutChannels)
	}
	c.bias = append(c.bias[:0], values...)
	return nil
}

// initKernelMatrix flattens every kernel into one row of its group's matrix.
// Kernels of group g occupy rows [g*kpg, (g+1)*kpg).
func (c *Convolution) initKernelMatrix() {
	k := c.kernelSize()
	c.kernelMatrix = make([]float32, len(c.kernels)*k)
	for i, kernel := range c.kernels {
		if kernel.Size() != k {
			panic(fmt.Sprintf("conv2d: kernel %d has %d elements, want %d", i, kernel.Size(), k))
		}
		copy(c.kernelMatrix[i*k:(i+1)*k], kernel.Values(true))
	}
}

func (c *Convolution) outputSize(h, w int) (int, int) {
	oh := (h+2*c.cfg.PaddingH-c.cfg.KernelH)/c.cfg.StrideH + 1
	ow := (w+2*c.cfg.PaddingW-c.cfg.KernelW)/c.cfg.StrideW + 1
	return oh, ow
}

// Forward convolves every batch element of inputs into outputs. Missing
// output tensors are allocated.
func (c *Convolution) Forward(inputs, outputs []*tensor.Tensor) error {
	if len(inputs) == 0 {
		return inferErr(c.Name(), InferInputEmpty, "no input tensors")
	}
	if len(inputs) != len(outputs) {
		return inferErr(c.Name(), InferInputOutputSizeMismatch, "%d inputs, %d outputs", len(inputs), len(outputs))
	}
	if len(c.kernelMatrix) == 0 {
		return inferErr(c.Name(), InferWeightParameterError, "no kernels configured")
	}
	if c.cfg.UseBias && len(c.bias) != c.cfg.OutChannels {
		return inferErr(c.Name(), InferBiasParameterError, "%d bias values for %d kernels", len(c.bias), c.cfg.OutChannels)
	}
	if c.cfg.StrideH <= 0 || c.cfg.StrideW <= 0 {
		return inferErr(c.Name(), InferStrideParameterError, "stride (%d, %d)", c.cfg.StrideH, c.cfg.StrideW)
	}
	if c.cfg.OutChannels%c.cfg.Groups != 0 {
		return inferErr(c.Name(), InferChannelParameterError, "%d kernels not divisible by %d groups", c.cfg.OutChannels, c.cfg.Groups)
	}

	for i, in := range inputs {
		if in.Empty() {
			return inferErr(c.Name(), InferInputEmpty, "batch %d is empty", i)
		}
		if in.Channels()%c.cfg.Groups != 0 || in.Channels() != c.cfg.InChannels {
			return inferErr(c.Name(), InferChannelParameterError,
				"batch %d has %d channels, want %d in %d groups", i, in.Channels(), c.cfg.InChannels, c.cfg.Groups)
		}
		oh, ow := c.outputSize(in.Rows(), in.Cols())
		if oh <= 0 || ow <= 0 {
			return inferErr(c.Name(), InferOutputSizeError, "batch %d output size (%d, %d)", i, oh, ow)
		}
		if outputs[i] == nil {
			outputs[i] = tensor.New(c.cfg.OutChannels, oh, ow)
		}
		if !outputs[i].Shapes().Equal(tensor.Shape{c.cfg.OutChannels, oh, ow}) {
			return inferErr(c.Name(), InferOutputSizeError, "batch %d output shape %v, want [%d %d %d]",
				i, outputs[i].Shapes(), c.cfg.OutChannels, oh, ow)
		}
	}

	parallel.ForBatch(len(inputs), c.cfg.Groups, func(b, g int) {
		c.convolveGroup(inputs[b], outputs[b], g)
	}, c.parallel)
	return nil
}

// convolveGroup computes the output planes of group g for one batch element.
// out must already have shape (OutChannels, oh, ow).
func (c *Convolution) convolveGroup(in, out *tensor.Tensor, g int) {
	cpg := in.Channels() / c.cfg.Groups
	kpg := c.cfg.OutChannels / c.cfg.Groups
	k := c.kernelSize()
	n := out.PlaneSize()

	col := make([]float32, k*n)
	c.im2col(col, in, g*cpg, cpg, out.Rows(), out.Cols())

	kernels := blas32.General{Rows: kpg, Cols: k, Stride: k, Data: c.kernelMatrix[g*kpg*k : (g+1)*kpg*k]}
	cols := blas32.General{Rows: k, Cols: n, Stride: n, Data: col}
	dst := blas32.General{Rows: kpg, Cols: n, Stride: n, Data: out.Data()[g*kpg*n : (g+1)*kpg*n]}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, kernels, cols, 0, dst)

	if c.cfg.UseBias {
		for r := 0; r < kpg; r++ {
			b := c.bias[g*kpg+r]
			row := dst.Data[r*n : (r+1)*n]
			for j := range row {
				row[j] += b
			}
		}
	}
}

// im2col writes the (cpg*kh*kw) x (oh*ow) patch matrix of channels
// [start, start+cpg) of in into col. Positions that fall in the padding read
// as zero.
func (c *Convolution) im2col(col []float32, in *tensor.Tensor, start, cpg, oh, ow int) {
	kh, kw := c.cfg.KernelH, c.cfg.KernelW
	h, w := in.Rows(), in.Cols()
	n := oh * ow

	for ic := 0; ic < cpg; ic++ {
		plane := in.Slice(start + ic)
		for ki := 0; ki < kh; ki++ {
			for kj := 0; kj < kw; kj++ {
				row := col[((ic*kh+ki)*kw+kj)*n:][:n]
				for y := 0; y < oh; y++ {
					r := y*c.cfg.StrideH - c.cfg.PaddingH + ki
					for x := 0; x < ow; x++ {
						cc := x*c.cfg.StrideW - c.cfg.PaddingW + kj
						if r >= 0 && r < h && cc >= 0 && cc < w {
							row[y*ow+x] = plane[r*w+cc]
						} else {
							row[y*ow+x] = 0
						}
					}
				}
			}
		}
	}
}

func createConvolution(ctx *Context, op *ir.Operator) (ir.Layer, error) {
	r := opReader{op: op}

	dh, dw, err := r.pair("dilation", ParameterMissingDilation)
	if err != nil {
		return nil, err
	}
	if dh != 1 || dw != 1 {
		return nil, r.fail(ParameterMissingDilation, "dilation (%d, %d) is not supported", dh, dw)
	}
	in, err := r.int("in_channels", ParameterMissingInChannels)
	if err != nil {
		return nil, err
	}
	out, err := r.int("out_channels", ParameterMissingOutChannels)
	if err != nil {
		return nil, err
	}
	ph, pw, err := r.pair("padding", ParameterMissingPadding)
	if err != nil {
		return nil, err
	}
	useBias, err := r.bool("bias", ParameterMissingUseBias)
	if err != nil {
		return nil, err
	}
	sh, sw, err := r.pair("stride", ParameterMissingStride)
	if err != nil {
		return nil, err
	}
	kh, kw, err := r.pair("kernel_size", ParameterMissingKernel)
	if err != nil {
		return nil, err
	}
	mode, err := r.str("padding_mode", ParameterMissingPaddingMode)
	if err != nil {
		return nil, err
	}
	if mode != "zeros" {
		return nil, r.fail(ParameterMissingPaddingMode, "padding mode %q is not supported", mode)
	}
	groups, err := r.int("groups", ParameterMissingGroups)
	if err != nil {
		return nil, err
	}
	if groups <= 0 || in%groups != 0 || out%groups != 0 {
		return nil, r.fail(ParameterMissingGroups, "%d groups for %d input and %d output channels", groups, in, out)
	}

	conv := NewConvolution(op.Name, ConvolutionConfig{
		OutChannels: out,
		InChannels:  in,
		KernelH:     kh,
		KernelW:     kw,
		PaddingH:    ph,
		PaddingW:    pw,
		StrideH:     sh,
		StrideW:     sw,
		Groups:      groups,
		UseBias:     useBias,
	})
	if ctx != nil {
		conv.parallel = ctx.Parallel
	}

	if useBias {
		bias, err := r.floats("bias", AttrMissingBias, AttrBiasShapeWrong, out)
		if err != nil {
			return nil, err
		}
		if err := conv.SetBias(bias); err != nil {
			return nil, r.fail(AttrBiasShapeWrong, "%v", err)
		}
	}

	weights, err := r.floats("weight", AttrMissingWeight, AttrWeightShapeWrong, out*conv.kernelSize())
	if err != nil {
		return nil, err
	}
	if err := conv.SetWeights(weights); err != nil {
		return nil, r.fail(AttrWeightShapeWrong, "%v", err)
	}
	return conv, nil
}
