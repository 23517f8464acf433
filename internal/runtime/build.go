package runtime

import (
	"fmt"
	"slices"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/layer"
	"github.com/freeinfer/freeinfer/internal/pnnx"
	"github.com/freeinfer/freeinfer/internal/tensor"
)

// Init loads the model description and builds operator records. On success
// the graph is in state NeedBuild.
func (g *Graph) Init() error {
	if g.paramPath == "" || g.binPath == "" {
		return ErrEmptyPath
	}
	model, err := g.opts.Loader.Load(g.paramPath, g.binPath)
	if err != nil {
		return fmt.Errorf("runtime: load %s: %w", g.paramPath, err)
	}
	if len(model.Operators) == 0 {
		return fmt.Errorf("%w: %s", ErrNoOperators, g.paramPath)
	}

	g.operators = g.operators[:0]
	g.byName = make(map[string]*ir.Operator, len(model.Operators))
	g.topo = nil
	for _, src := range model.Operators {
		op := ir.NewOperator(src.Name, src.Type)
		g.initInputs(op, src)
		g.initOutputNames(op, src)
		g.initParams(op, src)
		g.initAttrs(op, src)
		g.operators = append(g.operators, op)
		g.byName[op.Name] = op
	}
	for _, op := range g.operators {
		for _, name := range op.OutputNames {
			if consumer, ok := g.byName[name]; ok {
				op.OutputOperators[name] = consumer
			}
		}
	}

	g.model = model
	g.state = NeedBuild
	g.opts.Logger.Debug("graph initialized", "param", g.paramPath, "operators", len(g.operators))
	return nil
}

// initInputs records one operand per input, named and keyed by its producer.
// Repeated uses of the same producer share one operand.
func (g *Graph) initInputs(op *ir.Operator, src *pnnx.Operator) {
	for _, in := range src.Inputs {
		if in.Producer == nil {
			continue
		}
		if shared, ok := op.InputMap[in.Producer.Name]; ok {
			op.Inputs = append(op.Inputs, shared)
			continue
		}
		operand := &ir.Operand{
			Name:   in.Producer.Name,
			Type:   g.operandType(op.Name, in),
			Shapes: slices.Clone(in.Shape),
		}
		op.AddInput(in.Producer.Name, operand)
	}
}

func (g *Graph) initOutputNames(op *ir.Operator, src *pnnx.Operator) {
	for _, out := range src.Outputs {
		for _, consumer := range out.Consumers {
			op.OutputNames = append(op.OutputNames, consumer.Name)
		}
	}
}

func (g *Graph) operandType(opName string, o *pnnx.Operand) ir.DataType {
	switch o.Type {
	case pnnx.TypeFloat32:
		return ir.DataTypeFloat32
	case pnnx.TypeNull:
		return ir.DataTypeUnknown
	default:
		g.opts.Logger.Warn("unsupported operand type", "operator", opName, "operand", o.Name, "type", o.Type)
		return ir.DataTypeUnknown
	}
}

func (g *Graph) initParams(op *ir.Operator, src *pnnx.Operator) {
	for name, p := range src.Params {
		var param ir.Parameter
		switch p.Type {
		case pnnx.ParamBool:
			param = ir.BoolParam(p.B)
		case pnnx.ParamInt:
			param = ir.IntParam(p.I)
		case pnnx.ParamFloat:
			param = ir.FloatParam(p.F)
		case pnnx.ParamString:
			param = ir.StringParam(p.S)
		case pnnx.ParamIntArray:
			param = ir.IntsParam(p.AI...)
		case pnnx.ParamFloatArray:
			param = ir.FloatsParam(p.AF...)
		case pnnx.ParamStringArray:
			param = ir.StringsParam(p.AS...)
		default:
			g.opts.Logger.Debug("skipping parameter", "operator", op.Name, "param", name, "type", p.Type)
			continue
		}
		op.Params[name] = param
	}
}

func (g *Graph) initAttrs(op *ir.Operator, src *pnnx.Operator) {
	for name, a := range src.Attrs {
		if a.Type != pnnx.TypeFloat32 {
			g.opts.Logger.Warn("skipping non-f32 attribute", "operator", op.Name, "attr", name, "type", a.Type)
			continue
		}
		op.Attrs[name] = &ir.Attribute{
			Type:   ir.DataTypeFloat32,
			Shape:  slices.Clone(a.Shape),
			Weight: a.Data,
		}
	}
}

// Build prepares the graph for Forward. inputName and outputName name the
// operators that receive the input batch and yield the result.
//
// Build on a complete graph does nothing. A graph that still needs Init is
// initialized first; a failure there panics, as does an operator that cannot
// be turned into a layer or an operand shape the runtime cannot hold.
func (g *Graph) Build(inputName, outputName string) error {
	if g.state == Complete {
		g.opts.Logger.Info("graph already built", "param", g.paramPath)
		return nil
	}
	if g.state == NeedInit {
		if err := g.Init(); err != nil {
			panic(fmt.Sprintf("runtime: init graph: %v", err))
		}
	}

	input, ok := g.byName[inputName]
	if !ok {
		return fmt.Errorf("%w: input %q", ErrUnknownOperator, inputName)
	}
	output, ok := g.byName[outputName]
	if !ok {
		return fmt.Errorf("%w: output %q", ErrUnknownOperator, outputName)
	}

	g.initOperandInputs()
	g.initOperandOutputs()

	ctx := &layer.Context{Parallel: g.opts.Parallel, Logger: g.opts.Logger}
	for _, op := range g.operators {
		if op.Type == ir.TypeInput || op.Type == ir.TypeOutput {
			continue
		}
		l := g.opts.Registry.MustCreate(ctx, op)
		l.Bind(op)
		op.Layer = l
	}

	g.Topo()
	if len(g.topo) != len(g.operators) {
		panic(fmt.Sprintf("runtime: topological order holds %d of %d operators; graph is not connected to its inputs",
			len(g.topo), len(g.operators)))
	}

	g.inputName = input.Name
	g.outputName = output.Name
	g.state = Complete
	g.model = nil
	g.opts.Logger.Info("graph built", "param", g.paramPath, "operators", len(g.operators),
		"input", inputName, "output", outputName)
	return nil
}

// batchOf returns the batch size of an operand shape, panicking on ranks and
// sizes the runtime cannot hold.
func batchOf(op *ir.Operator, operand string, shape []int) int {
	if len(shape) < 2 || len(shape) > 4 {
		panic(fmt.Sprintf("runtime: operator %s operand %s has rank %d (want 2, 3 or 4)", op.Name, operand, len(shape)))
	}
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("runtime: operator %s operand %s has dynamic shape %v", op.Name, operand, shape))
		}
	}
	return shape[0]
}

// initOperandInputs sizes every input operand's batch slots. The tensors
// themselves are filled in by Forward from the producers' outputs.
func (g *Graph) initOperandInputs() {
	for _, op := range g.operators {
		for _, in := range op.Inputs {
			batch := batchOf(op, in.Name, in.Shapes)
			if len(in.Datas) != batch {
				in.Datas = make([]*tensor.Tensor, batch)
			}
		}
	}
}

// initOperandOutputs allocates one tensor per batch element for every
// operator output, named "<operator>_output".
func (g *Graph) initOperandOutputs() {
	produced := make(map[string]*pnnx.Operand)
	if g.model != nil {
		for _, src := range g.model.Operators {
			if len(src.Outputs) > 0 {
				produced[src.Name] = src.Outputs[0]
			}
		}
	}

	for _, op := range g.operators {
		src, ok := produced[op.Name]
		if !ok {
			continue
		}
		shape := src.Shape
		batch := batchOf(op, src.Name, shape)
		operand := op.Output
		if operand == nil || len(operand.Datas) != batch {
			operand = &ir.Operand{Datas: make([]*tensor.Tensor, batch)}
		}
		operand.Name = op.Name + "_output"
		operand.Type = g.operandType(op.Name, src)
		operand.Shapes = slices.Clone(shape)
		for i, t := range operand.Datas {
			operand.Datas[i] = fitOutput(t, shape)
		}
		op.Output = operand
	}
}

// fitOutput returns t reshaped to one batch element of shape, or a new
// tensor when t is missing or holds a different number of elements.
func fitOutput(t *tensor.Tensor, shape []int) *tensor.Tensor {
	c, h, w := 1, 1, shape[len(shape)-1]
	switch len(shape) {
	case 4:
		c, h = shape[1], shape[2]
	case 3:
		h = shape[1]
	}
	if t == nil || t.Size() != c*h*w {
		return tensor.New(c, h, w)
	}
	if raw := tensor.Collapse(c, h, w); !t.RawShapes().Equal(raw) {
		if err := t.Reshape(raw, true); err != nil {
			panic(fmt.Sprintf("runtime: reshape output to %v: %v", raw, err))
		}
	}
	return t
}

// Topo computes the execution order: a depth-first post-order walk started
// from every operator not yet reached, in declaration order, then reversed.
// An operator is marked visited before its consumers are walked.
func (g *Graph) Topo() []*ir.Operator {
	for _, op := range g.operators {
		op.Visited = false
	}
	order := make([]*ir.Operator, 0, len(g.operators))
	var visit func(op *ir.Operator)
	visit = func(op *ir.Operator) {
		op.Visited = true
		for _, name := range op.OutputNames {
			next, ok := op.OutputOperators[name]
			if ok && !next.Visited {
				visit(next)
			}
		}
		order = append(order, op)
	}
	for _, op := range g.operators {
		if !op.Visited {
			visit(op)
		}
	}
	slices.Reverse(order)
	g.topo = order
	return order
}
