// Package main provides the freeinfer CLI.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/freeinfer/freeinfer/internal/pnnx"
	"github.com/freeinfer/freeinfer/layer"
	"github.com/freeinfer/freeinfer/runtime"
	"github.com/freeinfer/freeinfer/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("freeinfer %s\n", version)
	case "layers":
		for _, typ := range layer.Types() {
			fmt.Println(typ)
		}
	case "inspect":
		err = inspect(os.Args[2:])
	case "run":
		err = run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("freeinfer - PNNX inference runtime")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  layers     List supported operator types")
	fmt.Println("  inspect    Print the operators of a model")
	fmt.Println("  run        Run a model on a constant input")
}

func inspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	param := fs.String("param", "", "path to the .param file")
	bin := fs.String("bin", "", "path to the .bin file")
	_ = fs.Parse(args)

	g, err := pnnx.Load(*param, *bin)
	if err != nil {
		return err
	}

	supported := make(map[string]bool)
	for _, typ := range layer.Types() {
		supported[typ] = true
	}
	for _, op := range g.Operators {
		mark := " "
		if !supported[op.Type] && op.Type != "pnnx.Input" && op.Type != "pnnx.Output" {
			mark = "!"
		}
		fmt.Printf("%s %-24s %-20s in=%s out=%s\n", mark, op.Type, op.Name,
			operandList(op.Inputs), operandList(op.Outputs))
	}
	fmt.Printf("%d operators, %d operands\n", len(g.Operators), len(g.Operands))
	return nil
}

func operandList(operands []*pnnx.Operand) string {
	parts := make([]string, len(operands))
	for i, o := range operands {
		parts[i] = fmt.Sprintf("%s%v", o.Name, o.Shape)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	param := fs.String("param", "", "path to the .param file")
	bin := fs.String("bin", "", "path to the .bin file")
	input := fs.String("input", "pnnx_input_0", "name of the input operator")
	output := fs.String("output", "pnnx_output_0", "name of the output operator")
	batch := fs.Int("batch", 0, "batch size, 0 uses the model's")
	fill := fs.Float64("fill", 1, "value every input element is set to")
	top := fs.Int("top", 5, "number of largest outputs to print per batch")
	workers := fs.Int("workers", 0, "worker goroutines, 0 runs sequentially")
	verbose := fs.Bool("v", false, "log build steps")
	_ = fs.Parse(args)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := runtime.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if *workers > 0 {
		opts.Parallel.Enabled = true
		opts.Parallel.NumWorkers = *workers
		opts.Parallel.MinChunkSize = 1
	}

	g := runtime.New(*param, *bin, opts)
	if err := g.Init(); err != nil {
		return err
	}
	if err := g.Build(*input, *output); err != nil {
		return err
	}

	in, ok := g.Operator(*input)
	if !ok || in.Output == nil {
		return fmt.Errorf("input %q has no output operand", *input)
	}
	shape := in.Output.Shapes
	if *batch <= 0 {
		*batch = shape[0]
	}
	inputs := make([]*tensor.Tensor, *batch)
	for i := range inputs {
		x, err := newInput(shape)
		if err != nil {
			return err
		}
		x.FillValue(float32(*fill))
		inputs[i] = x
	}

	outputs, err := g.Forward(inputs)
	if err != nil {
		return err
	}
	for b, out := range outputs {
		fmt.Printf("batch %d: shape %v\n", b, out.RawShapes())
		for _, e := range largest(out.Values(true), *top) {
			fmt.Printf("  [%d] %.6f\n", e.index, e.value)
		}
	}
	return nil
}

// newInput allocates one batch element for an operand shape whose first
// axis is the batch.
func newInput(shape []int) (*tensor.Tensor, error) {
	switch len(shape) {
	case 4:
		return tensor.New(shape[1], shape[2], shape[3]), nil
	case 3:
		return tensor.New(1, shape[1], shape[2]), nil
	case 2:
		return tensor.New1D(shape[1]), nil
	default:
		return nil, fmt.Errorf("unsupported input shape %v", shape)
	}
}

type entry struct {
	index int
	value float32
}

func largest(values []float32, n int) []entry {
	entries := make([]entry, len(values))
	for i, v := range values {
		entries[i] = entry{i, v}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].value > entries[j].value })
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries
}
