// Package runtime turns a loaded model description into an executable
// graph of layers and runs it.
//
// A Graph moves through three states. Init loads the description and builds
// the operator and operand records. Build allocates operand storage, creates
// a layer for every operator through the registry and computes the execution
// order. Forward then runs the operators in that order.
package runtime

import (
	"errors"
	"log/slog"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/layer"
	"github.com/freeinfer/freeinfer/internal/parallel"
	"github.com/freeinfer/freeinfer/internal/pnnx"
)

// State is the build state of a Graph.
type State int

// Graph states, in the order a graph moves through them.
const (
	NeedInit State = iota - 2
	NeedBuild
	Complete
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NeedInit:
		return "need-init"
	case NeedBuild:
		return "need-build"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Common errors.
var (
	ErrEmptyPath       = errors.New("runtime: param or bin path is empty")
	ErrNoOperators     = errors.New("runtime: model has no operators")
	ErrNotBuilt        = errors.New("runtime: graph is not built")
	ErrUnknownOperator = errors.New("runtime: operator not found")
	ErrBatchMismatch   = errors.New("runtime: input batch does not match the model")
)

// Loader reads a model description from disk.
type Loader interface {
	Load(paramPath, binPath string) (*pnnx.Graph, error)
}

// Options configures a Graph.
type Options struct {
	// Logger receives build diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Registry resolves operator types to layers. Defaults to layer.Default().
	Registry *layer.Registry

	// Loader reads model files. Defaults to pnnx.FileLoader.
	Loader Loader

	// Parallel is handed to layers that can split work across goroutines.
	// The zero value runs sequentially.
	Parallel parallel.Config
}

// DefaultOptions returns the default graph options.
func DefaultOptions() Options {
	return Options{
		Logger:   slog.Default(),
		Registry: layer.Default(),
		Loader:   pnnx.FileLoader{},
	}
}

// Graph is an executable computation graph.
type Graph struct {
	paramPath string
	binPath   string
	opts      Options

	state      State
	inputName  string
	outputName string

	operators []*ir.Operator
	byName    map[string]*ir.Operator
	topo      []*ir.Operator

	// model is the loaded description, kept from Init until Build.
	model *pnnx.Graph
}

// New returns a graph for the model at paramPath and binPath. Nothing is read
// until Init or Build.
func New(paramPath, binPath string, opts ...Options) *Graph {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
		def := DefaultOptions()
		if opt.Logger == nil {
			opt.Logger = def.Logger
		}
		if opt.Registry == nil {
			opt.Registry = def.Registry
		}
		if opt.Loader == nil {
			opt.Loader = def.Loader
		}
	}
	return &Graph{
		paramPath: paramPath,
		binPath:   binPath,
		opts:      opt,
		state:     NeedInit,
	}
}

// State returns the build state.
func (g *Graph) State() State { return g.state }

// ParamPath returns the path of the model description.
func (g *Graph) ParamPath() string { return g.paramPath }

// BinPath returns the path of the weight archive.
func (g *Graph) BinPath() string { return g.binPath }

// SetParamPath changes the model description path used by the next Init.
func (g *Graph) SetParamPath(path string) { g.paramPath = path }

// SetBinPath changes the weight archive path used by the next Init.
func (g *Graph) SetBinPath(path string) { g.binPath = path }

// InputName returns the name of the input operator given to Build.
func (g *Graph) InputName() string { return g.inputName }

// OutputName returns the name of the output operator given to Build.
func (g *Graph) OutputName() string { return g.outputName }

// Operators returns the operators in declaration order.
func (g *Graph) Operators() []*ir.Operator { return g.operators }

// TopoQueue returns the execution order computed by Build.
func (g *Graph) TopoQueue() []*ir.Operator { return g.topo }

// Operator returns the named operator.
func (g *Graph) Operator(name string) (*ir.Operator, bool) {
	op, ok := g.byName[name]
	return op, ok
}
