package layer

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/parallel"
)

// Creator builds a layer from an operator's parameters and attributes.
type Creator func(ctx *Context, op *ir.Operator) (ir.Layer, error)

// Context carries execution settings handed to layer constructors.
type Context struct {
	// Parallel controls batch-level parallelism inside heavy kernels. The
	// zero value runs sequentially.
	Parallel parallel.Config
	Logger   *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Registry maps operator type strings to layer constructors.
//
// A Registry is not safe for concurrent Register calls. Once populated it is
// safe for concurrent Create calls.
type Registry struct {
	creators map[string]Creator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{creators: make(map[string]Creator)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry holding the built-in layers.
func Default() *Registry { return defaultRegistry }

// Register adds a constructor to the default registry. It panics if typ is
// already registered.
func Register(typ string, creator Creator) {
	defaultRegistry.Register(typ, creator)
}

// Register adds a constructor for typ. It panics if typ is already
// registered.
func (r *Registry) Register(typ string, creator Creator) {
	if _, dup := r.creators[typ]; dup {
		panic(fmt.Sprintf("layer: duplicate registration of %q", typ))
	}
	r.creators[typ] = creator
}

// Get returns the constructor for typ.
func (r *Registry) Get(typ string) (Creator, bool) {
	c, ok := r.creators[typ]
	return c, ok
}

// Create builds the layer for op.
func (r *Registry) Create(ctx *Context, op *ir.Operator) (ir.Layer, error) {
	if op == nil {
		return nil, fmt.Errorf("layer: create from nil operator")
	}
	creator, ok := r.creators[op.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s (operator %s)", ErrUnknownType, op.Type, op.Name)
	}
	l, err := creator(ctx, op)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("layer: constructor for %s returned no layer", op.Type)
	}
	ctx.logger().Debug("layer created", "operator", op.Name, "type", op.Type)
	return l, nil
}

// MustCreate is like Create but panics on failure. A model that cannot be
// turned into layers is not recoverable at runtime.
func (r *Registry) MustCreate(ctx *Context, op *ir.Operator) ir.Layer {
	l, err := r.Create(ctx, op)
	if err != nil {
		panic(fmt.Sprintf("layer: %v", err))
	}
	return l
}

// Types returns the registered operator types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.creators))
	for typ := range r.creators {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}
