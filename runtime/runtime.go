// Copyright 2026 freeinfer authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package runtime loads PNNX models and runs them forward.
//
// # Example Usage
//
//	g := runtime.New("resnet18.pnnx.param", "resnet18.pnnx.bin")
//	if err := g.Build("pnnx_input_0", "pnnx_output_0"); err != nil {
//	    log.Fatal(err)
//	}
//
//	input := tensor.New(3, 224, 224)
//	outputs, err := g.Forward([]*tensor.Tensor{input})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Build panics when the model cannot be loaded or contains an operator with
// no registered layer. Call Init first to get the load error instead.
package runtime

import (
	"github.com/freeinfer/freeinfer/internal/runtime"
)

// Graph is an executable computation graph.
type Graph = runtime.Graph

// State is the build state of a Graph.
type State = runtime.State

// Graph states.
const (
	NeedInit  = runtime.NeedInit
	NeedBuild = runtime.NeedBuild
	Complete  = runtime.Complete
)

// Options configures a Graph.
type Options = runtime.Options

// Loader reads a model description from disk.
type Loader = runtime.Loader

// Errors returned by Init, Build and Forward.
var (
	ErrEmptyPath       = runtime.ErrEmptyPath
	ErrNoOperators     = runtime.ErrNoOperators
	ErrNotBuilt        = runtime.ErrNotBuilt
	ErrUnknownOperator = runtime.ErrUnknownOperator
	ErrBatchMismatch   = runtime.ErrBatchMismatch
)

// DefaultOptions returns the default graph options.
//
// Default configuration:
//   - Logger: slog.Default()
//   - Registry: the built-in layers
//   - Loader: PNNX files on disk
//   - Parallel: disabled
func DefaultOptions() Options {
	return runtime.DefaultOptions()
}

// New returns a graph for the model at paramPath and binPath.
func New(paramPath, binPath string, opts ...Options) *Graph {
	return runtime.New(paramPath, binPath, opts...)
}
