// Copyright 2026 freeinfer authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layer exposes the layer registry of the freeinfer runtime.
//
// Custom operators are added by registering a constructor under the operator
// type string used in the model description:
//
//	reg := layer.NewRegistry()
//	reg.Register("custom.Scale", func(ctx *layer.Context, op *layer.Operator) (layer.Layer, error) {
//	    return newScale(op)
//	})
//	g := runtime.New(param, bin, runtime.Options{Registry: reg})
package layer

import (
	"github.com/freeinfer/freeinfer/internal/ir"
	"github.com/freeinfer/freeinfer/internal/layer"
)

// Layer is the executable form of an operator.
type Layer = ir.Layer

// Operator is a graph node handed to layer constructors.
type Operator = ir.Operator

// Base provides the name, operator binding and Run method shared by layers.
type Base = layer.Base

// Registry maps operator types to constructors.
type Registry = layer.Registry

// Creator builds a layer from an operator.
type Creator = layer.Creator

// Context carries execution settings handed to constructors.
type Context = layer.Context

// ParseError reports why an operator could not be turned into a layer.
type ParseError = layer.ParseError

// InferError reports a failed forward pass.
type InferError = layer.InferError

// ParseStatus and InferStatus classify failures. Both implement error and
// can be matched with errors.Is.
type (
	ParseStatus = layer.ParseStatus
	InferStatus = layer.InferStatus
)

// ErrUnknownType is returned for an unregistered operator type.
var ErrUnknownType = layer.ErrUnknownType

// NewBase returns a Base for the named layer.
func NewBase(name string) Base {
	return layer.NewBase(name)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return layer.NewRegistry()
}

// Default returns the registry holding the built-in layers.
func Default() *Registry {
	return layer.Default()
}

// Types returns the operator types of the built-in layers.
func Types() []string {
	return layer.Default().Types()
}
