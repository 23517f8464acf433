// Package ir holds the runtime graph data model: operators, the operands that
// connect them, and the parameters and weight attributes loaded for each
// operator.
//
// The types here are plain data. Graph construction and scheduling live in
// internal/runtime, kernels in internal/layer.
package ir
