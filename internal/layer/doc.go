// Package layer implements the executable operator kernels of the runtime
// and the registry that builds them from graph operators.
//
// Each kernel file registers its constructors with the default registry at
// init time, keyed by the operator type string found in model descriptions
// ("nn.Conv2d", "nn.ReLU", ...). Construction reads the operator's parameters
// and weight attributes; failures are reported as *ParseError wrapping a
// ParseStatus. Forward failures are reported as *InferError wrapping an
// InferStatus.
package layer
