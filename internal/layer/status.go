package layer

import (
	"errors"
	"fmt"
)

// ErrUnknownType is returned by Registry.Create for an unregistered operator type.
var ErrUnknownType = errors.New("layer: unknown operator type")

// ParseStatus classifies a failure to construct a layer from an operator's
// parameters and attributes. Every status except ParseSuccess is an error.
type ParseStatus int

// Construction failures.
const (
	ParseSuccess ParseStatus = iota
	ParameterMissingDilation
	ParameterMissingInChannels
	ParameterMissingOutChannels
	ParameterMissingPadding
	ParameterMissingUseBias
	ParameterMissingStride
	ParameterMissingKernel
	ParameterMissingPaddingMode
	ParameterMissingGroups
	ParameterMissingInFeatures
	ParameterMissingOutFeatures
	ParameterMissingStartDim
	ParameterMissingEndDim
	ParameterMissingOutputSize
	ParameterMissingExpr
	AttrMissingWeight
	AttrMissingBias
	AttrWeightShapeWrong
	AttrBiasShapeWrong
)

var parseStatusText = map[ParseStatus]string{
	ParseSuccess:                "success",
	ParameterMissingDilation:    "missing or bad dilation parameter",
	ParameterMissingInChannels:  "missing or bad in_channels parameter",
	ParameterMissingOutChannels: "missing or bad out_channels parameter",
	ParameterMissingPadding:     "missing or bad padding parameter",
	ParameterMissingUseBias:     "missing or bad bias parameter",
	ParameterMissingStride:      "missing or bad stride parameter",
	ParameterMissingKernel:      "missing or bad kernel_size parameter",
	ParameterMissingPaddingMode: "missing or bad padding_mode parameter",
	ParameterMissingGroups:      "missing or bad groups parameter",
	ParameterMissingInFeatures:  "missing or bad in_features parameter",
	ParameterMissingOutFeatures: "missing or bad out_features parameter",
	ParameterMissingStartDim:    "missing or bad start_dim parameter",
	ParameterMissingEndDim:      "missing or bad end_dim parameter",
	ParameterMissingOutputSize:  "missing or bad output_size parameter",
	ParameterMissingExpr:        "missing or bad expr parameter",
	AttrMissingWeight:           "missing weight attribute",
	AttrMissingBias:             "missing bias attribute",
	AttrWeightShapeWrong:        "weight attribute has the wrong shape",
	AttrBiasShapeWrong:          "bias attribute has the wrong shape",
}

// Error implements the error interface.
func (s ParseStatus) Error() string {
	if text, ok := parseStatusText[s]; ok {
		return "layer: " + text
	}
	return fmt.Sprintf("layer: parse status %d", int(s))
}

// ParseError reports why an operator could not be turned into a layer.
type ParseError struct {
	Operator string
	Type     string
	Status   ParseStatus
	Details  string
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s (%s): %s", e.Operator, e.Type, e.Status.Error())
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the status and the underlying cause to errors.Is and errors.As.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Status, e.Err}
	}
	return []error{e.Status}
}

// InferStatus classifies a failed forward pass.
type InferStatus int

// Forward failures.
const (
	InferSuccess InferStatus = iota
	InferInputEmpty
	InferOutputEmpty
	InferInputOutputSizeMismatch
	InferWeightParameterError
	InferBiasParameterError
	InferStrideParameterError
	InferDimensionParameterError
	InferChannelParameterError
	InferShapeParameterError
	InferOutputSizeError
	InferNotImplemented
	InferUnknown
)

var inferStatusText = map[InferStatus]string{
	InferSuccess:                 "success",
	InferInputEmpty:              "input is empty",
	InferOutputEmpty:             "output is empty",
	InferInputOutputSizeMismatch: "input and output sizes do not match",
	InferWeightParameterError:    "bad weight parameter",
	InferBiasParameterError:      "bad bias parameter",
	InferStrideParameterError:    "bad stride parameter",
	InferDimensionParameterError: "bad dimension parameter",
	InferChannelParameterError:   "bad channel parameter",
	InferShapeParameterError:     "bad shape parameter",
	InferOutputSizeError:         "bad output size",
	InferNotImplemented:          "forward not implemented",
	InferUnknown:                 "unknown failure",
}

// Error implements the error interface.
func (s InferStatus) Error() string {
	if text, ok := inferStatusText[s]; ok {
		return "layer: " + text
	}
	return fmt.Sprintf("layer: infer status %d", int(s))
}

// InferError reports a failed forward pass of a named layer.
type InferError struct {
	Layer   string
	Status  InferStatus
	Details string
}

// Error implements the error interface.
func (e *InferError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Layer, e.Status.Error(), e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Layer, e.Status.Error())
}

// Unwrap returns the status so errors.Is matches on it.
func (e *InferError) Unwrap() error { return e.Status }

func inferErr(layer string, status InferStatus, format string, args ...any) error {
	return &InferError{Layer: layer, Status: status, Details: fmt.Sprintf(format, args...)}
}

func parseErr(op string, typ string, status ParseStatus, format string, args ...any) *ParseError {
	return &ParseError{Operator: op, Type: typ, Status: status, Details: fmt.Sprintf(format, args...)}
}
