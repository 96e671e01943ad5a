package signmf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidData indicates a count matrix that cannot be fitted.
	ErrInvalidData = errors.New("signmf: invalid count data")
	// ErrIncompatibleParameter indicates a given parameter whose shape or labels
	// do not match the data or the model configuration.
	ErrIncompatibleParameter = errors.New("signmf: incompatible given parameter")
	// ErrInvalidConfig indicates a model configuration that cannot be used.
	ErrInvalidConfig = errors.New("signmf: invalid configuration")
	// ErrUnknownKind indicates an unsupported model kind.
	ErrUnknownKind = errors.New("signmf: unknown model kind")
	// ErrNotFitted indicates a query that requires a fitted model.
	ErrNotFitted = errors.New("signmf: model has not been fitted")
)

// ParameterError reports which given parameter failed validation and why.
type ParameterError struct {
	Param  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("signmf: given %s: %s", e.Param, e.Reason)
}

// Unwrap makes every ParameterError match ErrIncompatibleParameter.
func (e *ParameterError) Unwrap() error {
	return ErrIncompatibleParameter
}
