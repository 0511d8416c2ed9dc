package schema

import (
	"errors"
	"fmt"
)

// ErrCoercion is wrapped by every failed Coerce call.
var ErrCoercion = errors.New("cannot coerce value")

// CoercionError describes a value that does not fit an answer type.
type CoercionError struct {
	Type  string // Answer type name
	Value any    // The rejected input
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s: %T is not a valid %s answer", ErrCoercion, e.Value, e.Type)
}

func (e *CoercionError) Unwrap() error { return ErrCoercion }

func coercionErr(t Type, value any) error {
	return &CoercionError{Type: t.Name(), Value: value}
}
