package form

import (
	"errors"
	"fmt"

	"github.com/aretw0/formtree/pkg/fhirpath"
)

var (
	// ErrReadOnly is returned by commands issued against a read-only node.
	ErrReadOnly = errors.New("node is read-only")
	// ErrAnswerIndex is returned when an answer index is out of range.
	ErrAnswerIndex = errors.New("answer index out of range")
	// ErrUnsupportedType is returned when answering an item whose type has no answer model.
	ErrUnsupportedType = errors.New("unsupported item type")
)

// ExpressionError is the diagnostic attached to a failed expression slot.
type ExpressionError struct {
	Slot       SlotKind
	Name       string
	LinkID     string
	Expression string
	Kind       fhirpath.Kind
	Err        error
}

func (e *ExpressionError) Error() string {
	where := e.LinkID
	if where == "" {
		where = "questionnaire"
	}
	return fmt.Sprintf("%s expression on %s (%s): %v", e.Slot, where, e.Kind, e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }
