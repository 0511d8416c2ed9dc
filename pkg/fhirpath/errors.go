package fhirpath

import (
	"errors"
	"fmt"
)

// Kind classifies an expression failure.
type Kind int

const (
	// KindNone is reported for errors that did not originate in this package.
	KindNone Kind = iota
	KindSyntax
	KindUnresolved
	KindUnsupported
	KindType
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindUnresolved:
		return "unresolved"
	case KindUnsupported:
		return "unsupported"
	case KindType:
		return "type"
	default:
		return "unknown"
	}
}

// Error is a classified expression failure.
type Error struct {
	Kind    Kind
	Message string
	Pos     int // byte offset in the source, -1 when unknown
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s error at %d: %s", e.Kind, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// KindOf returns the classification of err, or KindNone.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

func syntaxErr(pos int, format string, args ...any) error {
	return &Error{Kind: KindSyntax, Message: fmt.Sprintf(format, args...), Pos: pos}
}

func unresolvedErr(format string, args ...any) error {
	return &Error{Kind: KindUnresolved, Message: fmt.Sprintf(format, args...), Pos: -1}
}

func unsupportedErr(pos int, format string, args ...any) error {
	return &Error{Kind: KindUnsupported, Message: fmt.Sprintf(format, args...), Pos: pos}
}

func typeErr(format string, args ...any) error {
	return &Error{Kind: KindType, Message: fmt.Sprintf(format, args...), Pos: -1}
}
