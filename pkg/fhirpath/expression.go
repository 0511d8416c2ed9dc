// Package fhirpath evaluates the subset of FHIRPath used by questionnaire
// expressions: path navigation, comparison, boolean and arithmetic operators,
// literals (including dates and quantities) and a whitelist of functions.
//
// Anything outside that subset fails with KindUnsupported rather than being
// approximated.
package fhirpath

import "time"

// Expression is a compiled FHIRPath expression.
type Expression struct {
	source string
	root   node
}

// Compile parses src. Failures are *Error with KindSyntax or KindUnsupported.
func Compile(src string) (*Expression, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Expression{source: src, root: root}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and constants.
func MustCompile(src string) *Expression {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expression) String() string { return e.source }

// Options tune a single evaluation.
type Options struct {
	// Now is the clock reading used by now() and today(). Zero means time.Now().
	Now time.Time
	// Trace receives the output of trace() calls.
	Trace func(name string, c Collection)
}

// Evaluate runs the expression with input as the initial focus.
func (e *Expression) Evaluate(input Collection, env Environment, opts Options) (Collection, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	ev := &evaluator{env: env, root: input, now: now, trace: opts.Trace}
	return ev.eval(e.root, input, nil)
}

// Evaluate compiles and runs src in one step.
func Evaluate(src string, input Collection, env Environment) (Collection, error) {
	e, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(input, env, Options{})
}
