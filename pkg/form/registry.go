package form

import (
	"errors"
	"fmt"

	"github.com/aretw0/formtree/internal/reactive"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
)

// SlotKind identifies what an expression slot feeds.
type SlotKind string

const (
	SlotEnableWhen    SlotKind = "enableWhen"
	SlotCalculated    SlotKind = "calculated"
	SlotInitial       SlotKind = "initial"
	SlotVariable      SlotKind = "variable"
	SlotMinOccurs     SlotKind = "minOccurs"
	SlotMaxOccurs     SlotKind = "maxOccurs"
	SlotMinValue      SlotKind = "minValue"
	SlotMaxValue      SlotKind = "maxValue"
	SlotAnswerOptions SlotKind = "answerOptions"
)

type slotResult struct {
	value fhirpath.Collection
	err   *ExpressionError
}

// Slot is one compiled expression attached to a node.
// Its result is memoized and recomputed only after something it read changed.
type Slot struct {
	kind   SlotKind
	name   string
	source string
	linkID string

	compileErr *ExpressionError
	expr       *fhirpath.Expression
	result     *reactive.Computed[slotResult]
}

// Kind returns what the slot feeds.
func (s *Slot) Kind() SlotKind { return s.kind }

// Name returns the variable name the slot publishes, or "".
func (s *Slot) Name() string { return s.name }

// Source returns the expression text.
func (s *Slot) Source() string { return s.source }

// Value evaluates the slot (or returns the memoized result).
// A failed evaluation returns a nil collection and an *ExpressionError.
func (s *Slot) Value() (fhirpath.Collection, error) {
	if s.compileErr != nil {
		return nil, s.compileErr
	}
	r := s.result.Get()
	if r.err != nil {
		return nil, r.err
	}
	return r.value, nil
}

// Err returns the diagnostic of the latest evaluation without recording a dependency.
func (s *Slot) Err() *ExpressionError {
	if s.compileErr != nil {
		return s.compileErr
	}
	return s.result.Peek().err
}

// Registry holds the expression slots of one node.
type Registry struct {
	form   *Form
	linkID string
	env    *environment
	slots  []*Slot
}

func newRegistry(f *Form, linkID string, env *environment) *Registry {
	return &Registry{form: f, linkID: linkID, env: env}
}

// add compiles expr into a new slot. Returns nil when expr is nil or blank.
func (r *Registry) add(kind SlotKind, expr *domain.Expression) *Slot {
	if expr == nil || expr.Expression == "" {
		return nil
	}
	s := &Slot{kind: kind, name: expr.Name, source: expr.Expression, linkID: r.linkID}
	if lang := expr.Language; lang != "" && lang != domain.ExpressionLanguageFHIRPath {
		s.compileErr = r.diagnose(s, &fhirpath.Error{
			Kind:    fhirpath.KindUnsupported,
			Message: fmt.Sprintf("expression language %q", lang),
			Pos:     -1,
		})
	} else if compiled, err := fhirpath.Compile(expr.Expression); err != nil {
		s.compileErr = r.diagnose(s, err)
	} else {
		s.expr = compiled
	}
	if s.compileErr != nil {
		r.form.reportExpressionError(s.compileErr)
	} else {
		s.result = reactive.NewComputed(r.form.rt, func() slotResult { return r.evaluate(s) })
	}
	r.slots = append(r.slots, s)
	return s
}

func (r *Registry) evaluate(s *Slot) slotResult {
	out, err := s.expr.Evaluate(r.env.context(), r.env, fhirpath.Options{
		Now:   r.form.now(),
		Trace: r.form.trace,
	})
	if err != nil {
		diag := r.diagnose(s, err)
		r.form.reportExpressionError(diag)
		return slotResult{err: diag}
	}
	return slotResult{value: out}
}

func (r *Registry) diagnose(s *Slot, err error) *ExpressionError {
	var nested *ExpressionError
	if errors.As(err, &nested) {
		// A variable this slot read failed; keep the root cause.
		err = nested.Err
	}
	return &ExpressionError{
		Slot:       s.kind,
		Name:       s.name,
		LinkID:     r.linkID,
		Expression: s.source,
		Kind:       fhirpath.KindOf(err),
		Err:        err,
	}
}

// Slot returns the first slot of the given kind, or nil.
func (r *Registry) Slot(kind SlotKind) *Slot {
	for _, s := range r.slots {
		if s.kind == kind {
			return s
		}
	}
	return nil
}

// Slots returns every slot in declaration order.
func (r *Registry) Slots() []*Slot {
	return r.slots
}

// Errors returns the diagnostics of the slots that currently fail.
func (r *Registry) Errors() []*ExpressionError {
	var out []*ExpressionError
	for _, s := range r.slots {
		if err := s.Err(); err != nil {
			out = append(out, err)
		}
	}
	return out
}

// publish binds every named slot into scope.
func (r *Registry) publish(scope *Scope) {
	for _, s := range r.slots {
		if s.name == "" {
			continue
		}
		switch s.kind {
		case SlotVariable, SlotEnableWhen, SlotCalculated:
			scope.Define(s.name, s.Value)
		}
	}
}

func (r *Registry) dispose() {
	for _, s := range r.slots {
		if s.result != nil {
			s.result.Dispose()
		}
	}
}

// environment resolves %variables for the slots of one node.
type environment struct {
	form    *Form
	scope   *Scope
	context func() fhirpath.Collection
	qitem   fhirpath.Collection
}

// Variable implements fhirpath.Environment.
func (e *environment) Variable(name string) (fhirpath.Collection, bool, error) {
	switch name {
	case "resource":
		return e.form.resourceSnapshot(), true, nil
	case "context":
		return e.context(), true, nil
	case "questionnaire":
		return e.form.questionnaireSnapshot, true, nil
	case "qitem":
		if e.qitem != nil {
			return e.qitem, true, nil
		}
	}
	return e.scope.LookupVariable(name)
}

// declareSlots registers the slots an item declares for the given kinds.
func (r *Registry) declareSlots(item *domain.Item, kinds ...SlotKind) {
	for _, kind := range kinds {
		switch kind {
		case SlotVariable:
			for _, ext := range item.Extensions(domain.ExtVariable) {
				r.add(SlotVariable, ext.ValueExpression)
			}
		case SlotEnableWhen:
			r.addExtension(kind, item, domain.ExtEnableWhenExpression)
		case SlotCalculated:
			r.addExtension(kind, item, domain.ExtCalculatedExpression)
		case SlotInitial:
			r.addExtension(kind, item, domain.ExtInitialExpression)
		case SlotAnswerOptions:
			r.addExtension(kind, item, domain.ExtAnswerExpression)
		case SlotMinOccurs:
			r.addExtension(kind, item, domain.ExtMinOccurs)
		case SlotMaxOccurs:
			r.addExtension(kind, item, domain.ExtMaxOccurs)
		case SlotMinValue:
			r.addExtension(kind, item, domain.ExtMinValue)
		case SlotMaxValue:
			r.addExtension(kind, item, domain.ExtMaxValue)
		}
	}
}

func (r *Registry) addExtension(kind SlotKind, item *domain.Item, url string) {
	if ext, ok := item.FindExtension(url); ok {
		r.add(kind, ext.DynamicExpression())
	}
}
