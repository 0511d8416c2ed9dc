package form

import (
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
)

// evaluateEnableWhen applies the declarative enableWhen conditions of item.
// Targets resolve through the scope chain; answers of a disabled target count as absent.
func evaluateEnableWhen(scope *Scope, item *domain.Item) bool {
	anyMode := item.EnableBehavior == domain.BehaviorAny
	for _, cond := range item.EnableWhen {
		ok := conditionHolds(scope, cond)
		if anyMode && ok {
			return true
		}
		if !anyMode && !ok {
			return false
		}
	}
	return !anyMode
}

func conditionHolds(scope *Scope, cond domain.EnableWhen) bool {
	var answers []domain.Value
	if q, ok := scope.LookupNode(cond.Question).(*Question); ok && q.IsEnabled() {
		answers = q.Values()
	}
	want := cond.Answer()

	switch cond.Operator {
	case domain.OpExists:
		expected := want.ValueBoolean == nil || *want.ValueBoolean
		return (len(answers) > 0) == expected
	case domain.OpEqual:
		for _, a := range answers {
			if valuesEqual(a, want) {
				return true
			}
		}
		return false
	case domain.OpNotEqual:
		for _, a := range answers {
			if valuesEqual(a, want) {
				return false
			}
		}
		return true
	case domain.OpGreater, domain.OpLess, domain.OpGreaterEqual, domain.OpLessEqual:
		for _, a := range answers {
			cmp, ok := compareValues(a, want)
			if ok && orderHolds(cond.Operator, cmp) {
				return true
			}
		}
		return false
	}
	return false
}

func orderHolds(op string, cmp int) bool {
	switch op {
	case domain.OpGreater:
		return cmp > 0
	case domain.OpLess:
		return cmp < 0
	case domain.OpGreaterEqual:
		return cmp >= 0
	case domain.OpLessEqual:
		return cmp <= 0
	}
	return false
}

// valuesEqual compares an answer with an enableWhen operand.
func valuesEqual(a, b domain.Value) bool {
	switch {
	case a.ValueCoding != nil || b.ValueCoding != nil:
		return a.ValueCoding != nil && b.ValueCoding != nil && a.ValueCoding.Matches(*b.ValueCoding)
	case a.ValueBoolean != nil || b.ValueBoolean != nil:
		return a.ValueBoolean != nil && b.ValueBoolean != nil && *a.ValueBoolean == *b.ValueBoolean
	case a.ValueReference != nil || b.ValueReference != nil:
		return a.ValueReference != nil && b.ValueReference != nil &&
			a.ValueReference.Reference == b.ValueReference.Reference
	}
	cmp, ok := compareValues(a, b)
	return ok && cmp == 0
}

func compareValues(a, b domain.Value) (int, bool) {
	x, y := valueItem(a), valueItem(b)
	if x == nil || y == nil {
		return 0, false
	}
	cmp, ok, err := fhirpath.Compare(x, y)
	if err != nil {
		return 0, false
	}
	return cmp, ok
}
