package form

import (
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/fhirpath"
)

// OptionStatus is the resolution state of a question's answer options.
type OptionStatus int

const (
	// OptionsNone means the item declares no option source.
	OptionsNone OptionStatus = iota
	OptionsReady
	OptionsLoading
	OptionsError
)

func (s OptionStatus) String() string {
	switch s {
	case OptionsReady:
		return "ready"
	case OptionsLoading:
		return "loading"
	case OptionsError:
		return "error"
	default:
		return "none"
	}
}

// OptionState is the observable option list of a question.
// Loading and error are distinct from a ready but empty list.
type OptionState struct {
	Status  OptionStatus
	Options []domain.AnswerOption
	Err     error
}

// Ready returns a ready state holding options.
func Ready(options []domain.AnswerOption) OptionState {
	return OptionState{Status: OptionsReady, Options: options}
}

func (q *Question) computeOptions() OptionState {
	if slot := q.exprs.Slot(SlotAnswerOptions); slot != nil {
		out, err := slot.Value()
		if err != nil {
			return OptionState{Status: OptionsError, Err: err}
		}
		return Ready(q.optionsFrom(out))
	}
	if len(q.item.AnswerOption) > 0 {
		return Ready(q.item.AnswerOption)
	}
	if q.item.AnswerValueSet != "" {
		return q.form.valueSet(q.item.AnswerValueSet).Get()
	}
	return OptionState{}
}

func (q *Question) optionsFrom(out fhirpath.Collection) []domain.AnswerOption {
	options := make([]domain.AnswerOption, 0, len(out))
	for _, item := range out {
		v, err := q.coerceItem(item)
		if err != nil || v.IsZero() {
			continue
		}
		options = append(options, domain.AnswerOption{Value: v})
	}
	return options
}

// Options returns the current option state.
func (q *Question) Options() OptionState {
	return q.options.Get()
}

func optionAllows(options []domain.AnswerOption, v domain.Value) bool {
	for _, opt := range options {
		if valuesEqual(v, opt.Value) {
			return true
		}
	}
	return false
}
