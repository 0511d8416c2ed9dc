package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/formtree/pkg/domain"
)

// Expander implements ports.ValueSetExpander over a fixed set of expansions.
type Expander struct {
	mu   sync.RWMutex
	sets map[string][]domain.AnswerOption
}

// NewExpander creates an empty expander.
func NewExpander() *Expander {
	return &Expander{sets: make(map[string][]domain.AnswerOption)}
}

// Register stores the codings of a value set canonical.
func (e *Expander) Register(valueSet string, codings ...domain.Coding) *Expander {
	options := make([]domain.AnswerOption, 0, len(codings))
	for _, c := range codings {
		options = append(options, domain.AnswerOption{Value: domain.CodingValue(c)})
	}
	e.mu.Lock()
	e.sets[valueSet] = options
	e.mu.Unlock()
	return e
}

// Expand returns the registered options, failing for unknown canonicals.
func (e *Expander) Expand(ctx context.Context, valueSet string) ([]domain.AnswerOption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	options, ok := e.sets[valueSet]
	if !ok {
		return nil, fmt.Errorf("value set %s is not available", valueSet)
	}
	return append([]domain.AnswerOption(nil), options...), nil
}
