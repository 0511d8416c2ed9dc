package ports

import (
	"context"

	"github.com/aretw0/formtree/pkg/domain"
)

// ValueSetExpander resolves an answerValueSet canonical into its answer options.
type ValueSetExpander interface {
	Expand(ctx context.Context, valueSet string) ([]domain.AnswerOption, error)
}
