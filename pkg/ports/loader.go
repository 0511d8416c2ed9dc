package ports

import (
	"context"

	"github.com/aretw0/formtree/pkg/domain"
)

// QuestionnaireLoader defines how the engine retrieves questionnaire templates.
// This allows the storage layer (Loam, FS, Memory) to be decoupled.
type QuestionnaireLoader interface {
	// Load resolves a questionnaire by id or canonical url (optionally "url|version").
	// Returns domain.ErrQuestionnaireNotFound when nothing matches.
	Load(ctx context.Context, ref string) (*domain.Questionnaire, error)

	// List returns the ids of all available questionnaires in a deterministic order.
	List(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying templates change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
