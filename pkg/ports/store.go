package ports

import (
	"context"

	"github.com/aretw0/formtree/pkg/domain"
)

// ResponseStore defines the interface for persisting response documents.
// This allows for durable sessions, enabling "Stop & Resume" form filling.
type ResponseStore interface {
	// Save persists the response for a given session ID.
	Save(ctx context.Context, sessionID string, response *domain.QuestionnaireResponse) error

	// Load retrieves the response for a given session ID.
	// Returns domain.ErrResponseNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.QuestionnaireResponse, error)

	// Delete removes the response for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the stored session IDs.
	List(ctx context.Context) ([]string, error)
}
