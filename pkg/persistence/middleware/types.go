package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/ports"
)

// Middleware allows wrapping a ResponseStore to add behavior.
type Middleware func(ports.ResponseStore) ports.ResponseStore

// Chain applies middlewares so the first one is the outermost.
func Chain(store ports.ResponseStore, mws ...Middleware) ports.ResponseStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

func clone(r *domain.QuestionnaireResponse) (*domain.QuestionnaireResponse, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to copy response: %w", err)
	}
	var out domain.QuestionnaireResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy response: %w", err)
	}
	return &out, nil
}
