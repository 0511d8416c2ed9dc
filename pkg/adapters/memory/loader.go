package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/formtree/pkg/domain"
)

// Loader implements ports.QuestionnaireLoader using an in-memory map.
type Loader struct {
	mu    sync.RWMutex
	items map[string]*domain.Questionnaire
}

// NewLoader creates a new MemoryLoader from domain objects.
func NewLoader(questionnaires ...*domain.Questionnaire) (*Loader, error) {
	l := &Loader{items: make(map[string]*domain.Questionnaire)}
	for _, q := range questionnaires {
		if err := l.Add(q); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// NewLoaderFromJSON creates a MemoryLoader from raw JSON documents.
// This is convenient for fixtures kept as string literals.
func NewLoaderFromJSON(docs ...string) (*Loader, error) {
	l := &Loader{items: make(map[string]*domain.Questionnaire)}
	for i, doc := range docs {
		var q domain.Questionnaire
		if err := json.Unmarshal([]byte(doc), &q); err != nil {
			return nil, fmt.Errorf("failed to parse questionnaire %d: %w", i, err)
		}
		if err := l.Add(&q); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add registers (or replaces) a questionnaire. Its id is required.
func (l *Loader) Add(q *domain.Questionnaire) error {
	if q == nil || q.ID == "" {
		return fmt.Errorf("questionnaire missing ID")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[q.ID] = q
	return nil
}

// Load resolves a questionnaire by id or canonical reference.
func (l *Loader) Load(ctx context.Context, ref string) (*domain.Questionnaire, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if q, ok := l.items[ref]; ok {
		return q, nil
	}
	for _, q := range l.items {
		if q.Matches(ref) {
			return q, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrQuestionnaireNotFound, ref)
}

// List returns all available questionnaire IDs.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.items))
	for k := range l.items {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
