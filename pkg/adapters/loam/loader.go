package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to ports.QuestionnaireLoader.
type Loader struct {
	Repo *loam.TypedRepository[QuestionnaireMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[QuestionnaireMetadata]) *Loader {
	return &Loader{Repo: repo}
}

// NewFromPath opens the directory at path as a read-only, strict Loam repository.
// Strict mode keeps integers as json.Number instead of float64.
func NewFromPath(path string) (*Loader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(abs,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[QuestionnaireMetadata](repo)), nil
}

// Load resolves ref as a document id first, then by canonical url across the repository.
func (l *Loader) Load(ctx context.Context, ref string) (*domain.Questionnaire, error) {
	if id, ok := localID(ref); ok {
		doc, err := l.Repo.Get(ctx, id)
		if err == nil {
			return decode(doc.ID, doc.Data)
		}
	}

	all, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, q := range all {
		if q.Matches(ref) {
			return q, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrQuestionnaireNotFound, ref)
}

// List returns the normalized ids of every questionnaire document.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	all, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, q := range all {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

// all decodes every questionnaire in the repository, sorted by id.
// Documents of another resourceType are skipped; two documents resolving to the same id
// are an error.
func (l *Loader) all(ctx context.Context) ([]*domain.Questionnaire, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]*domain.Questionnaire, 0, len(docs))
	for _, doc := range docs {
		if rt := doc.Data.ResourceType; rt != "" && rt != "Questionnaire" {
			continue
		}
		q, err := decode(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		if existing, ok := seen[q.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", q.ID, existing, doc.ID)
		}
		seen[q.ID] = doc.ID
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Coalesce bursts: one pending notification is enough.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func decode(docID string, meta QuestionnaireMetadata) (*domain.Questionnaire, error) {
	id := meta.ID
	if id == "" {
		id = docID
	}
	id = trimExtension(id)

	data, err := json.Marshal(meta.document(id))
	if err != nil {
		return nil, fmt.Errorf("failed to encode questionnaire %s: %w", id, err)
	}
	var q domain.Questionnaire
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to decode questionnaire %s: %w", id, err)
	}
	return &q, nil
}

// localID extracts a document id from ref. Canonical urls have none.
func localID(ref string) (string, bool) {
	if strings.Contains(ref, "://") || strings.Contains(ref, "|") {
		return "", false
	}
	ref = strings.TrimPrefix(ref, "Questionnaire/")
	return ref, ref != ""
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}

// normalize rewrites YAML map[any]any nodes into string keyed maps so they can be encoded as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = normalize(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = normalize(child)
		}
		return out
	default:
		return v
	}
}
