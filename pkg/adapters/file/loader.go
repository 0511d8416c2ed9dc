package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/formtree/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.QuestionnaireLoader over a directory.
// The directory is rescanned on every call, so edits are picked up without a restart.
type Loader struct {
	Dir string
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Load resolves ref against the questionnaires in the directory.
func (l *Loader) Load(ctx context.Context, ref string) (*domain.Questionnaire, error) {
	all, err := l.scan(ctx)
	if err != nil {
		return nil, err
	}
	if q, ok := all[ref]; ok {
		return q, nil
	}
	for _, id := range sortedIDs(all) {
		if all[id].Matches(ref) {
			return all[id], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrQuestionnaireNotFound, ref)
}

// List returns the ids of every questionnaire in the directory.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	all, err := l.scan(ctx)
	if err != nil {
		return nil, err
	}
	return sortedIDs(all), nil
}

func (l *Loader) scan(ctx context.Context) (map[string]*domain.Questionnaire, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire directory: %w", err)
	}

	out := make(map[string]*domain.Questionnaire)
	origin := make(map[string]string)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !isDocument(entry.Name()) {
			continue
		}
		path := filepath.Join(l.Dir, entry.Name())
		q, err := ReadQuestionnaire(path)
		if err != nil {
			return nil, err
		}
		if q.ResourceType != "" && q.ResourceType != "Questionnaire" {
			continue
		}
		if q.ID == "" {
			q.ID = stem(entry.Name())
		}
		if prev, dup := origin[q.ID]; dup {
			return nil, fmt.Errorf("duplicate questionnaire id %q (%s and %s)", q.ID, prev, path)
		}
		out[q.ID] = q
		origin[q.ID] = path
	}
	return out, nil
}

// ReadQuestionnaire parses a single JSON or YAML questionnaire document.
func ReadQuestionnaire(path string) (*domain.Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		if data, err = yamlToJSON(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	var q domain.Questionnaire
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &q, nil
}

// yamlToJSON re-encodes a YAML document so the JSON tags of the domain model apply.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(normalize(doc))
}

// normalize converts map[any]any nodes, which encoding/json rejects, into string keyed maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalize(child)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, child := range t {
			m[fmt.Sprint(k)] = normalize(child)
		}
		return m
	case []any:
		for i, child := range t {
			t[i] = normalize(child)
		}
		return t
	default:
		return v
	}
}

func isDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func sortedIDs(m map[string]*domain.Questionnaire) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
