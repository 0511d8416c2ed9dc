package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/ports"
)

// QuestionnaireLoaderContractTest is a reusable test suite that verifies if an adapter complies
// with ports.QuestionnaireLoader. expected maps each id to the title it should carry.
func QuestionnaireLoaderContractTest(t *testing.T, loader ports.QuestionnaireLoader, expected map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for id, title := range expected {
			q, err := loader.Load(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", id, err)
			}
			if q.Title != title {
				t.Errorf("title mismatch for %s. got %q, want %q", id, q.Title, title)
			}
			if len(q.Item) == 0 {
				t.Errorf("questionnaire %s has no items", id)
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent-questionnaire")
		if !errors.Is(err, domain.ErrQuestionnaireNotFound) {
			t.Errorf("expected ErrQuestionnaireNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		ids, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing questionnaires: %v", err)
		}

		if len(ids) != len(expected) {
			t.Errorf("expected %d questionnaires, got %d", len(expected), len(ids))
		}

		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}

		for id := range expected {
			if !lookup[id] {
				t.Errorf("questionnaire %s missing from list", id)
			}
		}
	})
}
