package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/formtree/pkg/adapters/memory"
	"github.com/aretw0/formtree/pkg/domain"
	contract "github.com/aretw0/formtree/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	loader, err := memory.NewLoaderFromJSON(
		`{"resourceType":"Questionnaire","id":"intake","title":"Intake","item":[{"linkId":"a","type":"string"}]}`,
		`{"resourceType":"Questionnaire","id":"followup","title":"Follow-up","item":[{"linkId":"b","type":"boolean"}]}`,
	)
	require.NoError(t, err)

	contract.QuestionnaireLoaderContractTest(t, loader, map[string]string{
		"intake":   "Intake",
		"followup": "Follow-up",
	})
}

func TestInMemoryLoader_CanonicalReference(t *testing.T) {
	loader, err := memory.NewLoader(&domain.Questionnaire{
		ID:      "phq",
		URL:     "http://example.org/Questionnaire/phq",
		Version: "2",
	})
	require.NoError(t, err)

	for _, ref := range []string{"phq", "Questionnaire/phq", "http://example.org/Questionnaire/phq", "http://example.org/Questionnaire/phq|2"} {
		q, err := loader.Load(context.Background(), ref)
		require.NoError(t, err, ref)
		assert.Equal(t, "phq", q.ID)
	}

	_, err = loader.Load(context.Background(), "http://example.org/Questionnaire/phq|3")
	assert.ErrorIs(t, err, domain.ErrQuestionnaireNotFound)
}

func TestInMemoryLoader_RejectsMissingID(t *testing.T) {
	_, err := memory.NewLoader(&domain.Questionnaire{Title: "anonymous"})
	assert.Error(t, err)
}
