package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractResponse(id string) *domain.QuestionnaireResponse {
	return &domain.QuestionnaireResponse{
		ResourceType:  domain.ResourceTypeResponse,
		ID:            id,
		Questionnaire: "http://example.org/Questionnaire/contract",
		Status:        domain.StatusInProgress,
		Item: []domain.ResponseItem{
			{LinkID: "name", Answer: []domain.ResponseAnswer{{Value: domain.String("Ada")}}},
			{LinkID: "age", Answer: []domain.ResponseAnswer{{Value: domain.Integer(36)}}},
		},
	}
}

// RunResponseStoreContract runs a suite of tests to verify that a ResponseStore implementation
// adheres to the defined interface contract.
func RunResponseStoreContract(t *testing.T, store ResponseStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		response := contractResponse(sessionID)

		err := store.Save(ctx, sessionID, response)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, response.Questionnaire, loaded.Questionnaire)
		assert.Equal(t, response.Status, loaded.Status)
		require.Len(t, loaded.Item, 2)
		assert.Equal(t, "Ada", loaded.Item[0].Answer[0].ValueString)
		require.NotNil(t, loaded.Item[1].Answer[0].ValueInteger, "integer answers must survive persistence")
		assert.Equal(t, int64(36), *loaded.Item[1].Answer[0].ValueInteger)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, contractResponse(sessionID)))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Item[0].Answer[0].ValueString = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", again.Item[0].Answer[0].ValueString)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrResponseNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, contractResponse(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrResponseNotFound, "Load after Delete should return ErrResponseNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, contractResponse(id1))
		_ = store.Save(ctx, id2, contractResponse(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
