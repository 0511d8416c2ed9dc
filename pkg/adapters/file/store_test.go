package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/formtree/pkg/adapters/file"
	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ResponseStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunResponseStoreContract(t, file.NewStore(t.TempDir()))
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	response := &domain.QuestionnaireResponse{ResourceType: domain.ResourceTypeResponse, Status: domain.StatusInProgress}

	for range 3 {
		require.NoError(t, store.Save(context.Background(), "s1", response))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1.json", entries[0].Name())
}

func TestFileStore_ListIgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-s2-123.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	store := file.NewStore(dir)
	require.NoError(t, store.Save(context.Background(), "s1", &domain.QuestionnaireResponse{}))

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	store := file.NewStore(t.TempDir())
	for _, id := range []string{"", "../escape", `a\b`, ".."} {
		assert.Error(t, store.Save(context.Background(), id, &domain.QuestionnaireResponse{}), id)
	}
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.NewStore(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
