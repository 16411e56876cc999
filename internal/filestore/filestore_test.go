package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

func TestStore_MissingKeyIsNotAnError(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Get(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RoundTripAndStaleVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	snapshot := model.Snapshot{
		Tasks:   []model.Task{{ID: "a", Title: "Plan", Status: "pending", Priority: "medium"}},
		Counter: 0,
		Version: 1,
	}
	require.NoError(t, store.Set(ctx, model.LocalKey, snapshot))
	assert.ErrorIs(t, store.Set(ctx, model.LocalKey, model.Snapshot{Version: 1}), model.ErrStaleWrite)

	reopened, err := New(dir)
	require.NoError(t, err)
	got, ok, err := reopened.Get(ctx, model.LocalKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Plan", got.Tasks[0].Title)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_SanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), "../escape/me", model.Snapshot{Version: 1}))

	_, err = os.Stat(filepath.Join(dir, "board-.._escape_me.json"))
	assert.NoError(t, err)
}

func TestStore_CorruptDocumentIsReported(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.filePath("k"), []byte("{not json"), 0o644))

	_, _, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
}
