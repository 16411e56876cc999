package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

func TestSnapshotParamsRoundTrip(t *testing.T) {
	updated := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	snapshot := model.Snapshot{
		Tasks:     []model.Task{{ID: "a", Key: "DASH-1", Title: "Ship", Status: "review", Priority: "high", Type: "story"}},
		Counter:   1,
		UpdatedAt: updated,
		Version:   4,
	}

	params, err := snapshotParams("usr_1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", params["key"])
	assert.Equal(t, int64(1), params["counter"])

	got, err := snapshotFromValues(params)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Tasks, got.Tasks)
	assert.Equal(t, 1, got.Counter)
	assert.Equal(t, int64(4), got.Version)
	assert.True(t, got.UpdatedAt.Equal(updated))
}

func TestSnapshotFromValuesToleratesMissingFields(t *testing.T) {
	got, err := snapshotFromValues(map[string]any{"payload": nil, "counter": nil})
	require.NoError(t, err)
	assert.Equal(t, []model.Task{}, got.Tasks)
	assert.Zero(t, got.Version)

	_, err = snapshotFromValues(map[string]any{"payload": "{"})
	assert.Error(t, err)
}

// Runs against a live server when DASHTRACK_NEO4J_URI is set.
func TestStoreAgainstNeo4j(t *testing.T) {
	uri := os.Getenv("DASHTRACK_NEO4J_URI")
	if uri == "" {
		t.Skip("DASHTRACK_NEO4J_URI not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, uri, os.Getenv("DASHTRACK_NEO4J_USERNAME"), os.Getenv("DASHTRACK_NEO4J_PASSWORD"), "")
	require.NoError(t, err)
	defer store.Close(ctx)

	key := "test-" + uuid.NewString()
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, model.Snapshot{Tasks: []model.Task{{ID: "a", Title: "x", Status: "todo"}}, Counter: 1, Version: 1}))
	assert.ErrorIs(t, store.Set(ctx, key, model.Snapshot{Version: 1}), model.ErrStaleWrite)

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Tasks, 1)
}
