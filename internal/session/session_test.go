package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/model"
)

type recordingStore struct {
	*MemoryStore

	mu       sync.Mutex
	versions []int64
	block    chan struct{}
	entered  chan struct{}
	getErr   error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (s *recordingStore) Get(ctx context.Context, key string) (model.Snapshot, bool, error) {
	if s.getErr != nil {
		return model.Snapshot{}, false, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key string, snapshot model.Snapshot) error {
	s.mu.Lock()
	s.versions = append(s.versions, snapshot.Version)
	block, entered := s.block, s.entered
	s.block, s.entered = nil, nil
	s.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	return s.MemoryStore.Set(ctx, key, snapshot)
}

func (s *recordingStore) seen() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.versions...)
}

func create(title string) Mutation {
	return func(b model.Board) (model.Board, bool, error) {
		next, _, err := board.Create(b, model.Form{Title: title}, "todo", model.Tracker(""), nil)
		return next, err == nil, err
	}
}

func TestBridge_LoadMissingYieldsEmptyBoard(t *testing.T) {
	bridge := NewBridge("usr_1", NewMemoryStore())
	defer bridge.Close()

	assert.Equal(t, Uninitialized, bridge.State())
	bridge.Load(context.Background())

	assert.Equal(t, Loaded, bridge.State())
	assert.Equal(t, model.Board{Tasks: []model.Task{}}, bridge.Board())
}

func TestBridge_LoadErrorDegradesToEmptyBoard(t *testing.T) {
	store := newRecordingStore()
	store.getErr = errors.New("offline")

	bridge := NewBridge("usr_1", store)
	defer bridge.Close()
	bridge.Load(context.Background())

	assert.Equal(t, LoadFailed, bridge.State())
	assert.Empty(t, bridge.Board().Tasks)
}

func TestBridge_FailedLoadNeverOverwritesStoredBoard(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	stored := model.Snapshot{
		Tasks: []model.Task{
			{ID: "a", Key: "DASH-1", Title: "one", Status: "todo"},
			{ID: "b", Key: "DASH-2", Title: "two", Status: "todo"},
			{ID: "c", Key: "DASH-3", Title: "three", Status: "todo"},
		},
		Counter: 3,
		Version: 3,
	}
	require.NoError(t, store.MemoryStore.Set(ctx, "usr_1", stored))

	manager := NewManager(store)
	defer manager.Close(ctx)

	store.getErr = errors.New("offline")
	failed := manager.Open(ctx, "usr_1")
	assert.Equal(t, LoadFailed, failed.State())
	assert.False(t, manager.Holds("usr_1"))

	for i := 0; i < 4; i++ {
		_, changed, err := failed.Apply(create("lost"))
		assert.ErrorIs(t, err, ErrLoadFailed)
		assert.False(t, changed)
		require.NoError(t, failed.Flush(ctx))
	}
	assert.Empty(t, store.seen())

	snapshot, ok, err := store.MemoryStore.Get(ctx, "usr_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored, snapshot)

	// The next open reads the store again.
	store.getErr = nil
	bridge := manager.Open(ctx, "usr_1")
	require.Equal(t, Loaded, bridge.State())
	assert.Len(t, bridge.Board().Tasks, 3)

	next, changed, err := bridge.Apply(create("four"))
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "DASH-4", next.Tasks[3].Key)

	require.NoError(t, bridge.Flush(ctx))
	assert.Equal(t, []int64{4}, store.seen())
}

func TestBridge_RefusesWritesAfterClose(t *testing.T) {
	store := newRecordingStore()
	bridge := NewBridge("usr_1", store)
	bridge.Load(context.Background())
	bridge.Close()

	_, changed, err := bridge.Apply(create("late"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, changed)
	assert.Empty(t, store.seen())
}

func TestBridge_RefusesWritesBeforeLoad(t *testing.T) {
	store := newRecordingStore()
	bridge := NewBridge("usr_1", store)
	defer bridge.Close()

	_, changed, err := bridge.Apply(create("early"))
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, changed)

	require.NoError(t, bridge.Flush(context.Background()))
	assert.Empty(t, store.seen())
}

func TestBridge_SaveThenReloadRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	bridge := NewBridge("usr_1", store, WithClock(func() time.Time { return fixed }))
	bridge.Load(context.Background())
	_, _, err := bridge.Apply(create("first"))
	require.NoError(t, err)
	_, _, err = bridge.Apply(create("second"))
	require.NoError(t, err)
	require.NoError(t, bridge.Flush(context.Background()))
	bridge.Close()

	stored, ok, err := store.Get(context.Background(), "usr_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fixed, stored.UpdatedAt)
	assert.Equal(t, int64(2), stored.Version)

	reloaded := NewBridge("usr_1", store)
	defer reloaded.Close()
	reloaded.Load(context.Background())

	b := reloaded.Board()
	require.Len(t, b.Tasks, 2)
	assert.Equal(t, "first", b.Tasks[0].Title)
	assert.Equal(t, "DASH-2", b.Tasks[1].Key)
	assert.Equal(t, 2, b.Counter)

	// versions continue from the stored one
	_, _, err = reloaded.Apply(create("third"))
	require.NoError(t, err)
	require.NoError(t, reloaded.Flush(context.Background()))
	stored, _, _ = store.Get(context.Background(), "usr_1")
	assert.Equal(t, int64(3), stored.Version)
	assert.Len(t, stored.Tasks, 3)
}

func TestBridge_UnchangedMutationDoesNotSave(t *testing.T) {
	store := newRecordingStore()
	bridge := NewBridge("usr_1", store)
	defer bridge.Close()
	bridge.Load(context.Background())

	_, changed, err := bridge.Apply(func(b model.Board) (model.Board, bool, error) {
		next, ok := board.Delete(b, "missing")
		return next, ok, nil
	})
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = bridge.Apply(create(" "))
	assert.ErrorIs(t, err, model.ErrEmptyTitle)

	require.NoError(t, bridge.Flush(context.Background()))
	assert.Empty(t, store.seen())
}

func TestBridge_WriterKeepsOnlyLatestPending(t *testing.T) {
	store := newRecordingStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{})
	release, entered := store.block, store.entered

	bridge := NewBridge("usr_1", store)
	defer bridge.Close()
	bridge.Load(context.Background())

	_, _, err := bridge.Apply(create("one"))
	require.NoError(t, err)
	<-entered

	for _, title := range []string{"two", "three", "four"} {
		_, _, err := bridge.Apply(create(title))
		require.NoError(t, err)
	}
	close(release)
	require.NoError(t, bridge.Flush(context.Background()))

	assert.Equal(t, []int64{1, 4}, store.seen())
	stored, _, _ := store.Get(context.Background(), "usr_1")
	assert.Len(t, stored.Tasks, 4)
}

func TestMemoryStore_RejectsStaleVersions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", model.Snapshot{Version: 2, Counter: 2}))
	assert.ErrorIs(t, store.Set(ctx, "k", model.Snapshot{Version: 1}), model.ErrStaleWrite)
	assert.ErrorIs(t, store.Set(ctx, "k", model.Snapshot{Version: 2}), model.ErrStaleWrite)
	require.NoError(t, store.Set(ctx, "k", model.Snapshot{Version: 3, Counter: 3}))

	stored, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, stored.Counter)
}

func TestManager_SharesBridgePerKey(t *testing.T) {
	manager := NewManager(NewMemoryStore())
	ctx := context.Background()

	a := manager.Open(ctx, "usr_1")
	b := manager.Open(ctx, "usr_1")
	c := manager.Open(ctx, "usr_2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, Loaded, c.State())

	_, _, err := a.Apply(create("x"))
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, "usr_1"))

	stored, ok, err := manager.Store().Get(ctx, "usr_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stored.Tasks, 1)

	assert.NotSame(t, a, manager.Open(ctx, "usr_1"))
	require.NoError(t, manager.Close(ctx))
}
