package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

func TestSetThenGetRoundTripsSnapshot(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()
	updated := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	snapshot := model.Snapshot{
		Tasks: []model.Task{
			{ID: "a", Key: "DASH-1", Title: "Write tests", Status: "todo", Priority: "medium", Type: "task", DueDate: "2026-05-03"},
		},
		Counter:   1,
		UpdatedAt: updated,
		Version:   1,
	}
	if err := store.Set(ctx, "usr_1", snapshot); err != nil {
		t.Fatalf("set board: %v", err)
	}

	got, ok, err := store.Get(ctx, "usr_1")
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if !ok {
		t.Fatalf("expected stored board")
	}
	if got.Counter != 1 || got.Version != 1 {
		t.Fatalf("expected counter 1 version 1, got %d %d", got.Counter, got.Version)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Fatalf("expected updatedAt %v, got %v", updated, got.UpdatedAt)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Key != "DASH-1" || got.Tasks[0].DueDate != "2026-05-03" {
		t.Fatalf("unexpected tasks: %+v", got.Tasks)
	}

	if _, ok, err := store.Get(ctx, "usr_2"); err != nil || ok {
		t.Fatalf("expected missing board for usr_2, got ok=%v err=%v", ok, err)
	}
}

func TestSetRejectsStaleVersion(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()
	if err := store.Set(ctx, "k", model.Snapshot{Tasks: []model.Task{}, Counter: 3, Version: 5}); err != nil {
		t.Fatalf("set v5: %v", err)
	}

	err := store.Set(ctx, "k", model.Snapshot{Tasks: []model.Task{}, Counter: 1, Version: 4})
	if !errors.Is(err, model.ErrStaleWrite) {
		t.Fatalf("expected ErrStaleWrite, got %v", err)
	}

	got, _, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if got.Counter != 3 {
		t.Fatalf("expected counter to stay 3, got %d", got.Counter)
	}
}

func TestSetRecordsTaskHistory(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()
	task := model.Task{ID: "a", Key: "DASH-1", Title: "Write tests", Status: "todo", Priority: "medium"}
	other := model.Task{ID: "b", Key: "DASH-2", Title: "Other", Status: "todo", Priority: "low"}

	steps := [][]model.Task{
		{task, other},
		{withStatus(task, "in_progress"), other},
		{withTitle(withStatus(task, "in_progress"), "Write more tests"), other},
		{other},
	}
	for i, tasks := range steps {
		if err := store.Set(ctx, "usr_1", model.Snapshot{Tasks: tasks, Counter: 2, Version: int64(i + 1)}); err != nil {
			t.Fatalf("set step %d: %v", i, err)
		}
	}

	history, err := store.ListHistory(ctx, "usr_1", "a")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	want := []string{"created", "moved", "updated", "deleted"}
	if len(history) != len(want) {
		t.Fatalf("expected %d history entries, got %d: %+v", len(want), len(history), history)
	}
	for i, entry := range history {
		if entry.EventType != want[i] {
			t.Fatalf("entry %d: expected %q, got %q", i, want[i], entry.EventType)
		}
	}
	if history[1].Details != "moved: status: 'todo' -> 'in_progress'" {
		t.Fatalf("unexpected move details: %q", history[1].Details)
	}
	if history[2].Details != "updated: title: 'Write tests' -> 'Write more tests'" {
		t.Fatalf("unexpected update details: %q", history[2].Details)
	}

	otherHistory, err := store.ListHistory(ctx, "usr_1", "b")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(otherHistory) != 1 {
		t.Fatalf("expected untouched task to only have its created entry, got %d", len(otherHistory))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrate(context.Background(), db); err != nil {
		t.Fatalf("reapply schema: %v", err)
	}
}

func TestMigrateAddsVersionToOldBoards(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE boards (key TEXT PRIMARY KEY, payload TEXT NOT NULL, counter INTEGER NOT NULL DEFAULT 0, updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)"); err != nil {
		t.Fatalf("create old table: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO boards (key, payload, counter) VALUES ('local', '[]', 2)"); err != nil {
		t.Fatalf("seed old table: %v", err)
	}

	if err := migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var version int64
	if err := db.QueryRowContext(ctx, "SELECT version FROM boards WHERE key = 'local'").Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != 0 {
		t.Fatalf("expected version 0 for an old row, got %d", version)
	}
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashtrack.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal mode, got %q", mode)
	}
}

func withStatus(task model.Task, status string) model.Task {
	task.Status = status
	return task
}

func withTitle(task model.Task, title string) model.Task {
	task.Title = title
	return task
}

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return NewStore(db), func() {
		_ = db.Close()
	}
}
