package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

// Store keeps one board document per key and records a history entry for
// every task that changed between two saved snapshots.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

type boardRow struct {
	payload   string
	counter   int
	version   int64
	updatedAt time.Time
}

func (s *Store) Get(ctx context.Context, key string) (model.Snapshot, bool, error) {
	row, err := getBoard(ctx, s.DB, key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, false, nil
	}
	if err != nil {
		return model.Snapshot{}, false, err
	}

	snapshot, err := decodeSnapshot(row)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *Store) Set(ctx context.Context, key string, snapshot model.Snapshot) error {
	payload, err := json.Marshal(snapshot.Tasks)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var before []model.Task
	current, err := getBoard(ctx, tx, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if snapshot.Version <= current.version {
			return model.ErrStaleWrite
		}
		previous, err := decodeSnapshot(current)
		if err != nil {
			return err
		}
		before = previous.Tasks
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO boards (key, payload, counter, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			counter = excluded.counter,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		key, string(payload), snapshot.Counter, snapshot.Version, snapshot.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("save board %s: %w", key, err)
	}

	for _, event := range diffTasks(before, snapshot.Tasks) {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO history (board_key, task_id, event_type, details) VALUES (?, ?, ?, ?)",
			key, event.TaskID, event.EventType, event.Details,
		); err != nil {
			return fmt.Errorf("add history: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListHistory(ctx context.Context, key, taskID string) ([]model.HistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, board_key, task_id, event_type, details, created_at
		FROM history
		WHERE board_key = ? AND task_id = ?
		ORDER BY id`, key, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []model.HistoryEntry{}
	for rows.Next() {
		var entry model.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.BoardKey, &entry.TaskID, &entry.EventType, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBoard(ctx context.Context, q queryer, key string) (boardRow, error) {
	var row boardRow
	err := q.QueryRowContext(ctx,
		"SELECT payload, counter, version, updated_at FROM boards WHERE key = ?", key,
	).Scan(&row.payload, &row.counter, &row.version, &row.updatedAt)
	return row, err
}

func decodeSnapshot(row boardRow) (model.Snapshot, error) {
	tasks := []model.Task{}
	if err := json.Unmarshal([]byte(row.payload), &tasks); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode board: %w", err)
	}
	return model.Snapshot{
		Tasks:     tasks,
		Counter:   row.counter,
		UpdatedAt: row.updatedAt,
		Version:   row.version,
	}, nil
}

// diffTasks compares two saved task lists by id.
func diffTasks(before, after []model.Task) []model.HistoryEntry {
	previous := make(map[string]model.Task, len(before))
	for _, task := range before {
		previous[task.ID] = task
	}

	events := []model.HistoryEntry{}
	for _, task := range after {
		old, ok := previous[task.ID]
		delete(previous, task.ID)
		switch {
		case !ok:
			events = append(events, model.HistoryEntry{TaskID: task.ID, EventType: "created", Details: formatCreatedDetails(task)})
		case onlyStatusChanged(old, task):
			events = append(events, model.HistoryEntry{TaskID: task.ID, EventType: "moved", Details: "moved: " + formatChange("status", old.Status, task.Status)})
		case !sameTask(old, task):
			events = append(events, model.HistoryEntry{TaskID: task.ID, EventType: "updated", Details: formatTaskDiff(old, task)})
		}
	}
	for _, task := range before {
		if _, gone := previous[task.ID]; gone {
			events = append(events, model.HistoryEntry{TaskID: task.ID, EventType: "deleted", Details: formatDeletedDetails(task)})
		}
	}
	return events
}

func onlyStatusChanged(before, after model.Task) bool {
	if before.Status == after.Status {
		return false
	}
	before.Status = after.Status
	return sameTask(before, after)
}

// sameTask ignores Created, which never changes but may differ in its
// in-memory representation after a JSON round trip.
func sameTask(a, b model.Task) bool {
	a.Created, b.Created = time.Time{}, time.Time{}
	return a == b
}

func formatCreatedDetails(task model.Task) string {
	return fmt.Sprintf("created: %s title='%s' status=%s priority=%s due=%s", valueOrNone(task.Key), task.Title, task.Status, task.Priority, valueOrNone(task.DueDate))
}

func formatDeletedDetails(task model.Task) string {
	return fmt.Sprintf("deleted: %s title='%s' status=%s priority=%s due=%s", valueOrNone(task.Key), task.Title, task.Status, task.Priority, valueOrNone(task.DueDate))
}

func formatTaskDiff(before, after model.Task) string {
	changes := []string{}
	if before.Title != after.Title {
		changes = append(changes, formatChange("title", before.Title, after.Title))
	}
	if before.Description != after.Description {
		changes = append(changes, formatChange("description", before.Description, after.Description))
	}
	if before.Study != after.Study {
		changes = append(changes, formatChange("study", before.Study, after.Study))
	}
	if before.Assignee != after.Assignee {
		changes = append(changes, formatChange("assignee", before.Assignee, after.Assignee))
	}
	if before.Status != after.Status {
		changes = append(changes, formatChange("status", before.Status, after.Status))
	}
	if before.Priority != after.Priority {
		changes = append(changes, formatChange("priority", before.Priority, after.Priority))
	}
	if before.Type != after.Type {
		changes = append(changes, formatChange("type", before.Type, after.Type))
	}
	if before.DueDate != after.DueDate {
		changes = append(changes, formatChange("due", before.DueDate, after.DueDate))
	}

	if len(changes) == 0 {
		return "updated: no changes"
	}

	return "updated: " + strings.Join(changes, "; ")
}

func formatChange(field, before, after string) string {
	return fmt.Sprintf("%s: '%s' -> '%s'", field, valueOrNone(before), valueOrNone(after))
}

func valueOrNone(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "none"
	}
	return trimmed
}
