package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask_RejectsBlankTitle(t *testing.T) {
	_, err := NewTask(Form{Title: "   "}, "todo", Tracker(""), "id-1", time.Now())
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestNewTask_AppliesDefaults(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	task, err := NewTask(Form{Title: "  Write report  ", Status: "nowhere"}, "review", Tracker(""), "id-1", created)
	require.NoError(t, err)

	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, "review", task.Status)
	assert.Equal(t, "medium", task.Priority)
	assert.Equal(t, "task", task.Type)
	assert.Equal(t, created, task.Created)
}

func TestNewTask_FallsBackToFirstColumn(t *testing.T) {
	task, err := NewTask(Form{Title: "x"}, "", Planner(), "id-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "pending", task.Status)
}

func TestNewTask_PlannerDropsTrackerFields(t *testing.T) {
	task, err := NewTask(Form{Title: "x", Type: "bug", Assignee: "Julio"}, "", Planner(), "id-1", time.Now())
	require.NoError(t, err)
	assert.Empty(t, task.Type)
	assert.Empty(t, task.Assignee)
}

func TestMerge_KeepsUndeclaredEnumerations(t *testing.T) {
	schema := Tracker("")
	task := Task{ID: "a", Key: "DASH-1", Title: "old", Status: "review", Priority: "high", Type: "bug"}

	merged, err := Merge(task, Form{Title: "new", Status: "bogus", Priority: "", Type: "nope", DueDate: "not-a-date"}, schema)
	require.NoError(t, err)

	assert.Equal(t, "new", merged.Title)
	assert.Equal(t, "review", merged.Status)
	assert.Equal(t, "high", merged.Priority)
	assert.Equal(t, "bug", merged.Type)
	assert.Equal(t, "", merged.DueDate)
	assert.Equal(t, "DASH-1", merged.Key)
}

func TestSchema_NextKeyAndStorageKey(t *testing.T) {
	tracker := Tracker("ops")
	assert.Equal(t, "OPS-5", tracker.NextKey(4))
	assert.Equal(t, "usr_1", tracker.StorageKey("usr_1"))

	planner := Planner()
	assert.Equal(t, "", planner.NextKey(4))
	assert.Equal(t, LocalKey, planner.StorageKey("usr_1"))
}

func TestSchemaByName(t *testing.T) {
	schema, err := SchemaByName("Planner", "")
	require.NoError(t, err)
	assert.Equal(t, SchemaPlanner, schema.Name)

	_, err = SchemaByName("scrum", "")
	assert.Error(t, err)
}

func TestFormatDateAndInitials(t *testing.T) {
	assert.Equal(t, "Mar 4", FormatDate("2026-03-04"))
	assert.Equal(t, "", FormatDate(""))
	assert.Equal(t, "JU", Initials("julio"))
	assert.Equal(t, "A", Initials(" a "))
}
