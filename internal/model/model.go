package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyTitle  = errors.New("title is required")
	ErrStaleWrite  = errors.New("stale snapshot version")
	ErrTaskMissing = errors.New("task not found")
)

const DateLayout = "2006-01-02"

type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Key         string    `json:"key,omitempty" yaml:"key,omitempty"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Study       string    `json:"study" yaml:"study"`
	Assignee    string    `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	DueDate     string    `json:"dueDate" yaml:"dueDate"`
	Priority    string    `json:"priority" yaml:"priority"`
	Type        string    `json:"type,omitempty" yaml:"type,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	Created     time.Time `json:"created" yaml:"created"`
}

// Form is the editable part of a task as submitted by a create or edit dialog.
type Form struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Study       string `json:"study"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
	Type        string `json:"type"`
	Status      string `json:"status"`
}

// Board is the session-scoped state: the task list plus the key counter.
type Board struct {
	Tasks   []Task `json:"tasks" yaml:"tasks"`
	Counter int    `json:"counter" yaml:"counter"`
}

// Snapshot is what gets persisted for a session.
type Snapshot struct {
	Tasks     []Task    `json:"tasks" yaml:"tasks"`
	Counter   int       `json:"counter" yaml:"counter"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
	Version   int64     `json:"version" yaml:"version"`
}

func (s Snapshot) Board() Board {
	tasks := s.Tasks
	if tasks == nil {
		tasks = []Task{}
	}
	return Board{Tasks: tasks, Counter: s.Counter}
}

func FormFromTask(task Task) Form {
	return Form{
		Title:       task.Title,
		Description: task.Description,
		Study:       task.Study,
		Assignee:    task.Assignee,
		DueDate:     task.DueDate,
		Priority:    task.Priority,
		Type:        task.Type,
		Status:      task.Status,
	}
}

// NewTask validates form and builds a task with schema defaults applied.
// The key is left empty; key assignment belongs to the board counter.
func NewTask(form Form, defaultStatus string, schema Schema, id string, created time.Time) (Task, error) {
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return Task{}, ErrEmptyTitle
	}

	status := strings.TrimSpace(form.Status)
	if !schema.HasColumn(status) {
		status = strings.TrimSpace(defaultStatus)
	}
	if !schema.HasColumn(status) {
		status = schema.Columns[0].ID
	}

	task := Task{
		ID:          id,
		Title:       title,
		Description: form.Description,
		Study:       strings.TrimSpace(form.Study),
		DueDate:     NormalizeDate(form.DueDate),
		Priority:    schema.priorityOrDefault(form.Priority, ""),
		Status:      status,
		Created:     created,
	}
	if schema.HasAssignee {
		task.Assignee = strings.TrimSpace(form.Assignee)
	}
	if schema.HasTypes {
		task.Type = schema.typeOrDefault(form.Type, "")
	}
	return task, nil
}

// Merge applies form to task the way an edit dialog saves: every field is
// replaced, enumerations that are empty or undeclared keep their value.
func Merge(task Task, form Form, schema Schema) (Task, error) {
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return task, ErrEmptyTitle
	}

	task.Title = title
	task.Description = form.Description
	task.Study = strings.TrimSpace(form.Study)
	task.DueDate = NormalizeDate(form.DueDate)
	task.Priority = schema.priorityOrDefault(form.Priority, task.Priority)
	if status := strings.TrimSpace(form.Status); schema.HasColumn(status) {
		task.Status = status
	}
	if schema.HasAssignee {
		task.Assignee = strings.TrimSpace(form.Assignee)
	}
	if schema.HasTypes {
		task.Type = schema.typeOrDefault(form.Type, task.Type)
	}
	return task, nil
}

// NormalizeDate keeps a YYYY-MM-DD value and drops anything unparseable.
func NormalizeDate(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if _, err := time.Parse(DateLayout, trimmed); err != nil {
		return ""
	}
	return trimmed
}

// FormatDate renders a due date the way cards show it, e.g. "Mar 4".
func FormatDate(value string) string {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return ""
	}
	return parsed.Format("Jan 2")
}

func Initials(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}
