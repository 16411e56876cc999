package model

import (
	"fmt"
	"strings"
)

const (
	SchemaTracker = "tracker"
	SchemaPlanner = "planner"

	// LocalKey is the storage key of schemas that persist a single board.
	LocalKey = "local"
)

type Column struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

// Schema describes one board variant: its columns, enumerations and which
// optional task fields exist.
type Schema struct {
	Name            string   `json:"name"`
	KeyPrefix       string   `json:"keyPrefix,omitempty"`
	Columns         []Column `json:"columns"`
	Priorities      []Option `json:"priorities"`
	Types           []Option `json:"types,omitempty"`
	DefaultPriority string   `json:"defaultPriority"`
	DefaultType     string   `json:"defaultType,omitempty"`
	DoneColumn      string   `json:"doneColumn"`
	HasKeys         bool     `json:"hasKeys"`
	HasTypes        bool     `json:"hasTypes"`
	HasAssignee     bool     `json:"hasAssignee"`
	DueSoonDays     int      `json:"dueSoonDays"`
	SharedKey       bool     `json:"sharedKey"`
}

func Tracker(prefix string) Schema {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "DASH"
	}
	return Schema{
		Name:      SchemaTracker,
		KeyPrefix: prefix,
		Columns: []Column{
			{ID: "todo", Label: "TO DO"},
			{ID: "in_progress", Label: "IN PROGRESS"},
			{ID: "review", Label: "IN REVIEW"},
			{ID: "done", Label: "DONE"},
		},
		Priorities: []Option{
			{ID: "highest", Label: "Highest", Icon: "⬆⬆"},
			{ID: "high", Label: "High", Icon: "⬆"},
			{ID: "medium", Label: "Medium", Icon: "⬛"},
			{ID: "low", Label: "Low", Icon: "⬇"},
		},
		Types: []Option{
			{ID: "task", Label: "Task", Icon: "✓"},
			{ID: "bug", Label: "Bug", Icon: "●"},
			{ID: "story", Label: "Story", Icon: "◆"},
			{ID: "subtask", Label: "Sub-task", Icon: "◇"},
		},
		DefaultPriority: "medium",
		DefaultType:     "task",
		DoneColumn:      "done",
		HasKeys:         true,
		HasTypes:        true,
		HasAssignee:     true,
	}
}

func Planner() Schema {
	return Schema{
		Name: SchemaPlanner,
		Columns: []Column{
			{ID: "pending", Label: "PENDING"},
			{ID: "in_progress", Label: "IN PROGRESS"},
			{ID: "review", Label: "REVIEW"},
			{ID: "completed", Label: "COMPLETED"},
		},
		Priorities: []Option{
			{ID: "low", Label: "Low"},
			{ID: "medium", Label: "Medium"},
			{ID: "high", Label: "High"},
		},
		DefaultPriority: "medium",
		DoneColumn:      "completed",
		DueSoonDays:     3,
		SharedKey:       true,
	}
}

func SchemaByName(name, keyPrefix string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemaTracker:
		return Tracker(keyPrefix), nil
	case SchemaPlanner:
		return Planner(), nil
	default:
		return Schema{}, fmt.Errorf("unknown variant %q", name)
	}
}

func (s Schema) HasColumn(id string) bool {
	_, ok := s.Column(id)
	return ok
}

func (s Schema) Column(id string) (Column, bool) {
	for _, column := range s.Columns {
		if column.ID == id {
			return column, true
		}
	}
	return Column{}, false
}

func (s Schema) ColumnIDs() []string {
	ids := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		ids = append(ids, column.ID)
	}
	return ids
}

func (s Schema) HasType(id string) bool {
	return hasOption(s.Types, id)
}

func (s Schema) HasPriority(id string) bool {
	return hasOption(s.Priorities, id)
}

// NextKey renders the display key the next created task will get.
func (s Schema) NextKey(counter int) string {
	if !s.HasKeys {
		return ""
	}
	return fmt.Sprintf("%s-%d", s.KeyPrefix, counter+1)
}

// StorageKey maps an authenticated identity to the key its board is stored under.
func (s Schema) StorageKey(identityID string) string {
	if s.SharedKey {
		return LocalKey
	}
	return identityID
}

func (s Schema) priorityOrDefault(value, current string) string {
	value = strings.TrimSpace(value)
	if s.HasPriority(value) {
		return value
	}
	if current != "" {
		return current
	}
	return s.DefaultPriority
}

func (s Schema) typeOrDefault(value, current string) string {
	value = strings.TrimSpace(value)
	if s.HasType(value) {
		return value
	}
	if current != "" {
		return current
	}
	return s.DefaultType
}

func hasOption(options []Option, id string) bool {
	for _, option := range options {
		if option.ID == id {
			return true
		}
	}
	return false
}
