package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldStudy       = "study"
	fieldAssignee    = "assignee"
	fieldDue         = "due"
	fieldPriority    = "priority"
	fieldType        = "type"
	fieldStatus      = "status"
	fieldEmail       = "email"
	fieldPassword    = "password"
)

type formField struct {
	Key   string
	Label string
	Value string
	// Options makes the field a picker cycled with space/←→.
	Options []string
	Secret  bool
}

func (f formField) isChoice() bool {
	return len(f.Options) > 0
}

// fieldSet is the state shared by every multi-field dialog.
type fieldSet struct {
	fields []formField
	index  int
}

func (s *fieldSet) current() *formField {
	if s == nil || s.index < 0 || s.index >= len(s.fields) {
		return nil
	}
	return &s.fields[s.index]
}

func (s *fieldSet) next() {
	if s.index < len(s.fields)-1 {
		s.index++
	}
}

func (s *fieldSet) prev() {
	if s.index > 0 {
		s.index--
	}
}

func (s *fieldSet) value(key string) string {
	for _, field := range s.fields {
		if field.Key == key {
			return field.Value
		}
	}
	return ""
}

type formState struct {
	fieldSet
	taskID        string
	defaultStatus string
}

type loginState struct {
	fieldSet
	register bool
	err      string
}

func newLoginState() *loginState {
	return &loginState{fieldSet: fieldSet{fields: []formField{
		{Key: fieldEmail, Label: "Email"},
		{Key: fieldPassword, Label: "Password", Secret: true},
	}}}
}

func optionIDs(options []model.Option) []string {
	ids := make([]string, 0, len(options))
	for _, option := range options {
		ids = append(ids, option.ID)
	}
	return ids
}

// buildFormFields lays out the task dialog for schema. A nil task opens an
// empty dialog whose status is preset to status.
func buildFormFields(schema model.Schema, task *model.Task, status string) []formField {
	form := model.Form{
		Priority: schema.DefaultPriority,
		Type:     schema.DefaultType,
		Status:   status,
	}
	if task != nil {
		form = model.FormFromTask(*task)
	}
	if !schema.HasColumn(form.Status) && len(schema.Columns) > 0 {
		form.Status = schema.Columns[0].ID
	}

	fields := []formField{
		{Key: fieldTitle, Label: "Title", Value: form.Title},
		{Key: fieldDescription, Label: "Description", Value: form.Description},
		{Key: fieldStudy, Label: "Study", Value: form.Study},
	}
	if schema.HasAssignee {
		fields = append(fields, formField{Key: fieldAssignee, Label: "Assignee", Value: form.Assignee})
	}
	fields = append(fields,
		formField{Key: fieldDue, Label: "Due (YYYY-MM-DD)", Value: form.DueDate},
		formField{Key: fieldPriority, Label: "Priority (space/←→)", Value: form.Priority, Options: optionIDs(schema.Priorities)},
	)
	if schema.HasTypes {
		fields = append(fields, formField{Key: fieldType, Label: "Type (space/←→)", Value: form.Type, Options: optionIDs(schema.Types)})
	}
	fields = append(fields, formField{Key: fieldStatus, Label: "Status (space/←→)", Value: form.Status, Options: schema.ColumnIDs()})
	return fields
}

func parseFormFields(set fieldSet) (model.Form, error) {
	due := strings.TrimSpace(set.value(fieldDue))
	if due != "" {
		if _, err := time.Parse(model.DateLayout, due); err != nil {
			return model.Form{}, fmt.Errorf("invalid due date")
		}
	}

	return model.Form{
		Title:       strings.TrimSpace(set.value(fieldTitle)),
		Description: strings.TrimSpace(set.value(fieldDescription)),
		Study:       strings.TrimSpace(set.value(fieldStudy)),
		Assignee:    strings.TrimSpace(set.value(fieldAssignee)),
		DueDate:     due,
		Priority:    set.value(fieldPriority),
		Type:        set.value(fieldType),
		Status:      set.value(fieldStatus),
	}, nil
}

func cycleOption(options []string, current string, delta int) string {
	if len(options) == 0 {
		return current
	}
	index := -1
	for i, option := range options {
		if option == current {
			index = i
			break
		}
	}
	if index < 0 {
		if delta > 0 {
			return options[0]
		}
		return options[len(options)-1]
	}
	index = (index + delta + len(options)) % len(options)
	return options[index]
}
