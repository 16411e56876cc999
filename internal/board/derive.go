package board

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

type Filter struct {
	Query string `json:"query"`
	Type  string `json:"type"`
	Study string `json:"study"`
}

type Bucket struct {
	Column model.Column `json:"column"`
	Tasks  []model.Task `json:"tasks"`
}

type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	Pct       int `json:"pct"`
}

// VisibleTasks keeps the tasks matching every non-empty part of filter, in
// list order.
func VisibleTasks(tasks []model.Task, filter Filter) []model.Task {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	result := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if query != "" && !matchesQuery(task, query) {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		if filter.Study != "" && task.Study != filter.Study {
			continue
		}
		result = append(result, task)
	}
	return result
}

func matchesQuery(task model.Task, query string) bool {
	for _, value := range []string{task.Title, task.Key, task.Study, task.Description, task.Assignee} {
		if strings.Contains(strings.ToLower(value), query) {
			return true
		}
	}
	return false
}

// GroupByColumn returns one bucket per column. Tasks whose status is not a
// declared column land in no bucket.
func GroupByColumn(tasks []model.Task, columns []model.Column) []Bucket {
	buckets := make([]Bucket, 0, len(columns))
	indexByID := make(map[string]int, len(columns))
	for i, column := range columns {
		indexByID[column.ID] = i
		buckets = append(buckets, Bucket{Column: column, Tasks: []model.Task{}})
	}
	for _, task := range tasks {
		if i, ok := indexByID[task.Status]; ok {
			buckets[i].Tasks = append(buckets[i].Tasks, task)
		}
	}
	return buckets
}

func IsOverdue(dueDate, status, doneColumn string, today time.Time) bool {
	days, ok := DaysUntil(dueDate, today)
	if !ok || status == doneColumn {
		return false
	}
	return days < 0
}

func IsDueSoon(dueDate, status, doneColumn string, today time.Time, within int) bool {
	days, ok := DaysUntil(dueDate, today)
	if !ok || status == doneColumn {
		return false
	}
	return days >= 0 && days <= within
}

// DaysUntil counts calendar days from today's midnight to the due date's
// midnight, both in today's location.
func DaysUntil(dueDate string, today time.Time) (int, bool) {
	trimmed := strings.TrimSpace(dueDate)
	if trimmed == "" {
		return 0, false
	}
	due, err := time.ParseInLocation(model.DateLayout, trimmed, today.Location())
	if err != nil {
		return 0, false
	}
	start := midnight(today)
	hours := due.Sub(start).Hours()
	return int(math.Round(hours / 24)), true
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func Summarize(tasks []model.Task, doneColumn string, today time.Time) Summary {
	summary := Summary{Total: len(tasks)}
	for _, task := range tasks {
		if task.Status == doneColumn {
			summary.Completed++
		}
		if IsOverdue(task.DueDate, task.Status, doneColumn, today) {
			summary.Overdue++
		}
	}
	if summary.Total > 0 {
		summary.Pct = int(math.Round(100 * float64(summary.Completed) / float64(summary.Total)))
	}
	return summary
}

// Studies lists the distinct non-empty study tags, sorted.
func Studies(tasks []model.Task) []string {
	seen := make(map[string]struct{})
	result := []string{}
	for _, task := range tasks {
		if task.Study == "" {
			continue
		}
		if _, ok := seen[task.Study]; ok {
			continue
		}
		seen[task.Study] = struct{}{}
		result = append(result, task.Study)
	}
	sort.Strings(result)
	return result
}

// Card is a task with the flags a board surface needs to render it.
type Card struct {
	model.Task
	Overdue  bool   `json:"overdue"`
	DueSoon  bool   `json:"dueSoon"`
	DueLabel string `json:"dueLabel,omitempty"`
	Initials string `json:"initials,omitempty"`
}

type ColumnView struct {
	Column model.Column `json:"column"`
	Cards  []Card       `json:"cards"`
}

type BoardView struct {
	Columns []ColumnView `json:"columns"`
	Summary Summary      `json:"summary"`
	Studies []string     `json:"studies"`
	NextKey string       `json:"nextKey,omitempty"`
	Filter  Filter       `json:"filter"`
}

// View derives everything a surface shows for b under filter. The summary
// and study list cover the whole board, not just the visible tasks.
func View(b model.Board, schema model.Schema, filter Filter, today time.Time) BoardView {
	visible := VisibleTasks(b.Tasks, filter)
	buckets := GroupByColumn(visible, schema.Columns)

	columns := make([]ColumnView, 0, len(buckets))
	for _, bucket := range buckets {
		cards := make([]Card, 0, len(bucket.Tasks))
		for _, task := range bucket.Tasks {
			cards = append(cards, newCard(task, schema, today))
		}
		columns = append(columns, ColumnView{Column: bucket.Column, Cards: cards})
	}

	return BoardView{
		Columns: columns,
		Summary: Summarize(b.Tasks, schema.DoneColumn, today),
		Studies: Studies(b.Tasks),
		NextKey: schema.NextKey(b.Counter),
		Filter:  filter,
	}
}

func newCard(task model.Task, schema model.Schema, today time.Time) Card {
	card := Card{
		Task:     task,
		Overdue:  IsOverdue(task.DueDate, task.Status, schema.DoneColumn, today),
		DueLabel: model.FormatDate(task.DueDate),
		Initials: model.Initials(task.Assignee),
	}
	if schema.DueSoonDays > 0 && !card.Overdue {
		card.DueSoon = IsDueSoon(task.DueDate, task.Status, schema.DoneColumn, today, schema.DueSoonDays)
	}
	return card
}
