package board

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

// Generator supplies task ids and creation timestamps.
type Generator interface {
	NewID() string
	Now() time.Time
}

// ErrIDCollision is returned when the generator keeps producing ids already on
// the board.
var ErrIDCollision = errors.New("could not generate a unique task id")

const maxIDAttempts = 8

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string  { return uuid.NewString() }
func (UUIDGenerator) Now() time.Time { return time.Now().UTC() }

// Create appends a task built from form. The counter only advances for
// schemas with keys, and never goes backwards, so keys are not reused.
func Create(b model.Board, form model.Form, defaultStatus string, schema model.Schema, gen Generator) (model.Board, model.Task, error) {
	if gen == nil {
		gen = UUIDGenerator{}
	}

	id, err := uniqueID(b.Tasks, gen)
	if err != nil {
		return b, model.Task{}, err
	}

	task, err := model.NewTask(form, defaultStatus, schema, id, gen.Now())
	if err != nil {
		return b, model.Task{}, err
	}

	counter := b.Counter
	if schema.HasKeys {
		task.Key = schema.NextKey(counter)
		counter++
	}

	tasks := make([]model.Task, 0, len(b.Tasks)+1)
	tasks = append(tasks, b.Tasks...)
	tasks = append(tasks, task)
	return model.Board{Tasks: tasks, Counter: counter}, task, nil
}

func uniqueID(tasks []model.Task, gen Generator) (string, error) {
	for range maxIDAttempts {
		if id := gen.NewID(); id != "" && !hasTask(tasks, id) {
			return id, nil
		}
	}
	return "", ErrIDCollision
}

func Update(b model.Board, id string, form model.Form, schema model.Schema) (model.Board, bool, error) {
	index := indexOf(b.Tasks, id)
	if index < 0 {
		return b, false, nil
	}
	merged, err := model.Merge(b.Tasks[index], form, schema)
	if err != nil {
		return b, false, err
	}
	tasks := cloneTasks(b.Tasks)
	tasks[index] = merged
	return model.Board{Tasks: tasks, Counter: b.Counter}, true, nil
}

func Delete(b model.Board, id string) (model.Board, bool) {
	index := indexOf(b.Tasks, id)
	if index < 0 {
		return b, false
	}
	tasks := make([]model.Task, 0, len(b.Tasks)-1)
	tasks = append(tasks, b.Tasks[:index]...)
	tasks = append(tasks, b.Tasks[index+1:]...)
	return model.Board{Tasks: tasks, Counter: b.Counter}, true
}

// Move changes only the status of the task. Undeclared columns are refused.
func Move(b model.Board, id, status string, schema model.Schema) (model.Board, bool) {
	if !schema.HasColumn(status) {
		return b, false
	}
	index := indexOf(b.Tasks, id)
	if index < 0 || b.Tasks[index].Status == status {
		return b, false
	}
	tasks := cloneTasks(b.Tasks)
	tasks[index].Status = status
	return model.Board{Tasks: tasks, Counter: b.Counter}, true
}

func Find(b model.Board, id string) (model.Task, bool) {
	index := indexOf(b.Tasks, id)
	if index < 0 {
		return model.Task{}, false
	}
	return b.Tasks[index], true
}

func indexOf(tasks []model.Task, id string) int {
	for i, task := range tasks {
		if task.ID == id {
			return i
		}
	}
	return -1
}

func hasTask(tasks []model.Task, id string) bool {
	return indexOf(tasks, id) >= 0
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out
}
