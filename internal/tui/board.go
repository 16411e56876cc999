package tui

import (
	"context"
	"strings"
	"time"

	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/model"
	"github.com/Joseda-hg/dashtrack/internal/session"
)

const historyTimeout = 2 * time.Second

// boardReady reports whether board keys should act.
func (u *UI) boardReady() bool {
	return u.bridge != nil && !u.inputActive()
}

// refresh rederives the visible board from the bridge.
func (u *UI) refresh() {
	if u.bridge == nil {
		return
	}
	u.view = board.View(u.bridge.Board(), u.schema, u.filter, u.now())
	if len(u.selected) != len(u.view.Columns) {
		u.selected = make([]int, len(u.view.Columns))
	}
	for index, column := range u.view.Columns {
		u.selected[index] = max(min(u.selected[index], len(column.Cards)-1), 0)
	}
	u.column = max(min(u.column, len(u.view.Columns)-1), 0)
	u.loadHistory()
}

func (u *UI) loadHistory() {
	u.entries = nil
	card := u.selectedCard()
	if u.history == nil || card == nil || u.bridge == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := u.bridge.Flush(ctx); err != nil {
		u.status = err.Error()
		return
	}
	entries, err := u.history.ListHistory(ctx, u.bridge.Key(), card.ID)
	if err != nil {
		u.status = err.Error()
		return
	}
	u.entries = entries
}

func (u *UI) selectedIn(column int) int {
	if column < 0 || column >= len(u.selected) {
		return 0
	}
	return u.selected[column]
}

func (u *UI) selectedCard() *board.Card {
	if u.column < 0 || u.column >= len(u.view.Columns) {
		return nil
	}
	cards := u.view.Columns[u.column].Cards
	index := u.selectedIn(u.column)
	if index < 0 || index >= len(cards) {
		return nil
	}
	return &cards[index]
}

func (u *UI) currentColumnView() string {
	if u.column < 0 || u.column >= len(u.schema.Columns) {
		return ""
	}
	return columnViewName(u.schema.Columns[u.column].ID)
}

// apply runs fn against the session board and rederives the view.
func (u *UI) apply(fn session.Mutation) bool {
	if u.bridge == nil {
		u.status = session.ErrNotLoaded.Error()
		return false
	}
	if _, _, err := u.bridge.Apply(fn); err != nil {
		u.status = err.Error()
		return false
	}
	u.status = ""
	u.refresh()
	return true
}

func (u *UI) focusColumn(gui *gocui.Gui, index int) error {
	if !u.boardReady() || index < 0 || index >= len(u.view.Columns) {
		return nil
	}
	u.column = index
	if gui != nil {
		_, _ = gui.SetCurrentView(u.currentColumnView())
	}
	u.loadHistory()
	return nil
}

func (u *UI) nextColumn(gui *gocui.Gui, _ *gocui.View) error {
	return u.focusColumn(gui, u.column+1)
}

func (u *UI) prevColumn(gui *gocui.Gui, _ *gocui.View) error {
	return u.focusColumn(gui, u.column-1)
}

func (u *UI) nextColumnWrap(gui *gocui.Gui, _ *gocui.View) error {
	if len(u.view.Columns) == 0 {
		return nil
	}
	return u.focusColumn(gui, (u.column+1)%len(u.view.Columns))
}

func (u *UI) moveDown(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() || u.column >= len(u.view.Columns) {
		return nil
	}
	if u.selected[u.column] < len(u.view.Columns[u.column].Cards)-1 {
		u.selected[u.column]++
		u.loadHistory()
	}
	return nil
}

func (u *UI) moveUp(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() || u.column >= len(u.view.Columns) {
		return nil
	}
	if u.selected[u.column] > 0 {
		u.selected[u.column]--
		u.loadHistory()
	}
	return nil
}

// reload rederives the board, reading the store again when the first load
// failed.
func (u *UI) reload(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() {
		return nil
	}
	u.status = ""
	if u.bridge.State() == session.LoadFailed {
		u.bridge = u.manager.Open(context.Background(), u.bridge.Key())
	}
	u.refresh()
	u.noteLoadFailure()
	return nil
}

func (u *UI) clearFilters(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() {
		return nil
	}
	u.filter = board.Filter{}
	u.refresh()
	return nil
}

func (u *UI) cycleTypeFilter(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() || !u.schema.HasTypes {
		return nil
	}
	options := append([]string{""}, optionIDs(u.schema.Types)...)
	u.filter.Type = cycleOption(options, u.filter.Type, 1)
	u.refresh()
	return nil
}

func (u *UI) cycleStudyFilter(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() {
		return nil
	}
	options := append([]string{""}, u.view.Studies...)
	u.filter.Study = cycleOption(options, u.filter.Study, 1)
	u.refresh()
	return nil
}

func (u *UI) startSearch(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() {
		return nil
	}
	u.searchActive = true
	return nil
}

func (u *UI) submitSearch(gui *gocui.Gui, view *gocui.View) error {
	if view != nil {
		u.filter.Query = strings.TrimSpace(view.Buffer())
	}
	u.closeSearch(gui)
	u.status = ""
	u.refresh()
	return nil
}

func (u *UI) cancelSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.closeSearch(gui)
	return nil
}

func (u *UI) closeSearch(gui *gocui.Gui) {
	u.searchActive = false
	if gui != nil {
		_ = gui.DeleteView(viewSearch)
		_, _ = gui.SetCurrentView(u.currentColumnView())
	}
}

func (u *UI) addTask(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() || u.column >= len(u.schema.Columns) {
		return nil
	}
	status := u.schema.Columns[u.column].ID
	u.form = &formState{
		fieldSet:      fieldSet{fields: buildFormFields(u.schema, nil, status)},
		defaultStatus: status,
	}
	return nil
}

func (u *UI) editTask(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() {
		return nil
	}
	card := u.selectedCard()
	if card == nil {
		return nil
	}
	task := card.Task
	u.form = &formState{
		fieldSet: fieldSet{fields: buildFormFields(u.schema, &task, task.Status)},
		taskID:   task.ID,
	}
	return nil
}

func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	if u.form == nil {
		return nil
	}

	form, err := parseFormFields(u.form.fieldSet)
	if err != nil {
		u.status = err.Error()
		return nil
	}

	id := u.form.taskID
	if id == "" {
		defaultStatus := u.form.defaultStatus
		if !u.apply(func(b model.Board) (model.Board, bool, error) {
			next, task, err := board.Create(b, form, defaultStatus, u.schema, u.gen)
			if err != nil {
				return b, false, err
			}
			id = task.ID
			return next, true, nil
		}) {
			return nil
		}
	} else {
		if !u.apply(func(b model.Board) (model.Board, bool, error) {
			return board.Update(b, id, form, u.schema)
		}) {
			return nil
		}
		if _, ok := board.Find(u.bridge.Board(), id); !ok {
			u.status = model.ErrTaskMissing.Error()
		}
	}

	u.closeForm(gui)
	u.selectTask(gui, id)
	return nil
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.closeForm(gui)
	return nil
}

func (u *UI) closeForm(gui *gocui.Gui) {
	u.form = nil
	if gui != nil {
		_ = gui.DeleteView(viewForm)
		_, _ = gui.SetCurrentView(u.currentColumnView())
	}
}

// selectTask focuses the column holding id and selects its card.
func (u *UI) selectTask(gui *gocui.Gui, id string) {
	for columnIndex, column := range u.view.Columns {
		for cardIndex, card := range column.Cards {
			if card.ID != id {
				continue
			}
			u.selected[columnIndex] = cardIndex
			u.column = columnIndex
			if gui != nil {
				_, _ = gui.SetCurrentView(u.currentColumnView())
			}
			u.loadHistory()
			return
		}
	}
}

func (u *UI) deleteTask(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() {
		return nil
	}
	card := u.selectedCard()
	if card == nil {
		return nil
	}
	id := card.ID
	u.apply(func(b model.Board) (model.Board, bool, error) {
		next, ok := board.Delete(b, id)
		return next, ok, nil
	})
	return nil
}

func (u *UI) moveTaskLeft(gui *gocui.Gui, _ *gocui.View) error {
	return u.moveTask(gui, -1)
}

func (u *UI) moveTaskRight(gui *gocui.Gui, _ *gocui.View) error {
	return u.moveTask(gui, 1)
}

func (u *UI) moveTask(gui *gocui.Gui, delta int) error {
	if !u.boardReady() {
		return nil
	}
	card := u.selectedCard()
	target := u.column + delta
	if card == nil || target < 0 || target >= len(u.schema.Columns) {
		return nil
	}
	id, status := card.ID, u.schema.Columns[target].ID
	if u.apply(func(b model.Board) (model.Board, bool, error) {
		next, ok := board.Move(b, id, status, u.schema)
		return next, ok, nil
	}) {
		u.selectTask(gui, id)
	}
	return nil
}
