package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/dashtrack/internal/auth"
	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/model"
	"github.com/Joseda-hg/dashtrack/internal/session"
)

const (
	viewHeader = "header"
	viewFooter = "footer"
	viewDetail = "detail"
	viewSearch = "search"
	viewForm   = "form"
	viewHelp   = "help"
	viewLogin  = "login"
	viewNotice = "notice"

	columnViewPrefix = "column:"
)

// HistoryStore is implemented by backends that keep per-task history.
type HistoryStore interface {
	ListHistory(ctx context.Context, key, taskID string) ([]model.HistoryEntry, error)
}

// SessionSource is a Provider that can resolve a remembered session.
type SessionSource interface {
	auth.Provider
	Start(ctx context.Context)
}

type Options struct {
	Schema    model.Schema
	Manager   *session.Manager
	Sessions  SessionSource
	History   HistoryStore
	Now       func() time.Time
	Generator board.Generator
}

type UI struct {
	schema   model.Schema
	manager  *session.Manager
	sessions SessionSource
	history  HistoryStore
	now      func() time.Time
	gen      board.Generator
	gui      *gocui.Gui
	gate     *auth.Gate

	gateState auth.GateState
	identity  auth.Identity
	bridge    *session.Bridge
	loading   bool

	filter   board.Filter
	view     board.BoardView
	column   int
	selected []int
	entries  []model.HistoryEntry

	login        *loginState
	form         *formState
	formEditor   *formEditor
	searchActive bool
	helpActive   bool
	status       string
}

type formEditor struct {
	ui *UI
}

func newUI(opts Options) *UI {
	u := &UI{
		schema:   opts.Schema,
		manager:  opts.Manager,
		sessions: opts.Sessions,
		history:  opts.History,
		now:      opts.Now,
		gen:      opts.Generator,
		selected: make([]int, len(opts.Schema.Columns)),
	}
	if u.now == nil {
		u.now = time.Now
	}
	if u.gen == nil {
		u.gen = board.UUIDGenerator{}
	}
	u.formEditor = &formEditor{ui: u}
	u.gate = auth.NewGate(opts.Sessions, nil)
	u.gate.OnChange(u.onGateChange)
	return u
}

func Run(opts Options) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(opts)
	defer ui.close()
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}

	go opts.Sessions.Start(context.Background())

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

func (u *UI) close() {
	u.gate.Close()
	u.releaseBoard()
}

// update runs fn on the UI goroutine.
func (u *UI) update(fn func()) {
	if u.gui == nil {
		fn()
		return
	}
	u.gui.Update(func(*gocui.Gui) error {
		fn()
		return nil
	})
}

func columnViewName(id string) string {
	return columnViewPrefix + id
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'r', u.reload},
		{'g', u.clearFilters},
		{'a', u.addTask},
		{'e', u.editTask},
		{'d', u.deleteTask},
		{'<', u.moveTaskLeft},
		{'>', u.moveTaskRight},
		{'/', u.startSearch},
		{'t', u.cycleTypeFilter},
		{'p', u.cycleStudyFilter},
		{'o', u.signOut},
		{'?', u.toggleHelp},
		{gocui.KeyTab, u.nextColumnWrap},
	}
	for _, binding := range global {
		if err := gui.SetKeybinding("", binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	for index, column := range u.schema.Columns {
		name := columnViewName(column.ID)
		perColumn := []struct {
			key     any
			handler func(*gocui.Gui, *gocui.View) error
		}{
			{gocui.KeyArrowDown, u.moveDown},
			{'j', u.moveDown},
			{gocui.KeyArrowUp, u.moveUp},
			{'k', u.moveUp},
			{gocui.KeyArrowLeft, u.prevColumn},
			{'h', u.prevColumn},
			{gocui.KeyArrowRight, u.nextColumn},
			{'l', u.nextColumn},
			{gocui.KeyEnter, u.editTask},
		}
		for _, binding := range perColumn {
			if err := gui.SetKeybinding(name, binding.key, gocui.ModNone, binding.handler); err != nil {
				return err
			}
		}
		if index < 9 {
			target := index
			if err := gui.SetKeybinding("", rune('1'+index), gocui.ModNone, func(gui *gocui.Gui, _ *gocui.View) error {
				return u.focusColumn(gui, target)
			}); err != nil {
				return err
			}
		}
		if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: name, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
			return u.onColumnClick(gui, name, opts)
		}}); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}

	dialogs := []struct {
		view    string
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{viewSearch, gocui.KeyEnter, u.submitSearch},
		{viewSearch, gocui.KeyEsc, u.cancelSearch},
		{viewForm, gocui.KeyEnter, u.submitForm},
		{viewForm, gocui.KeyCtrlJ, u.submitForm},
		{viewForm, gocui.KeyTab, u.nextField},
		{viewForm, gocui.KeyBacktab, u.prevField},
		{viewForm, gocui.KeyArrowDown, u.nextField},
		{viewForm, gocui.KeyArrowUp, u.prevField},
		{viewForm, gocui.KeyEsc, u.cancelForm},
		{viewLogin, gocui.KeyEnter, u.submitLogin},
		{viewLogin, gocui.KeyTab, u.nextField},
		{viewLogin, gocui.KeyBacktab, u.prevField},
		{viewLogin, gocui.KeyArrowDown, u.nextField},
		{viewLogin, gocui.KeyArrowUp, u.prevField},
		{viewLogin, gocui.KeyCtrlR, u.toggleLoginMode},
		{viewHelp, gocui.KeyEsc, u.closeHelp},
		{viewHelp, 'q', u.closeHelp},
		{viewHelp, '?', u.closeHelp},
		{viewDetail, gocui.MouseWheelUp, u.scrollUp},
		{viewDetail, gocui.MouseWheelDown, u.scrollDown},
	}
	for _, binding := range dialogs {
		if err := gui.SetKeybinding(binding.view, binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := max(maxY-2, 1)
	footerY0 := max(footerY1-2, 1)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	if u.bridge == nil {
		u.hideBoard(gui)
		if u.login != nil {
			_ = gui.DeleteView(viewNotice)
			return u.showLogin(gui)
		}
		_ = gui.DeleteView(viewLogin)
		return u.showNotice(gui, u.noticeText())
	}
	_ = gui.DeleteView(viewLogin)
	_ = gui.DeleteView(viewNotice)

	if err := u.layoutBoard(gui, maxX, bodyTop, bodyBottom); err != nil {
		return err
	}
	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.searchActive {
		if err := u.showSearch(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewSearch)
	}

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if current := gui.CurrentView(); current == nil || (!u.inputActive() && !strings.HasPrefix(current.Name(), columnViewPrefix)) {
		_, _ = gui.SetCurrentView(u.currentColumnView())
	}
	gui.Cursor = u.searchActive || u.form != nil
	return nil
}

func (u *UI) layoutBoard(gui *gocui.Gui, maxX, bodyTop, bodyBottom int) error {
	columns := u.view.Columns
	layout := computeLayout(maxX, bodyBottom-bodyTop+1, len(columns))

	columnsY1 := bodyTop + layout.columnHeight - 1
	for index, column := range columns {
		x0 := index * layout.columnWidth
		x1 := x0 + layout.columnWidth - 1
		if index == len(columns)-1 {
			x1 = maxX - 1
		}
		view, err := gui.SetView(columnViewName(column.Column.ID), x0, bodyTop, x1, columnsY1, 0)
		if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		view.Title = fmt.Sprintf("%d %s (%d)", index+1, column.Column.Label, len(column.Cards))
		focused := index == u.column
		applyViewStyle(view, focused, true)
		u.renderColumn(view, column, u.selectedIn(index), focused)
	}

	detailView, err := gui.SetView(viewDetail, 0, columnsY1+1, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "Details"
		detailView.Wrap = true
	}
	applyViewStyle(detailView, false, false)
	u.renderDetail(detailView)
	return nil
}

func (u *UI) hideBoard(gui *gocui.Gui) {
	for _, column := range u.schema.Columns {
		_ = gui.DeleteView(columnViewName(column.ID))
	}
	_ = gui.DeleteView(viewDetail)
	_ = gui.DeleteView(viewForm)
	_ = gui.DeleteView(viewSearch)
	_ = gui.DeleteView(viewHelp)
}

type layout struct {
	columnWidth  int
	columnHeight int
	detailHeight int
}

func computeLayout(width, height, columns int) layout {
	safeWidth := max(width, 20)
	safeHeight := max(height, 8)
	columns = max(columns, 1)

	columnHeight := int(float64(safeHeight) * 0.65)
	if columnHeight < 5 {
		columnHeight = 5
	}
	detailHeight := safeHeight - columnHeight
	if detailHeight < 3 {
		detailHeight = 3
		columnHeight = max(safeHeight-detailHeight, 3)
	}

	return layout{
		columnWidth:  max(safeWidth/columns, 10),
		columnHeight: columnHeight,
		detailHeight: detailHeight,
	}
}

func (u *UI) noticeText() string {
	if u.gateState == auth.Resolving {
		return "Checking session..."
	}
	return "Loading board..."
}

func (u *UI) showNotice(gui *gocui.Gui, text string) error {
	maxX, maxY := gui.Size()
	width := max(30, len(text)+4)
	x0 := max((maxX-width)/2, 0)
	y0 := max(maxY/2-1, 0)

	view, err := gui.SetView(viewNotice, x0, y0, x0+width, y0+2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Frame = true
	view.Clear()
	fmt.Fprint(view, text)
	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	if u.identity.ID == "" {
		fmt.Fprintf(view, "dashtrack %s | not signed in", u.schema.Name)
		return
	}

	query := strings.TrimSpace(u.filter.Query)
	if query == "" {
		query = "type / to search"
	}
	typeLabel := "any"
	if u.filter.Type != "" {
		typeLabel = optionLabel(u.schema.Types, u.filter.Type)
	}
	studyLabel := "any"
	if u.filter.Study != "" {
		studyLabel = u.filter.Study
	}

	line := fmt.Sprintf("dashtrack %s | %s | Search: %s", u.schema.Name, u.identity.Email, query)
	if u.schema.HasTypes {
		line += fmt.Sprintf(" | Type: %s", typeLabel)
	}
	line += fmt.Sprintf(" | Study: %s | %s", studyLabel, formatSummary(u.view.Summary))
	if u.view.NextKey != "" {
		line += fmt.Sprintf(" | next %s", u.view.NextKey)
	}
	fmt.Fprint(view, line)
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	switch {
	case u.login != nil:
		fmt.Fprintln(view, "enter submit | tab next field | ctrl-r switch sign in/register | ctrl-c quit")
	case u.bridge == nil:
		fmt.Fprintln(view, "ctrl-c quit")
	default:
		fmt.Fprintln(view, "a add | e edit | d delete | < > move | j/k select | h/l column | 1-9 column | tab cycle")
		fmt.Fprintln(view, "/ search | t type | p study | g clear | r reload | o sign out | ? help | q quit")
	}
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderColumn(view *gocui.View, column board.ColumnView, selected int, focused bool) {
	view.Clear()
	for i, card := range column.Cards {
		prefix := " "
		if i == selected {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatCard(card, u.schema))
	}
	if focused {
		view.SetCursor(0, max(min(selected, len(column.Cards)-1), 0))
	}
}

func (u *UI) renderDetail(view *gocui.View) {
	view.Clear()
	card := u.selectedCard()
	if card == nil {
		fmt.Fprint(view, "No task selected")
		return
	}

	lines := cardDetail(*card, u.schema)
	if len(u.entries) > 0 {
		lines = append(lines, "", "History")
		for _, entry := range u.entries {
			lines = append(lines, formatHistoryEntry(entry))
		}
	}
	fmt.Fprint(view, strings.Join(lines, "\n"))
}

func (u *UI) onColumnClick(gui *gocui.Gui, viewName string, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() || u.bridge == nil {
		return nil
	}
	view, err := gui.View(viewName)
	if err != nil {
		return nil
	}
	for index, column := range u.view.Columns {
		if columnViewName(column.Column.ID) != viewName {
			continue
		}
		_, y0, _, _ := view.Dimensions()
		_, oy := view.Origin()
		row := max(opts.Y-y0-1+oy, 0)
		u.selected[index] = max(min(row, len(column.Cards)-1), 0)
		return u.focusColumn(gui, index)
	}
	return nil
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 18
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) showSearch(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(30, maxX/2)
	x0 := (maxX - width) / 2
	y0 := (maxY - 3) / 2

	view, err := gui.SetView(viewSearch, x0, y0, x0+width, y0+2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Search title, description, study or key"
		view.Wrap = true
		view.Clear()
		fmt.Fprint(view, u.filter.Query)
	}
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(viewSearch)
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := len(u.form.fields) + 1
	x0 := (maxX - width) / 2
	y0 := max((maxY-height)/2, 0)

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	if u.form.taskID != "" {
		view.Title = "Edit Task"
	} else {
		view.Title = "New Task in " + columnLabel(u.schema, u.form.defaultStatus)
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderFields(view, &u.form.fieldSet)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) showLogin(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(50, maxX/3)
	height := 5
	x0 := (maxX - width) / 2
	y0 := max((maxY-height)/2, 0)

	view, err := gui.SetView(viewLogin, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Title = "Sign in"
	if u.login.register {
		view.Title = "Create account"
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderFields(view, &u.login.fieldSet)
	if u.login.err != "" {
		fmt.Fprintf(view, "\n%s", u.login.err)
	}
	_, _ = gui.SetCurrentView(viewLogin)
	gui.Cursor = true
	return nil
}

func (u *UI) renderFields(view *gocui.View, set *fieldSet) {
	if set == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range set.fields {
		prefix := "  "
		if index == set.index {
			prefix = "> "
		}
		value := field.Value
		if field.Secret {
			value = strings.Repeat("*", len([]rune(value)))
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, value)
	}
	current := set.current()
	if current == nil {
		return
	}
	cursorX := len([]rune(current.Label)) + len([]rune(current.Value)) + 4
	view.SetCursor(cursorX, set.index)
}

// activeFields is the dialog the editor types into.
func (u *UI) activeFields() *fieldSet {
	if u.form != nil {
		return &u.form.fieldSet
	}
	if u.login != nil {
		return &u.login.fieldSet
	}
	return nil
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || view == nil {
		return false
	}
	set := ui.activeFields()
	field := set.current()
	if field == nil {
		return false
	}

	if field.isChoice() {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = cycleOption(field.Options, field.Value, 1)
		case gocui.KeyArrowLeft:
			field.Value = cycleOption(field.Options, field.Value, -1)
		}
		ui.renderFields(view, set)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderFields(view, set)
	return true
}

func (u *UI) nextField(gui *gocui.Gui, view *gocui.View) error {
	set := u.activeFields()
	if set == nil {
		return nil
	}
	set.next()
	u.renderFields(view, set)
	return nil
}

func (u *UI) prevField(gui *gocui.Gui, view *gocui.View) error {
	set := u.activeFields()
	if set == nil {
		return nil
	}
	set.prev()
	u.renderFields(view, set)
	return nil
}

func (u *UI) toggleHelp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	if gui != nil {
		_ = gui.DeleteView(viewHelp)
		_, _ = gui.SetCurrentView(u.currentColumnView())
	}
	return nil
}

func (u *UI) inputActive() bool {
	return u.searchActive || u.form != nil || u.helpActive || u.login != nil
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  h/l or arrows switch column | tab cycle columns | 1-9 jump to column",
		"  j/k or arrows move selection",
		"  mouse click to focus/select, wheel scrolls",
		"",
		"Actions:",
		"  a add task to focused column | e or enter edit | d delete",
		"  < move left | > move right",
		"  enter save (form) | tab next field | space/left/right cycle choices",
		"",
		"Search/Filter:",
		"  / search | t cycle type | p cycle study | g clear filters",
		"",
		"Session:",
		"  o sign out | ctrl-r switch sign in/register (login)",
		"",
		"Other:",
		"  r reload | ? help | esc/q close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}
