package tui

import (
	"context"
	"strings"
	"time"

	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/dashtrack/internal/auth"
	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/session"
)

const releaseTimeout = 5 * time.Second

func (u *UI) onGateChange(state auth.GateState, identity auth.Identity) {
	u.update(func() {
		u.applySession(state, identity)
	})
}

// applySession closes the board on sign-out and opens the identity's board
// on sign-in. Nothing is shown until the board has loaded.
func (u *UI) applySession(state auth.GateState, identity auth.Identity) {
	u.gateState = state
	if state != auth.Authenticated {
		u.releaseBoard()
		u.identity = auth.Identity{}
		u.form = nil
		u.searchActive = false
		u.helpActive = false
		if u.login == nil {
			u.login = newLoginState()
		}
		return
	}

	if u.identity.ID == identity.ID && (u.bridge != nil || u.loading) {
		return
	}
	u.releaseBoard()
	u.identity = identity
	u.login = nil
	u.status = ""
	u.filter = board.Filter{}
	u.openBoard(identity)
}

func (u *UI) openBoard(identity auth.Identity) {
	u.loading = true
	key := u.schema.StorageKey(identity.ID)
	load := func() {
		bridge := u.manager.Open(context.Background(), key)
		u.update(func() {
			if u.gateState != auth.Authenticated || u.identity.ID != identity.ID {
				return
			}
			u.bridge = bridge
			u.loading = false
			u.column = 0
			u.refresh()
			u.noteLoadFailure()
			if u.gui != nil {
				_, _ = u.gui.SetCurrentView(u.currentColumnView())
			}
		})
	}
	if u.gui == nil {
		load()
		return
	}
	go load()
}

func (u *UI) noteLoadFailure() {
	if u.bridge != nil && u.bridge.State() == session.LoadFailed {
		u.status = session.ErrLoadFailed.Error() + " (r to retry)"
	}
}

// releaseBoard flushes pending saves and forgets the board.
func (u *UI) releaseBoard() {
	u.loading = false
	if u.bridge == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := u.manager.Release(ctx, u.bridge.Key()); err != nil {
		u.status = err.Error()
	}
	u.bridge = nil
	u.view = board.BoardView{}
	u.entries = nil
}

func (u *UI) submitLogin(gui *gocui.Gui, _ *gocui.View) error {
	login := u.login
	if login == nil {
		return nil
	}
	email := strings.TrimSpace(login.value(fieldEmail))
	password := login.value(fieldPassword)

	ctx := context.Background()
	var err error
	if login.register {
		err = u.sessions.Register(ctx, email, password)
	} else {
		err = u.sessions.SignIn(ctx, email, password)
	}
	if err != nil {
		login.err = err.Error()
		return nil
	}
	login.err = ""
	return nil
}

func (u *UI) toggleLoginMode(gui *gocui.Gui, _ *gocui.View) error {
	if u.login == nil {
		return nil
	}
	u.login.register = !u.login.register
	u.login.err = ""
	return nil
}

func (u *UI) signOut(gui *gocui.Gui, _ *gocui.View) error {
	if !u.boardReady() {
		return nil
	}
	if err := u.sessions.SignOut(context.Background()); err != nil {
		u.status = err.Error()
	}
	return nil
}
