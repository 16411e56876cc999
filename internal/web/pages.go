package web

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/Joseda-hg/dashtrack/internal/auth"
	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/model"
	"github.com/Joseda-hg/dashtrack/internal/session"
)

type boardPageData struct {
	Identity auth.Identity
	Schema   model.Schema
	View     board.BoardView
	Error    string
}

type loginPageData struct {
	Register bool
	Email    string
	Error    string
	MinLen   int
}

func (s *Server) boardPage(w http.ResponseWriter, r *http.Request) {
	bridge, identity, ok := s.bridgeFor(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	status, message := http.StatusOK, r.URL.Query().Get("error")
	if bridge.State() == session.LoadFailed {
		status, message = http.StatusServiceUnavailable, session.ErrLoadFailed.Error()
	}
	s.renderBoard(w, status, boardPageData{
		Identity: identity,
		Schema:   s.schema,
		View:     board.View(bridge.Board(), s.schema, filterFromRequest(r), s.now()),
		Error:    message,
	})
}

func (s *Server) renderBoard(w http.ResponseWriter, status int, data boardPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := boardTemplate.Execute(w, data); err != nil {
		s.logger.Printf("[web] render board: %v", err)
	}
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.auth.AuthenticateRequest(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, http.StatusOK, loginPageData{Register: r.URL.Query().Get("mode") == "register"})
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, data loginPageData) {
	data.MinLen = auth.MinPasswordLength
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginTemplate.Execute(w, data); err != nil {
		s.logger.Printf("[web] render login: %v", err)
	}
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	identity, token, exp, err := s.auth.SignIn(r.Context(), email, password)
	if err != nil {
		s.renderLogin(w, auth.StatusFor(err), loginPageData{Email: email, Error: err.Error()})
		return
	}
	s.logger.Printf("[web] %s signed in", identity.Email)
	s.auth.SetSessionCookie(w, r, token, exp)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) registerSubmit(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	_, token, exp, err := s.auth.Register(r.Context(), email, password)
	if err != nil {
		s.renderLogin(w, auth.StatusFor(err), loginPageData{Register: true, Email: email, Error: err.Error()})
		return
	}
	s.auth.SetSessionCookie(w, r, token, exp)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logoutSubmit(w http.ResponseWriter, r *http.Request) {
	identity, _, signedIn := s.auth.AuthenticateRequest(r)
	if err := s.auth.SignOut(r.Context(), s.auth.TokenFromRequest(r)); err != nil {
		s.logger.Printf("[web] sign out: %v", err)
	}
	if signedIn {
		s.releaseBoard(r, identity)
	}
	s.auth.ClearSessionCookie(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func formFromRequest(r *http.Request) model.Form {
	return model.Form{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Study:       r.PostFormValue("study"),
		Assignee:    r.PostFormValue("assignee"),
		DueDate:     r.PostFormValue("dueDate"),
		Priority:    r.PostFormValue("priority"),
		Type:        r.PostFormValue("type"),
		Status:      r.PostFormValue("status"),
	}
}

// backToBoard redirects to the board, carrying an error message if any.
func backToBoard(w http.ResponseWriter, r *http.Request, err error) {
	target := "/"
	if err != nil {
		target += "?error=" + url.QueryEscape(err.Error())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) createTaskSubmit(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	_, err := s.create(bridge, formFromRequest(r), r.PostFormValue("defaultStatus"))
	backToBoard(w, r, err)
}

func (s *Server) updateTaskSubmit(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	_, err := s.update(bridge, mux.Vars(r)["id"], formFromRequest(r))
	backToBoard(w, r, err)
}

func (s *Server) moveTaskSubmit(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	_, err := s.move(bridge, mux.Vars(r)["id"], r.PostFormValue("status"))
	backToBoard(w, r, err)
}

func (s *Server) deleteTaskSubmit(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	backToBoard(w, r, s.delete(bridge, mux.Vars(r)["id"]))
}
