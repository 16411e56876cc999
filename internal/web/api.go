package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/model"
	"github.com/Joseda-hg/dashtrack/internal/session"
)

type boardResponse struct {
	board.BoardView
	Schema model.Schema `json:"schema"`
}

type createRequest struct {
	model.Form
	DefaultStatus string `json:"defaultStatus"`
}

type moveRequest struct {
	Status string `json:"status"`
}

// GET /api/board
func (s *Server) apiBoard(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if bridge.State() == session.LoadFailed {
		writeError(w, http.StatusServiceUnavailable, session.ErrLoadFailed.Error())
		return
	}
	view := board.View(bridge.Board(), s.schema, filterFromRequest(r), s.now())
	writeJSON(w, http.StatusOK, boardResponse{BoardView: view, Schema: s.schema})
}

// POST /api/tasks
func (s *Server) apiCreateTask(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in createRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := s.create(bridge, in.Form, in.DefaultStatus)
	if err != nil {
		s.writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"task":    task,
		"nextKey": s.schema.NextKey(bridge.Board().Counter),
	})
}

// PUT /api/tasks/{id} changes the fields present in the body; omitted fields
// keep their current values.
func (s *Server) apiUpdateTask(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := mux.Vars(r)["id"]
	current, found := board.Find(bridge.Board(), id)
	if !found {
		writeError(w, http.StatusNotFound, model.ErrTaskMissing.Error())
		return
	}
	form := model.FormFromTask(current)
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := s.update(bridge, id, form)
	if err != nil {
		s.writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

// DELETE /api/tasks/{id} succeeds whether or not the task still exists.
func (s *Server) apiDeleteTask(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.delete(bridge, mux.Vars(r)["id"]); err != nil {
		s.writeMutationErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/tasks/{id}/move
func (s *Server) apiMoveTask(w http.ResponseWriter, r *http.Request) {
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in moveRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := s.move(bridge, mux.Vars(r)["id"], in.Status)
	if err != nil {
		s.writeMutationErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

// GET /api/tasks/{id}/history
func (s *Server) apiTaskHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not kept by this backend")
		return
	}
	bridge, _, ok := s.bridgeFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	// saves are asynchronous; let pending ones land first
	if err := bridge.Flush(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	history, err := s.history.ListHistory(r.Context(), bridge.Key(), mux.Vars(r)["id"])
	if err != nil {
		s.logger.Printf("[web] list history: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

var errUnknownStatus = errors.New("unknown status")

func (s *Server) create(bridge *session.Bridge, form model.Form, defaultStatus string) (model.Task, error) {
	var created model.Task
	_, _, err := bridge.Apply(func(b model.Board) (model.Board, bool, error) {
		next, task, err := board.Create(b, form, defaultStatus, s.schema, s.gen)
		if err != nil {
			return b, false, err
		}
		created = task
		return next, true, nil
	})
	return created, err
}

func (s *Server) update(bridge *session.Bridge, id string, form model.Form) (model.Task, error) {
	_, _, err := bridge.Apply(func(b model.Board) (model.Board, bool, error) {
		return board.Update(b, id, form, s.schema)
	})
	if err != nil {
		return model.Task{}, err
	}
	task, found := board.Find(bridge.Board(), id)
	if !found {
		return model.Task{}, model.ErrTaskMissing
	}
	return task, nil
}

func (s *Server) delete(bridge *session.Bridge, id string) error {
	_, _, err := bridge.Apply(func(b model.Board) (model.Board, bool, error) {
		next, ok := board.Delete(b, id)
		return next, ok, nil
	})
	return err
}

func (s *Server) move(bridge *session.Bridge, id, status string) (model.Task, error) {
	status = strings.TrimSpace(status)
	if !s.schema.HasColumn(status) {
		return model.Task{}, errUnknownStatus
	}
	_, _, err := bridge.Apply(func(b model.Board) (model.Board, bool, error) {
		next, ok := board.Move(b, id, status, s.schema)
		return next, ok, nil
	})
	if err != nil {
		return model.Task{}, err
	}
	task, found := board.Find(bridge.Board(), id)
	if !found {
		return model.Task{}, model.ErrTaskMissing
	}
	return task, nil
}

func (s *Server) writeMutationErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrEmptyTitle), errors.Is(err, errUnknownStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrTaskMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNotLoaded), errors.Is(err, session.ErrLoadFailed), errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Printf("[web] mutation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
