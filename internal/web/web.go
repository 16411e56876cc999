package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Joseda-hg/dashtrack/internal/auth"
	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/httpmw"
	"github.com/Joseda-hg/dashtrack/internal/model"
	"github.com/Joseda-hg/dashtrack/internal/session"
)

const releaseTimeout = 5 * time.Second

//go:embed templates/*.tmpl
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
}

var (
	boardTemplate = template.Must(template.New("board.tmpl").Funcs(templateFuncs).ParseFS(templateFS, "templates/board.tmpl"))
	loginTemplate = template.Must(template.ParseFS(templateFS, "templates/login.tmpl"))
)

// HistoryStore is implemented by backends that keep per-task history.
type HistoryStore interface {
	ListHistory(ctx context.Context, key, taskID string) ([]model.HistoryEntry, error)
}

type Option func(*Server)

func WithHistory(history HistoryStore) Option {
	return func(s *Server) {
		s.history = history
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func WithGenerator(gen board.Generator) Option {
	return func(s *Server) {
		if gen != nil {
			s.gen = gen
		}
	}
}

type Server struct {
	manager *session.Manager
	auth    *auth.Service
	schema  model.Schema
	history HistoryStore
	logger  *log.Logger
	now     func() time.Time
	gen     board.Generator
}

func NewServer(manager *session.Manager, authService *auth.Service, schema model.Schema, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		auth:    authService,
		schema:  schema,
		logger:  log.New(io.Discard, "", 0),
		now:     time.Now,
		gen:     board.UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	authHandler := auth.NewHandler(s.auth)
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signin", authHandler.SignIn).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signout", s.signOut(authHandler)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/session", authHandler.Session).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/stream", s.authStream).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth.RequireAPI)
	api.HandleFunc("/board", s.apiBoard).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.apiCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.apiUpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}", s.apiDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/move", s.apiMoveTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/history", s.apiTaskHistory).Methods(http.MethodGet)

	r.HandleFunc("/login", s.loginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.loginSubmit).Methods(http.MethodPost)
	r.HandleFunc("/register", s.registerSubmit).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logoutSubmit).Methods(http.MethodPost)

	pages := r.NewRoute().Subrouter()
	pages.Use(s.auth.RequirePage)
	pages.HandleFunc("/", s.boardPage).Methods(http.MethodGet)
	pages.HandleFunc("/tasks", s.createTaskSubmit).Methods(http.MethodPost)
	pages.HandleFunc("/tasks/{id}", s.updateTaskSubmit).Methods(http.MethodPost)
	pages.HandleFunc("/tasks/{id}/move", s.moveTaskSubmit).Methods(http.MethodPost)
	pages.HandleFunc("/tasks/{id}/delete", s.deleteTaskSubmit).Methods(http.MethodPost)

	return httpmw.Chain(r,
		httpmw.WithRequestID,
		httpmw.WithRecover(s.logger),
		httpmw.WithAccessLog(s.logger),
	)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "schema": s.schema.Name})
}

// bridgeFor returns the loaded board of the signed-in identity. Loading is
// detached from the request so a dropped connection cannot leave the board
// loaded empty.
func (s *Server) bridgeFor(r *http.Request) (*session.Bridge, auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, auth.Identity{}, false
	}
	key := s.schema.StorageKey(identity.ID)
	return s.manager.Open(context.WithoutCancel(r.Context()), key), identity, true
}

// signOut ends the session through the auth handler, then lets go of the
// identity's board.
func (s *Server) signOut(authHandler *auth.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _, signedIn := s.auth.AuthenticateRequest(r)
		authHandler.SignOut(w, r)
		if signedIn {
			s.releaseBoard(r, identity)
		}
	}
}

// releaseBoard saves and drops the identity's board. Shared boards stay open
// for everyone else.
func (s *Server) releaseBoard(r *http.Request, identity auth.Identity) {
	if s.schema.SharedKey {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), releaseTimeout)
	defer cancel()
	if err := s.manager.Release(ctx, s.schema.StorageKey(identity.ID)); err != nil {
		s.logger.Printf("[web] release board: %v", err)
	}
}

func filterFromRequest(r *http.Request) board.Filter {
	q := r.URL.Query()
	return board.Filter{
		Query: strings.TrimSpace(q.Get("q")),
		Type:  strings.TrimSpace(q.Get("type")),
		Study: strings.TrimSpace(q.Get("study")),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
