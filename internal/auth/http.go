package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

func (s *Service) CookieName() string {
	return s.cookieName
}

func shouldUseSecureCookie(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

func (s *Service) SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   shouldUseSecureCookie(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   shouldUseSecureCookie(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest reads the session cookie, falling back to a bearer token.
func (s *Service) TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func (s *Service) AuthenticateRequest(r *http.Request) (Identity, Session, bool) {
	identity, session, err := s.Authenticate(r.Context(), s.TokenFromRequest(r))
	if err != nil {
		if !errors.Is(err, ErrUnauthenticated) {
			s.logger.Printf("[auth] authenticate request: %v", err)
		}
		return Identity{}, Session{}, false
	}
	return identity, session, true
}

func (s *Service) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, session, ok := s.AuthenticateRequest(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := withSessionContext(WithIdentity(r.Context(), identity), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, session, ok := s.AuthenticateRequest(r)
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := withSessionContext(WithIdentity(r.Context(), identity), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler serves the credential endpoints under /api/auth.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StatusFor maps a credential error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrEmailInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeAuthErr(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		h.service.logger.Printf("[auth] %v", err)
		writeErr(w, code, "could not complete sign-in")
		return
	}
	writeErr(w, code, err.Error())
}

func (h *Handler) signedIn(w http.ResponseWriter, r *http.Request, code int, identity Identity, token string, exp time.Time) {
	h.service.SetSessionCookie(w, r, token, exp)
	writeJSON(w, code, map[string]any{
		"ok":        true,
		"user":      identity,
		"expiresAt": exp.Format(time.RFC3339),
	})
}

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	identity, token, exp, err := h.service.Register(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeAuthErr(w, err)
		return
	}
	h.signedIn(w, r, http.StatusCreated, identity, token, exp)
}

// POST /api/auth/signin
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	identity, token, exp, err := h.service.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeAuthErr(w, err)
		return
	}
	h.signedIn(w, r, http.StatusOK, identity, token, exp)
}

// GET /api/auth/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	identity, session, ok := h.service.AuthenticateRequest(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": identity,
		"session": map[string]any{
			"createdAt": session.CreatedAt.Format(time.RFC3339),
			"expiresAt": session.ExpiresAt.Format(time.RFC3339),
		},
	})
}

// POST /api/auth/signout
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context(), h.service.TokenFromRequest(r)); err != nil {
		h.service.logger.Printf("[auth] sign out: %v", err)
	}
	h.service.ClearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
