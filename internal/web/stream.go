package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/Joseda-hg/dashtrack/internal/auth"
)

type sessionMessage struct {
	Status string `json:"status"`
	Email  string `json:"email,omitempty"`
}

// authStream pushes the caller's session state: once on connect, then again
// when that session ends.
func (s *Server) authStream(w http.ResponseWriter, r *http.Request) {
	// Accept refuses browser origins other than the server's own host.
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Printf("[web] websocket accept error: %v", err)
		return
	}
	defer conn.CloseNow()

	token := s.auth.TokenFromRequest(r)
	ended := make(chan struct{}, 1)
	if token != "" {
		tokenHash := auth.HashToken(token)
		unsubscribe := s.auth.Subscribe(func(e auth.Event) {
			if e.Kind == auth.SignedOut && e.TokenHash == tokenHash {
				select {
				case ended <- struct{}{}:
				default:
				}
			}
		})
		defer unsubscribe()
	}

	ctx := conn.CloseRead(r.Context())

	identity, _, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		_ = s.send(ctx, conn, sessionMessage{Status: auth.Unauthenticated.String()})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	if err := s.send(ctx, conn, sessionMessage{Status: auth.Authenticated.String(), Email: identity.Email}); err != nil {
		return
	}

	select {
	case <-ctx.Done():
	case <-ended:
		_ = s.send(ctx, conn, sessionMessage{Status: auth.Unauthenticated.String()})
		conn.Close(websocket.StatusNormalClosure, "signed out")
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, msg sessionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
