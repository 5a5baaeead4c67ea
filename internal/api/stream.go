package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pencilsharp/pencilsharp/internal/events"
)

const (
	streamBuffer = 64
	writeTimeout = 5 * time.Second

	// EventSubscribed is the first message on every stream. Notifications
	// follow only after it has been sent.
	EventSubscribed = "subscribed"
)

// StreamMessage is one notification pushed to a WebSocket client.
type StreamMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// handleEvents streams the learner's session notifications. Observers run
// under the session lock, so they only enqueue; a slow client loses
// messages instead of stalling the session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "account_id", acct.ID, "error", err)
		return
	}
	defer conn.CloseNow()

	out := make(chan StreamMessage, streamBuffer)
	observer := events.ObserverFunc(func(eventType string, payload any) {
		select {
		case out <- StreamMessage{Type: eventType, Payload: payload}:
		default:
			slog.Warn("event stream full, dropping", "account_id", acct.ID, "event_type", eventType)
		}
	})

	id, err := s.sessions.Subscribe(r.Context(), acct.ID, observer)
	if err != nil {
		slog.Error("subscribe failed", "account_id", acct.ID, "error", err)
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	defer s.sessions.Unsubscribe(acct.ID, id)

	ctx := conn.CloseRead(r.Context())
	if err := write(ctx, conn, StreamMessage{Type: EventSubscribed}); err != nil {
		return
	}
	slog.Debug("event stream opened", "account_id", acct.ID)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("event stream closed", "account_id", acct.ID)
			return
		case msg := <-out:
			if err := write(ctx, conn, msg); err != nil {
				slog.Debug("event stream write failed", "account_id", acct.ID, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
