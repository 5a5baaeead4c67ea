// Package api exposes learner sessions over HTTP and streams session
// notifications over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pencilsharp/pencilsharp/internal/account"
	"github.com/pencilsharp/pencilsharp/internal/session"
)

const (
	maxBodyBytes = 1 << 20
	checkTimeout = 2 * time.Second
)

// Check is a named readiness probe such as a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config holds dependencies for a Server.
type Config struct {
	Accounts       account.Store
	Sessions       *session.Manager
	Checks         []Check
	OriginPatterns []string // extra WebSocket origins; same-origin is always allowed
}

// Server serves the learner API.
type Server struct {
	accounts account.Store
	sessions *session.Manager
	tokens   *tokenStore
	checks   []Check
	origins  []string
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &Server{
		accounts: cfg.Accounts,
		sessions: cfg.Sessions,
		tokens:   newTokenStore(),
		checks:   cfg.Checks,
		origins:  cfg.OriginPatterns,
	}, nil
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /v1/signup", s.handleSignup)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("POST /v1/logout", s.authed(s.handleLogout))

	mux.HandleFunc("GET /v1/curriculum", s.authed(s.handleCurriculum))
	mux.HandleFunc("POST /v1/select/subject", s.authed(s.handleSelectSubject))
	mux.HandleFunc("POST /v1/select/unit", s.authed(s.handleSelectUnit))
	mux.HandleFunc("POST /v1/select/topic", s.authed(s.handleSelectTopic))
	mux.HandleFunc("POST /v1/complete", s.authed(s.handleComplete))
	mux.HandleFunc("POST /v1/streak", s.authed(s.handleStreak))
	mux.HandleFunc("POST /v1/daily/reset", s.authed(s.handleResetDaily))
	mux.HandleFunc("GET /v1/progress", s.authed(s.handleProgress))
	mux.HandleFunc("GET /v1/report.xlsx", s.authed(s.handleReport))
	mux.HandleFunc("GET /v1/events", s.authed(s.handleEvents))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Fn(ctx)
		cancel()
		if err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "check": c.Name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
