package api

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/pencilsharp/pencilsharp/internal/account"
)

type ctxKey struct{}

// tokenStore maps opaque bearer tokens to signed-in accounts. Tokens live
// until logout or process exit.
type tokenStore struct {
	mu     sync.RWMutex
	tokens map[string]account.Account
	open   map[string]int // live tokens per account ID
}

func newTokenStore() *tokenStore {
	return &tokenStore{
		tokens: make(map[string]account.Account),
		open:   make(map[string]int),
	}
}

func (t *tokenStore) issue(acct account.Account) string {
	token := rand.Text()
	t.mu.Lock()
	t.tokens[token] = acct
	t.open[acct.ID]++
	t.mu.Unlock()
	return token
}

func (t *tokenStore) lookup(token string) (account.Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acct, ok := t.tokens[token]
	return acct, ok
}

// revoke deletes a token and reports whether it was the account's last one.
func (t *tokenStore) revoke(token string) (account.Account, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	acct, ok := t.tokens[token]
	if !ok {
		return account.Account{}, false
	}
	delete(t.tokens, token)
	t.open[acct.ID]--
	if t.open[acct.ID] > 0 {
		return acct, false
	}
	delete(t.open, acct.ID)
	return acct, true
}

type authResponse struct {
	Account account.Account `json:"account"`
	Token   string          `json:"token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := s.accounts.Create(r.Context(), req.Email, req.Password, req.Name)
	var verr *account.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	case errors.Is(err, account.ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}

	slog.Info("account created", "account_id", acct.ID)
	writeJSON(w, http.StatusCreated, authResponse{Account: acct, Token: s.tokens.issue(acct)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := s.accounts.Verify(r.Context(), req.Email, req.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		slog.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Account: acct, Token: s.tokens.issue(acct)})
}

// handleLogout revokes the token. Signing out of the last token also
// releases the in-memory session; its state is already saved.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	acct, last := s.tokens.revoke(bearerToken(r))
	if last {
		if _, err := s.sessions.Evict(r.Context(), acct.ID); err != nil {
			slog.Warn("session eviction failed", "account_id", acct.ID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// authed rejects requests without a valid token and stores the account in
// the request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := s.tokens.lookup(bearerToken(r))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, acct)))
	}
}

func accountFrom(ctx context.Context) account.Account {
	acct, _ := ctx.Value(ctxKey{}).(account.Account)
	return acct
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter that browser WebSocket clients have to use.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
