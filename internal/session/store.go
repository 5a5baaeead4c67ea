package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/progress"
)

// ErrNotFound is returned by Store.Load when a user has no saved state.
var ErrNotFound = errors.New("session state not found")

// State is the persisted part of a learning session.
type State struct {
	UserID    string                `json:"user_id"`
	Progress  progress.UserProgress `json:"progress"`
	Completed []curriculum.TopicRef `json:"completed"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Progress = s.Progress.Clone()
	out.Completed = append([]curriculum.TopicRef{}, s.Completed...)
	return out
}

// Store persists session state per user.
type Store interface {
	Load(ctx context.Context, userID string) (State, error)
	Save(ctx context.Context, state State) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	states map[string]State
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]State),
	}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return State{}, fmt.Errorf("load %s: %w", userID, ErrNotFound)
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, state State) error {
	if state.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state.Clone()
	return nil
}
