package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/events"
	"github.com/pencilsharp/pencilsharp/internal/progress"
)

// ManagerConfig holds dependencies for a Manager.
type ManagerConfig struct {
	Catalog   curriculum.Catalog
	Store     Store            // defaults to a MemoryStore
	Recorder  *events.Recorder // optional analytics sink
	Clock     func() time.Time // defaults to time.Now
	DailyGoal int              // daily goal for new learners
}

// Manager hosts one Controller per user and serializes every call into it.
type Manager struct {
	catalog   curriculum.Catalog
	store     Store
	recorder  *events.Recorder
	clock     func() time.Time
	dailyGoal int

	mu       sync.Mutex
	sessions map[string]*hosted
}

type hosted struct {
	mu          sync.Mutex
	ctrl        *Controller
	saved       uint64
	subscribers int
	evicted     bool
}

// Invalidator is implemented by stores that keep a copy worth dropping
// when a session leaves memory, such as CachedStore.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// NewManager creates a manager. The catalog is validated up front so a bad
// configuration fails at startup rather than on the first login.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if _, err := curriculum.Load(cfg.Catalog); err != nil {
		return nil, err
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		catalog:   cfg.Catalog,
		store:     store,
		recorder:  cfg.Recorder,
		clock:     clock,
		dailyGoal: cfg.DailyGoal,
		sessions:  make(map[string]*hosted),
	}, nil
}

// Do runs fn against the user's controller while holding the session lock,
// then saves the state if fn changed it.
func (m *Manager) Do(ctx context.Context, userID string, fn func(*Controller) error) error {
	h, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer h.mu.Unlock()

	if err := fn(h.ctrl); err != nil {
		return err
	}
	if h.ctrl.Version() == h.saved {
		return nil
	}

	st := h.ctrl.State()
	st.UserID = userID
	st.UpdatedAt = m.clock()
	if err := m.store.Save(ctx, st); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	h.saved = h.ctrl.Version()
	return nil
}

// View runs fn against the user's controller without saving.
func (m *Manager) View(ctx context.Context, userID string, fn func(*Controller)) error {
	h, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	fn(h.ctrl)
	return nil
}

// Subscribe registers an observer on the user's controller. A session
// with subscribers is never evicted.
func (m *Manager) Subscribe(ctx context.Context, userID string, o events.Observer) (events.ObserverID, error) {
	h, err := m.lock(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer h.mu.Unlock()
	h.subscribers++
	return h.ctrl.AddObserver(o), nil
}

// Unsubscribe removes an observer registered with Subscribe.
func (m *Manager) Unsubscribe(userID string, id events.ObserverID) {
	m.mu.Lock()
	h, ok := m.sessions[userID]
	m.mu.Unlock()
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl.RemoveObserver(id) {
		h.subscribers--
	}
}

// Evict drops the in-memory session of a user and asks the store to drop
// any cached copy. Saved state is kept. Sessions with live subscribers stay
// in memory; Evict reports whether the session was dropped.
func (m *Manager) Evict(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	h, ok := m.sessions[userID]
	m.mu.Unlock()

	if ok {
		h.mu.Lock()
		if h.subscribers > 0 {
			h.mu.Unlock()
			return false, nil
		}
		h.evicted = true
		h.mu.Unlock()

		m.mu.Lock()
		if m.sessions[userID] == h {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
	}

	if inv, ok := m.store.(Invalidator); ok {
		if err := inv.Invalidate(ctx, userID); err != nil {
			return true, fmt.Errorf("evicting session: %w", err)
		}
	}
	slog.Debug("session evicted", "user_id", userID)
	return true, nil
}

// Active returns the number of sessions held in memory.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// lock returns the user's live session with its lock held. A session
// evicted while the caller waited is skipped and reopened from the store.
func (m *Manager) lock(ctx context.Context, userID string) (*hosted, error) {
	for {
		h, err := m.open(ctx, userID)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		if !h.evicted {
			return h, nil
		}
		h.mu.Unlock()
	}
}

// open returns the user's session, loading it from the store on first use.
// The store is read without holding m.mu so one slow load does not stall
// other users.
func (m *Manager) open(ctx context.Context, userID string) (*hosted, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	m.mu.Lock()
	h, ok := m.sessions[userID]
	m.mu.Unlock()
	if ok {
		return h, nil
	}

	h, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have opened the session while we were loading.
	if existing, ok := m.sessions[userID]; ok {
		return existing, nil
	}
	m.sessions[userID] = h
	return h, nil
}

func (m *Manager) load(ctx context.Context, userID string) (*hosted, error) {
	graph, err := curriculum.Load(m.catalog)
	if err != nil {
		return nil, err
	}

	trackerCfg := progress.TrackerConfig{Clock: m.clock, DailyGoal: m.dailyGoal}
	st, err := m.store.Load(ctx, userID)
	switch {
	case err == nil:
		graph.Restore(st.Completed)
		trackerCfg.Initial = &st.Progress
		slog.Debug("session restored", "user_id", userID, "completed_topics", len(st.Completed))
	case errors.Is(err, ErrNotFound):
		slog.Debug("session started", "user_id", userID)
	default:
		return nil, fmt.Errorf("loading session: %w", err)
	}

	ctrl := NewController(Config{
		Graph:   graph,
		Tracker: progress.NewTracker(trackerCfg),
	})
	if m.recorder != nil {
		ctrl.AddObserver(m.recorder.For(userID))
	}
	return &hosted{ctrl: ctrl, saved: ctrl.Version()}, nil
}
