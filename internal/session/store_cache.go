package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pencilsharp/pencilsharp/internal/platform/cache"
)

const (
	defaultCacheTTL = 30 * time.Minute
	cacheNamespace  = "session:"
)

// CachedStore keeps session state in Redis/Dragonfly in front of another
// Store. Reads fall through on a miss; writes go to both. Cache failures
// are logged and never fail the call.
type CachedStore struct {
	cache *cache.Cache
	next  Store
	ttl   time.Duration
}

// NewCachedStore wraps next with a Redis cache. A zero ttl uses 30 minutes.
func NewCachedStore(c *cache.Cache, next Store, ttl time.Duration) (*CachedStore, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is nil")
	}
	if next == nil {
		return nil, fmt.Errorf("backing store is nil")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{cache: c.Namespace(cacheNamespace), next: next, ttl: ttl}, nil
}

func (s *CachedStore) Load(ctx context.Context, userID string) (State, error) {
	var st State
	err := s.cache.GetJSON(ctx, userID, &st)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("session cache read failed", "user_id", userID, "error", err)
	}

	st, err = s.next.Load(ctx, userID)
	if err != nil {
		return State{}, err
	}
	s.put(ctx, st)
	return st, nil
}

func (s *CachedStore) Save(ctx context.Context, state State) error {
	if err := s.next.Save(ctx, state); err != nil {
		return err
	}
	s.put(ctx, state)
	return nil
}

// Invalidate drops the cached copy for a user.
func (s *CachedStore) Invalidate(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, userID); err != nil {
		return fmt.Errorf("invalidate session cache: %w", err)
	}
	return nil
}

func (s *CachedStore) put(ctx context.Context, state State) {
	if err := s.cache.SetJSON(ctx, state.UserID, state, s.ttl); err != nil {
		slog.Warn("session cache write failed", "user_id", state.UserID, "error", err)
	}
}
