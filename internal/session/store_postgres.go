package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pencilsharp/pencilsharp/internal/curriculum"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the learner_states table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS learner_states (
			user_id    TEXT PRIMARY KEY,
			progress   JSONB       NOT NULL,
			completed  JSONB       NOT NULL DEFAULT '[]'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create learner_states: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var progressJSON, completedJSON []byte
	st := State{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT progress, completed, updated_at
		 FROM learner_states
		 WHERE user_id = $1`,
		userID,
	).Scan(&progressJSON, &completedJSON, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, fmt.Errorf("load %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return State{}, fmt.Errorf("load learner state: %w", err)
	}

	if err := json.Unmarshal(progressJSON, &st.Progress); err != nil {
		return State{}, fmt.Errorf("decode progress: %w", err)
	}
	if err := json.Unmarshal(completedJSON, &st.Completed); err != nil {
		return State{}, fmt.Errorf("decode completed topics: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) Save(ctx context.Context, state State) error {
	if state.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	progressJSON, err := json.Marshal(state.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	completed := state.Completed
	if completed == nil {
		completed = []curriculum.TopicRef{}
	}
	completedJSON, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("marshal completed topics: %w", err)
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO learner_states (user_id, progress, completed, updated_at)
		 VALUES ($1, $2::jsonb, $3::jsonb, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET progress = EXCLUDED.progress,
		     completed = EXCLUDED.completed,
		     updated_at = EXCLUDED.updated_at`,
		state.UserID,
		string(progressJSON),
		string(completedJSON),
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save learner state: %w", err)
	}
	return nil
}
