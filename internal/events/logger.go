package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Record is an analytics event persisted to the learning_events table.
type Record struct {
	UserID    string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(record Record) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Record) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		records: []Record{},
	}
}

func (l *MemoryEventLogger) LogEvent(record Record) error {
	if record.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.records = append(l.records, record)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record{}, l.records...)
}

// PostgresEventLogger inserts events into the learning_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

// EnsureSchema creates the learning_events table if it does not exist.
func (l *PostgresEventLogger) EnsureSchema(ctx context.Context) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS learning_events (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT        NOT NULL,
			event_type TEXT        NOT NULL,
			data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS learning_events_user_idx ON learning_events (user_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create learning_events: %w", err)
	}
	return nil
}

func (l *PostgresEventLogger) LogEvent(record Record) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if record.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if record.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	payload := record.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO learning_events (user_id, event_type, data, created_at)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		record.UserID,
		record.EventType,
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", record.EventType,
		"user_id", record.UserID,
	)
	return nil
}

// Recorder forwards session notifications to an EventLogger from a
// background goroutine so observers never wait on storage.
type Recorder struct {
	logger EventLogger
	queue  chan Record
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder with the given queue size.
func NewRecorder(logger EventLogger, queueSize int) *Recorder {
	if logger == nil {
		logger = NopEventLogger{}
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		logger: logger,
		queue:  make(chan Record, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// For returns an Observer that records notifications for one user.
func (r *Recorder) For(userID string) Observer {
	return ObserverFunc(func(eventType string, payload any) {
		record := Record{
			UserID:    userID,
			EventType: eventType,
			Data:      recordData(eventType, payload),
			CreatedAt: time.Now(),
		}
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.closed {
			return
		}
		select {
		case r.queue <- record:
		default:
			slog.Warn("event queue full, dropping event", "type", eventType, "user_id", userID)
		}
	})
}

// Close stops accepting events and waits until queued events are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for record := range r.queue {
		if err := r.logger.LogEvent(record); err != nil {
			slog.Warn("failed to log event", "type", record.EventType, "error", err)
		}
	}
}

func recordData(eventType string, payload any) map[string]any {
	switch eventType {
	case SubjectChanged:
		return map[string]any{"subject": payload}
	case UnitChanged:
		return map[string]any{"unit_index": payload}
	case TopicChanged:
		return map[string]any{"topic": payload}
	case ProgressUpdated:
		return map[string]any{"progress": payload}
	default:
		return map[string]any{"payload": payload}
	}
}
