package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/platform/database"
	"github.com/pencilsharp/pencilsharp/internal/progress"
	"github.com/pencilsharp/pencilsharp/internal/session"
)

func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := t.Context()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pencilsharp"),
		postgres.WithUsername("pencil"),
		postgres.WithPassword("pencil"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := database.New(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	db := startPostgres(t)

	store, err := session.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	if _, err := store.Load(ctx, "u1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Load() before save error = %v, want ErrNotFound", err)
	}

	tracker := progress.NewTracker(progress.TrackerConfig{})
	tracker.CompleteLesson("Math")
	st := session.State{
		UserID:    "u1",
		Progress:  tracker.Progress(),
		Completed: []curriculum.TopicRef{{Subject: "Math", Unit: 0, Topic: "A"}},
	}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	st.Progress.XP = 99
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := store.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Progress.XP != 99 {
		t.Errorf("XP = %d, want 99 after upsert", got.Progress.XP)
	}
	if !got.Progress.HasAchievement(progress.AchievementFirstLesson) {
		t.Error("achievements were not persisted")
	}
	if got.Progress.SubjectProgress["Math"] != 5 {
		t.Errorf("SubjectProgress[Math] = %v, want 5", got.Progress.SubjectProgress["Math"])
	}
	if len(got.Completed) != 1 || got.Completed[0].Topic != "A" {
		t.Errorf("Completed = %v, want [A]", got.Completed)
	}
}
