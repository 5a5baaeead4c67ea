package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/pencilsharp/pencilsharp/internal/account"
	"github.com/pencilsharp/pencilsharp/internal/platform/database"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
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

	store, err := account.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	if err := db.EnsureSchemas(ctx, store); err != nil {
		t.Fatalf("EnsureSchemas() error = %v", err)
	}

	created, err := store.Create(ctx, "Ada@Example.com", "secret1", "Ada")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, "ada@example.com", "secret2", "Ada"); !errors.Is(err, account.ErrEmailExists) {
		t.Errorf("duplicate Create() error = %v, want ErrEmailExists", err)
	}

	got, err := store.Verify(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.ID != created.ID || got.Email != "ada@example.com" {
		t.Errorf("Verify() = %+v, want %+v", got, created)
	}
	if _, err := store.Verify(ctx, "ada@example.com", "nope-nope"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Errorf("Verify(wrong) error = %v, want ErrInvalidCredentials", err)
	}

	exists, err := store.Exists(ctx, "ADA@example.com")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v; want true", exists, err)
	}
}
