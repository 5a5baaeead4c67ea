package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	dbTimeout = 5 * time.Second

	uniqueViolation = "23505"
)

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed account store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the accounts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id            BIGSERIAL PRIMARY KEY,
			email         TEXT UNIQUE NOT NULL,
			password_hash BYTEA       NOT NULL,
			name          TEXT        NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create accounts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, email, password, name string) (Account, error) {
	if err := ValidateSignup(email, password, name); err != nil {
		return Account{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return Account{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		id   int64
		acct = Account{Email: NormalizeEmail(email), Name: strings.TrimSpace(name)}
	)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, name)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		acct.Email, hash, acct.Name,
	).Scan(&id, &acct.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, ErrEmailExists
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	acct.ID = fmt.Sprint(id)
	return acct, nil
}

func (s *PostgresStore) Verify(ctx context.Context, email, password string) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		id   int64
		hash []byte
		acct Account
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, name, created_at
		 FROM accounts
		 WHERE email = $1`,
		NormalizeEmail(email),
	).Scan(&id, &acct.Email, &hash, &acct.Name, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	if err := checkPassword(hash, password); err != nil {
		return Account{}, err
	}
	acct.ID = fmt.Sprint(id)
	return acct, nil
}

func (s *PostgresStore) Exists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`,
		NormalizeEmail(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account: %w", err)
	}
	return exists, nil
}
