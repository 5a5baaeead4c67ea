// Package account manages learner credentials for signup and login.
package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds. bcrypt only accepts up to 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Account is a registered learner. The password hash never leaves the store.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists accounts.
type Store interface {
	Create(ctx context.Context, email, password, name string) (Account, error)
	Verify(ctx context.Context, email, password string) (Account, error)
	Exists(ctx context.Context, email string) (bool, error)
}

// ValidationError reports signup input that was rejected before storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NormalizeEmail trims and lower-cases an address so lookups ignore case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSignup checks the signup fields.
func ValidateSignup(email, password, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case strings.TrimSpace(email) == "":
		return &ValidationError{Field: "email", Reason: "is required"}
	case password == "":
		return &ValidationError{Field: "password", Reason: "is required"}
	case !emailPattern.MatchString(strings.TrimSpace(email)):
		return &ValidationError{Field: "email", Reason: "invalid format"}
	case len(password) < MinPasswordLength:
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	case len(password) > MaxPasswordBytes:
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)}
	}
	return nil
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func checkPassword(hash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
