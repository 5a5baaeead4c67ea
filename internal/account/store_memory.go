package account

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process runs.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]memoryAccount
	nextID   int
	now      func() time.Time
}

type memoryAccount struct {
	Account
	hash []byte
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]memoryAccount),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, email, password, name string) (Account, error) {
	if err := ValidateSignup(email, password, name); err != nil {
		return Account{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return Account{}, err
	}

	key := NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[key]; ok {
		return Account{}, ErrEmailExists
	}
	s.nextID++
	acct := Account{
		ID:        strconv.Itoa(s.nextID),
		Email:     key,
		Name:      strings.TrimSpace(name),
		CreatedAt: s.now(),
	}
	s.accounts[key] = memoryAccount{Account: acct, hash: hash}
	return acct, nil
}

func (s *MemoryStore) Verify(_ context.Context, email, password string) (Account, error) {
	s.mu.RLock()
	stored, ok := s.accounts[NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	if err := checkPassword(stored.hash, password); err != nil {
		return Account{}, err
	}
	return stored.Account, nil
}

func (s *MemoryStore) Exists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[NormalizeEmail(email)]
	return ok, nil
}
