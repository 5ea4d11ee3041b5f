package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/jonwraymond/tokenauth/auth"
)

// User is one entry of the in-memory user table.
type User struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	UserID       string   `yaml:"user_id"`
	Roles        []string `yaml:"roles"`
}

// HashPassword returns the bcrypt hash of password at cost.
// A cost of 0 uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("credentials: hash password: %w", err)
	}
	return string(h), nil
}

// Memory is a fixed user table with bcrypt password hashes.
//
// Unknown usernames are compared against a dummy hash of the same cost as
// the stored ones, so a lookup miss costs as much as a wrong password.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User

	dummyOnce sync.Once
	dummyHash []byte
	dummyCost int
}

// NewMemory creates a repository holding users.
func NewMemory(users ...User) (*Memory, error) {
	m := &Memory{users: make(map[string]User, len(users))}
	for _, u := range users {
		if err := m.Add(u); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add inserts or replaces a user after validating it.
func (m *Memory) Add(u User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return errors.New("credentials: username is required")
	}
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	if err != nil {
		return fmt.Errorf("credentials: user %q: invalid password hash: %w", u.Username, err)
	}
	id, err := auth.NewIdentity(u.UserID, u.Roles...)
	if err != nil {
		return fmt.Errorf("credentials: user %q: %w", u.Username, err)
	}
	u.Roles = id.Roles

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Username] = u
	if m.dummyCost == 0 {
		m.dummyCost = cost
	}
	return nil
}

// Remove deletes a user. Missing users are ignored.
func (m *Memory) Remove(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, username)
}

// Len returns the number of users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// Validate implements auth.CredentialRepository.
func (m *Memory) Validate(ctx context.Context, username, password string) (*auth.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	u, ok := m.users[username]
	m.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword(m.dummy(), []byte(password))
		return nil, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	switch {
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("credentials: compare hash for %q: %w", username, err)
	}

	return &auth.Identity{UserID: u.UserID, Roles: append([]string{}, u.Roles...)}, nil
}

func (m *Memory) dummy() []byte {
	m.dummyOnce.Do(func() {
		m.mu.RLock()
		cost := m.dummyCost
		m.mu.RUnlock()
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		m.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tokenauth-dummy-password"), cost)
	})
	return m.dummyHash
}
