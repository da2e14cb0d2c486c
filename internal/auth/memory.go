package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process UserStore used by tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]*User
}

var _ UserStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (m *MemoryStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) Create(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(u.Username) == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return ErrUserExists
	}
	m.nextID++
	u.ID = m.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.Username] = cloneUser(u)
	return nil
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// SetDisabled flips the disabled flag of an existing user.
func (m *MemoryStore) SetDisabled(username string, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	u.Disabled = &disabled
	return nil
}

// Delete removes a user. Tokens already issued for it stop validating.
func (m *MemoryStore) Delete(username string) {
	m.mu.Lock()
	delete(m.users, username)
	m.mu.Unlock()
}

func cloneUser(u *User) *User {
	cp := *u
	if u.Disabled != nil {
		v := *u.Disabled
		cp.Disabled = &v
	}
	return &cp
}
