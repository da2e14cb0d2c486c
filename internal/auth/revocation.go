package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationCache records tokens invalidated before their natural expiry.
// Keys are the literal token strings.
type RevocationCache interface {
	// MarkRevoked stores a marker that expires after ttl. A ttl <= 0 stores nothing.
	MarkRevoked(ctx context.Context, token string, ttl time.Duration) error
	// IsRevoked reports whether a live marker exists for token.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryRevocations keeps revoked tokens in process memory. Markers are
// dropped lazily on lookup or in bulk by Sweep.
type MemoryRevocations struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ RevocationCache = (*MemoryRevocations)(nil)

// NewMemoryRevocations returns an empty in-process revocation cache.
func NewMemoryRevocations(now func() time.Time) *MemoryRevocations {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocations{entries: make(map[string]time.Time), now: now}
}

func (m *MemoryRevocations) MarkRevoked(ctx context.Context, token string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token == "" || ttl <= 0 {
		return nil
	}
	expires := m.now().Add(ttl)
	m.mu.Lock()
	if current, ok := m.entries[token]; !ok || expires.After(current) {
		m.entries[token] = expires
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}
	now := m.now()

	m.mu.RLock()
	expires, ok := m.entries[token]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !now.Before(expires) {
		m.mu.Lock()
		if current, ok := m.entries[token]; ok && !now.Before(current) {
			delete(m.entries, token)
		}
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Sweep removes every expired marker and returns how many were dropped.
func (m *MemoryRevocations) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, expires := range m.entries {
		if !now.Before(expires) {
			delete(m.entries, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored markers, expired ones included.
func (m *MemoryRevocations) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
