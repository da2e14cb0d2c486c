package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long an idle chat keeps its login. Reads and
// writes both restart the countdown.
const DefaultSessionTTL = 24 * time.Hour

// Session is the per-chat-user conversation state.
type Session struct {
	AwaitingCredentials bool      `json:"awaiting_credentials,omitempty"`
	Token               string    `json:"token,omitempty"`
	Username            string    `json:"username,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Authenticated reports whether the session holds an access token.
func (s Session) Authenticated() bool { return s.Token != "" }

// SessionStore keeps sessions keyed by chat user id.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (Session, bool, error)
	Put(ctx context.Context, userID int64, s Session) error
	Delete(ctx context.Context, userID int64) error
}

// MemorySessions is an in-process SessionStore with idle expiry.
type MemorySessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]Session
}

var _ SessionStore = (*MemorySessions)(nil)

// NewMemorySessions returns an empty store. A non-positive ttl uses DefaultSessionTTL.
func NewMemorySessions(ttl time.Duration, now func() time.Time) *MemorySessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemorySessions{ttl: ttl, now: now, sessions: make(map[int64]Session)}
}

func (m *MemorySessions) Get(ctx context.Context, userID int64) (Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false, nil
	}
	now := m.now()
	if now.Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, userID)
		return Session{}, false, nil
	}
	s.UpdatedAt = now
	m.sessions[userID] = s
	return s, true, nil
}

func (m *MemorySessions) Put(ctx context.Context, userID int64, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessions) Delete(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

// Sweep drops idle sessions and returns how many were removed.
func (m *MemorySessions) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.UpdatedAt) > m.ttl {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// DefaultSessionPrefix namespaces bot sessions in a shared Redis.
const DefaultSessionPrefix = "botsession:"

// RedisSessions stores sessions as JSON with a sliding TTL so several bot
// replicas can share logins.
type RedisSessions struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ SessionStore = (*RedisSessions)(nil)

func NewRedisSessions(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessions {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessions{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisSessions) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *RedisSessions) Get(ctx context.Context, userID int64) (Session, bool, error) {
	raw, err := r.client.GetEx(ctx, r.key(userID), r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return s, true, nil
}

func (r *RedisSessions) Put(ctx context.Context, userID int64, s Session) error {
	s.UpdatedAt = r.now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisSessions) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
