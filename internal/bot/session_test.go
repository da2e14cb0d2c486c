package bot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionsExpireWhenIdle(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := NewMemorySessions(time.Minute, clock)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, 1, Session{Token: "a"}))
	require.NoError(t, s.Put(ctx, 2, Session{AwaitingCredentials: true}))

	now = now.Add(30 * time.Second)
	got, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got.Token)

	now = now.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Sweep())

	require.NoError(t, s.Delete(ctx, 2))
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = s.Get(cancelled, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySessionsReadsExtendIdleWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemorySessions(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, 1, Session{Token: "a"}))
	for i := 0; i < 3; i++ {
		now = now.Add(45 * time.Second)
		_, ok, err := s.Get(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok, "active session expired after read %d", i)
	}
	assert.Equal(t, 0, s.Sweep())

	now = now.Add(61 * time.Second)
	assert.Equal(t, 1, s.Sweep())
}

func TestRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisSessions(client, "", time.Hour)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, 7, Session{Token: "tok", Username: "alice"}))
	assert.True(t, mr.Exists(DefaultSessionPrefix+"7"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultSessionPrefix+"7"))

	got, ok, err := s.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.Authenticated())

	mr.FastForward(40 * time.Minute)
	_, ok, err = s.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL(DefaultSessionPrefix+"7"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = s.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, 8, Session{AwaitingCredentials: true}))
	require.NoError(t, s.Delete(ctx, 8))
	assert.False(t, mr.Exists(DefaultSessionPrefix+"8"))

	mr.Close()
	_, _, err = s.Get(ctx, 8)
	assert.Error(t, err)
}
