package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisRevocations) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisRevocations(client, "")
}

func TestRedisRevocationsMarkAndCheck(t *testing.T) {
	ctx := context.Background()
	mr, cache := newTestRedis(t)

	if err := cache.MarkRevoked(ctx, "tok", time.Minute); err != nil {
		t.Fatalf("MarkRevoked: %v", err)
	}
	value, err := mr.Get("revoked:tok")
	if err != nil {
		t.Fatalf("miniredis Get: %v", err)
	}
	if value != "revoked" {
		t.Fatalf("unexpected marker value %q", value)
	}
	if ttl := mr.TTL("revoked:tok"); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute, got %s", ttl)
	}
	revoked, err := cache.IsRevoked(ctx, "tok")
	if err != nil || !revoked {
		t.Fatalf("expected token revoked, got %v (err=%v)", revoked, err)
	}

	mr.FastForward(61 * time.Second)
	revoked, err = cache.IsRevoked(ctx, "tok")
	if err != nil || revoked {
		t.Fatalf("expected marker to expire, got %v (err=%v)", revoked, err)
	}
}

func TestRedisRevocationsSkipNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	mr, cache := newTestRedis(t)

	if err := cache.MarkRevoked(ctx, "tok", 0); err != nil {
		t.Fatalf("MarkRevoked: %v", err)
	}
	if err := cache.MarkRevoked(ctx, "tok", -time.Second); err != nil {
		t.Fatalf("MarkRevoked: %v", err)
	}
	if mr.Exists("revoked:tok") {
		t.Fatalf("expired token must not be stored")
	}
}

func TestRedisRevocationsCustomPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewRedisRevocations(client, "posthub:blacklist:")

	if err := cache.MarkRevoked(ctx, "tok", time.Minute); err != nil {
		t.Fatalf("MarkRevoked: %v", err)
	}
	if !mr.Exists("posthub:blacklist:tok") {
		t.Fatalf("expected key under custom prefix")
	}
}

func TestRedisRevocationsUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, cache := newTestRedis(t)
	mr.Close()

	if _, err := cache.IsRevoked(ctx, "tok"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
	if err := cache.MarkRevoked(ctx, "tok", time.Minute); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

func TestOpenRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	client, err := OpenRedis(ctx, "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer client.Close()
	if err := NewRedisRevocations(client, "").Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if _, err := OpenRedis(ctx, "http://not-redis"); err == nil {
		t.Fatalf("expected error for invalid url")
	}
}
