package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRevocationPrefix namespaces revocation keys in a shared Redis.
	DefaultRevocationPrefix = "revoked:"

	revokedMarker = "revoked"
)

// RedisRevocations stores revocation markers in Redis with native key expiry.
type RedisRevocations struct {
	client redis.UniversalClient
	prefix string
}

var _ RevocationCache = (*RedisRevocations)(nil)

// NewRedisRevocations wraps an existing client. An empty prefix falls back to
// DefaultRevocationPrefix.
func NewRedisRevocations(client redis.UniversalClient, prefix string) *RedisRevocations {
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisRevocations{client: client, prefix: prefix}
}

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisRevocations) key(token string) string {
	return r.prefix + token
}

func (r *RedisRevocations) MarkRevoked(ctx context.Context, token string, ttl time.Duration) error {
	// Redis treats a zero expiration as "keep forever".
	if token == "" || ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(token), revokedMarker, ttl).Err(); err != nil {
		return fmt.Errorf("mark token revoked: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisRevocations) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
