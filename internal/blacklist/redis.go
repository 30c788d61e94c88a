// Package blacklist provides access-token denylist implementations. The token
// service consults the denylist on every verification, so entries only need
// to live as long as the token they suppress.
package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "denylist:"

// Redis is a denylist backed by a shared Redis, so a revocation on one
// instance is visible to every other instance immediately.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client. The caller owns the client lifecycle.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Add denylists a token id for ttl. The reason is stored as the value for
// operator inspection; nothing reads it programmatically.
func (r *Redis) Add(ctx context.Context, jti, reason string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if reason == "" {
		reason = "revoked"
	}
	if err := r.client.Set(ctx, keyPrefix+jti, reason, ttl).Err(); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	return nil
}

// Contains reports whether the token id is denylisted.
func (r *Redis) Contains(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return n > 0, nil
}
