package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// VerifyCache implements ports.VerifyCache using Redis. It holds serialized
// verification results for completed transactions, keyed by transaction uuid.
type VerifyCache struct {
	client *goredis.Client
	prefix string
}

// NewVerifyCache creates a new Redis-backed verify cache.
func NewVerifyCache(client *goredis.Client) *VerifyCache {
	return &VerifyCache{
		client: client,
		prefix: "verify:",
	}
}

// Get retrieves a cached verification result by transaction uuid.
// Returns nil, nil if the key does not exist.
func (c *VerifyCache) Get(ctx context.Context, transactionUUID string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+transactionUUID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis verify get: %w", err)
	}
	return val, nil
}

// Set stores a verification result with TTL.
func (c *VerifyCache) Set(ctx context.Context, transactionUUID string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+transactionUUID, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis verify set: %w", err)
	}
	return nil
}
