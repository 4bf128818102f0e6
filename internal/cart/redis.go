// Package cart provides a Redis-backed cart store.
package cart

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces cart keys in Redis.
const keyPrefix = "cart:"

// RedisStore implements Store backed by Redis. Cart contents are owned by
// the storefront frontend; this store only needs to delete the key.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a cart store over an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Clear removes the cart contents for a cart ID. Deleting a missing key is
// a no-op in Redis, which matches the Store contract.
func (s *RedisStore) Clear(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, keyPrefix+cartID).Err(); err != nil {
		return fmt.Errorf("clear cart %s: %w", cartID, err)
	}
	return nil
}
