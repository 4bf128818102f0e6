package cart

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedisStore_Clear exercises the Redis-backed store against a real
// instance on localhost:6379. Skipped when Redis is not available.
func TestRedisStore_Clear(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	store := NewRedisStore(client)
	ctx = context.Background()

	if err := client.Set(ctx, keyPrefix+"test-cart", "contents", time.Minute).Err(); err != nil {
		t.Fatalf("failed to seed cart key: %v", err)
	}

	if err := store.Clear(ctx, "test-cart"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if exists, _ := client.Exists(ctx, keyPrefix+"test-cart").Result(); exists != 0 {
		t.Error("cart key should be deleted after Clear()")
	}

	// Clearing a missing cart is a no-op
	if err := store.Clear(ctx, "never-existed"); err != nil {
		t.Errorf("Clear() on missing cart error = %v, want nil", err)
	}
}
