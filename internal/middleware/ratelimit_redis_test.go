package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTestClient connects to a local Redis or skips the test. These are
// integration tests over the shared-counter behavior that the in-memory
// store cannot exercise.
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func redisTestKey(t *testing.T, label string) string {
	return fmt.Sprintf("ratelimit-test:%s:%s:%d", t.Name(), label, time.Now().UnixNano())
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	}

	ctx := context.Background()
	key := redisTestKey(t, "checkout")
	defer client.Del(ctx, key)

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if want := 4 - i; remaining != want {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, want)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("request over the window limit should be blocked")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d when blocked, want 0", remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want within (0, 60]", retryAfter)
	}
}

func TestRedisRateLimitStore_KeysAreIndependent(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}

	ctx := context.Background()
	shopper := redisTestKey(t, "ip-one")
	crawler := redisTestKey(t, "ip-two")
	defer client.Del(ctx, shopper, crawler)

	allowedShopper, _, _ := store.Allow(ctx, shopper, config)
	allowedCrawler, _, _ := store.Allow(ctx, crawler, config)
	if !allowedShopper || !allowedCrawler {
		t.Error("first request per key should be allowed")
	}

	// One caller exhausting its quota must not affect the other's counter,
	// but both are now at their own limit.
	blockedShopper, _, _ := store.Allow(ctx, shopper, config)
	blockedCrawler, _, _ := store.Allow(ctx, crawler, config)
	if blockedShopper || blockedCrawler {
		t.Error("second request per key should be blocked")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    100 * time.Millisecond,
	}

	ctx := context.Background()
	key := redisTestKey(t, "expiry")
	defer client.Del(ctx, key)

	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, key, config); allowed {
		t.Error("second request within the window should be blocked")
	}

	time.Sleep(150 * time.Millisecond)

	if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	// Unroutable port: every command fails, and the limiter must let
	// checkout traffic through rather than refuse it on a cache outage.
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:9999",
	})
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	}

	allowed, remaining, _ := store.Allow(context.Background(), "any-key", config)
	if !allowed {
		t.Error("store must fail open when Redis is unavailable")
	}
	if remaining != config.RequestsPerWindow {
		t.Errorf("remaining = %d on error, want full quota %d", remaining, config.RequestsPerWindow)
	}
}
