// Package idempotency provides replay protection for checkout submissions:
// a client retrying a POST with the same Idempotency-Key gets the first
// response back instead of a second order.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Key lifecycle statuses.
//
// StatusCompleted means the submission finished and its response is cached;
// it is the only status currently written. StatusProcessing is reserved for
// marking a key while the first submission is still in flight, to close the
// window where two concurrent requests with the same key both reach the
// handler.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// MaxKeyLength caps client-chosen keys. Matches the column width of the
// idempotency_keys store.
const MaxKeyLength = 64

var (
	// ErrKeyNotFound is returned when no record exists for a key.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when storing a key that is already recorded.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// IdempotencyKey is one recorded submission: the key the client sent, the
// route it hit, and the response to replay on retries.
type IdempotencyKey struct {
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	CreatedAt          time.Time `json:"created_at"`
	OrderID            *string   `json:"order_id,omitempty"`
	ResponseHash       string    `json:"response_hash"`
	Status             string    `json:"status"`
	ResponseBody       string    `json:"response_body"`
	ResponseStatusCode int       `json:"response_status_code"`
}

// ValidateKey rejects empty keys with ErrInvalidKey and oversized keys with
// ErrKeyTooLong.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash returns the hex SHA-256 of the response body, stored
// alongside the cached response so integrity can be checked on replay.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository persists idempotency records.
type Repository interface {
	// Get returns the record for key, or ErrKeyNotFound.
	Get(key string) (*IdempotencyKey, error)

	// Store saves a new record, or ErrKeyExists for a duplicate key.
	Store(record *IdempotencyKey) error

	// DeleteOlderThan removes records older than duration and reports how
	// many were dropped. The periodic cleanup job calls this.
	DeleteOlderThan(duration time.Duration) (int64, error)
}
