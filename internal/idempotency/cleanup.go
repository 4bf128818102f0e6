// Package idempotency provides replay protection for checkout submissions.
package idempotency

import (
	"log/slog"
	"time"
)

// DefaultExpiry bounds how long a recorded submission can be replayed. A day
// comfortably covers client retries without retaining stale responses.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys deletes idempotency keys older than expiry and reports how
// many were removed. Without it the key store grows with every checkout ever
// submitted.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("idempotency key cleanup failed", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.Info("expired idempotency keys removed", "deleted", deleted, "older_than", expiry)
	}

	return deleted, nil
}

// RunPeriodicCleanup sweeps expired keys at the given interval until stopChan
// closes. It blocks; run it in a goroutine next to the server:
//
//	stop := make(chan struct{})
//	go idempotency.RunPeriodicCleanup(repo, time.Hour, idempotency.DefaultExpiry, stop)
//	defer close(stop)
//
// The first sweep happens immediately so a restarted instance does not wait a
// full interval to shed backlog.
func RunPeriodicCleanup(repo Repository, interval, expiry time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(repo, expiry); err != nil {
		slog.Error("startup idempotency sweep failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(repo, expiry); err != nil {
				slog.Error("periodic idempotency sweep failed", "error", err)
			}
		case <-stopChan:
			slog.Info("idempotency cleanup stopped")
			return
		}
	}
}
