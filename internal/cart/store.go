// Package cart provides the cart store collaborator. The checkout core only
// ever clears a cart, and only after a successful reconciliation.
package cart

import (
	"context"
	"sync"
)

// Store defines the cart operations the checkout core depends on.
type Store interface {
	// Clear removes the cart contents for a cart ID.
	// Clearing a missing cart is a no-op.
	Clear(ctx context.Context, cartID string) error
}

// InMemoryStore implements Store with in-memory storage.
// Used for testing and development.
type InMemoryStore struct {
	mu    sync.Mutex
	carts map[string][]string
}

// NewInMemoryStore creates a new in-memory cart store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		carts: make(map[string][]string),
	}
}

// Put stores cart contents. Used to seed carts in tests and development.
func (s *InMemoryStore) Put(cartID string, items []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cartID] = items
}

// Get returns the cart contents, or nil if the cart does not exist.
func (s *InMemoryStore) Get(cartID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[cartID]
}

// Clear removes the cart contents for a cart ID.
func (s *InMemoryStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
	return nil
}
