// Package order provides repository implementations for order persistence.
package order

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrOrderNotFound is returned when an order is not found.
var ErrOrderNotFound = errors.New("order not found")

// Repository defines methods for order persistence.
type Repository interface {
	// Create stores a new order draft. An empty ID is assigned a UUID.
	Create(o *Order) error

	// GetByID retrieves an order by ID.
	// Returns ErrOrderNotFound if the order doesn't exist.
	GetByID(id string) (*Order, error)

	// Update replaces the stored order.
	// Returns ErrOrderNotFound if the order doesn't exist.
	Update(o *Order) error
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for testing and development.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewInMemoryRepository creates a new in-memory order repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		orders: make(map[string]*Order),
	}
}

// Create stores a new order draft.
func (r *InMemoryRepository) Create(o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	now := time.Now()
	if o.CreatedAt == nil {
		o.CreatedAt = &now
	}
	if o.UpdatedAt == nil {
		o.UpdatedAt = &now
	}

	r.orders[o.ID] = copyOrder(o)
	return nil
}

// GetByID retrieves an order by ID.
func (r *InMemoryRepository) GetByID(id string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

// Update replaces the stored order.
func (r *InMemoryRepository) Update(o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}

	now := time.Now()
	o.UpdatedAt = &now

	r.orders[o.ID] = copyOrder(o)
	return nil
}

// copyOrder creates a deep copy of an order to prevent external mutation.
func copyOrder(o *Order) *Order {
	if o == nil {
		return nil
	}

	copied := *o
	copied.Items = make([]LineItem, len(o.Items))
	copy(copied.Items, o.Items)

	copied.PaymentSessionID = copyStringPtr(o.PaymentSessionID)
	copied.TransactionID = copyStringPtr(o.TransactionID)
	copied.PaymentError = copyStringPtr(o.PaymentError)
	copied.CreatedAt = copyTimePtr(o.CreatedAt)
	copied.UpdatedAt = copyTimePtr(o.UpdatedAt)
	copied.ConfirmedAt = copyTimePtr(o.ConfirmedAt)
	copied.CancelledAt = copyTimePtr(o.CancelledAt)

	return &copied
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
