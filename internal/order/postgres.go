// Package order provides a Postgres-backed order repository.
package order

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // Postgres driver
)

// PostgresRepository implements Repository backed by a Postgres orders table.
// Line items and customer details are stored as JSONB.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over an existing connection pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores a new order draft.
func (r *PostgresRepository) Create(o *Order) error {
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

	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO orders (
			id, customer, items, subtotal, tax, total, currency,
			status, payment_status, payment_session_id, transaction_id,
			payment_error, created_at, updated_at, confirmed_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, customer, items, o.Subtotal, o.Tax, o.Total, o.Currency,
		string(o.Status), string(o.PaymentStatus), o.PaymentSessionID, o.TransactionID,
		o.PaymentError, o.CreatedAt, o.UpdatedAt, o.ConfirmedAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by ID.
func (r *PostgresRepository) GetByID(id string) (*Order, error) {
	row := r.db.QueryRow(`
		SELECT id, customer, items, subtotal, tax, total, currency,
		       status, payment_status, payment_session_id, transaction_id,
		       payment_error, created_at, updated_at, confirmed_at, cancelled_at
		FROM orders WHERE id = $1`, id)

	var (
		o        Order
		customer []byte
		items    []byte
		status   string
		payment  string
	)
	err := row.Scan(
		&o.ID, &customer, &items, &o.Subtotal, &o.Tax, &o.Total, &o.Currency,
		&status, &payment, &o.PaymentSessionID, &o.TransactionID,
		&o.PaymentError, &o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.CancelledAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}

	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payment)
	return &o, nil
}

// Update replaces the stored order.
func (r *PostgresRepository) Update(o *Order) error {
	now := time.Now()
	o.UpdatedAt = &now

	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	res, err := r.db.Exec(`
		UPDATE orders SET
			customer = $2, items = $3, subtotal = $4, tax = $5, total = $6,
			currency = $7, status = $8, payment_status = $9,
			payment_session_id = $10, transaction_id = $11, payment_error = $12,
			updated_at = $13, confirmed_at = $14, cancelled_at = $15
		WHERE id = $1`,
		o.ID, customer, items, o.Subtotal, o.Tax, o.Total,
		o.Currency, string(o.Status), string(o.PaymentStatus),
		o.PaymentSessionID, o.TransactionID, o.PaymentError,
		o.UpdatedAt, o.ConfirmedAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
