package order

import (
	"errors"
	"testing"
)

func TestInMemoryRepository_CreateAssignsID(t *testing.T) {
	repo := NewInMemoryRepository()

	o := newPendingOrder()
	o.ID = ""
	if err := repo.Create(o); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if o.ID == "" {
		t.Error("Create() should assign an ID to orders without one")
	}
	if o.CreatedAt == nil {
		t.Error("Create() should set CreatedAt")
	}

	stored, err := repo.GetByID(o.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Customer.Email != o.Customer.Email {
		t.Errorf("stored customer email = %s, want %s", stored.Customer.Email, o.Customer.Email)
	}
}

func TestInMemoryRepository_GetByID_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.GetByID("missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("GetByID() error = %v, want ErrOrderNotFound", err)
	}
}

func TestInMemoryRepository_Update(t *testing.T) {
	repo := NewInMemoryRepository()

	o := newPendingOrder()
	if err := repo.Create(o); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	o.Status = StatusConfirmed
	if err := repo.Update(o); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	stored, err := repo.GetByID(o.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != StatusConfirmed {
		t.Errorf("stored status = %s, want %s", stored.Status, StatusConfirmed)
	}
}

func TestInMemoryRepository_Update_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	o := newPendingOrder()
	o.ID = "never-created"
	if err := repo.Update(o); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("Update() error = %v, want ErrOrderNotFound", err)
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()

	o := newPendingOrder()
	if err := repo.Create(o); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Mutating a retrieved order must not affect the stored copy
	got, err := repo.GetByID(o.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	got.Status = StatusCancelled
	got.Items[0].Quantity = 99

	stored, err := repo.GetByID(o.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != StatusPendingPayment {
		t.Errorf("stored status = %s, mutation leaked into repository", stored.Status)
	}
	if stored.Items[0].Quantity != 2 {
		t.Errorf("stored quantity = %d, mutation leaked into repository", stored.Items[0].Quantity)
	}

	// Mutating the original after Create must not affect the stored copy either
	o.Customer.Name = "changed"
	stored, _ = repo.GetByID(o.ID)
	if stored.Customer.Name != "Dana Levi" {
		t.Errorf("stored customer name = %s, mutation leaked into repository", stored.Customer.Name)
	}
}
