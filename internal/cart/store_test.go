package cart

import (
	"context"
	"testing"
)

func TestInMemoryStore_Clear(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("cart-1", []string{"sku-1", "sku-2"})

	if got := store.Get("cart-1"); len(got) != 2 {
		t.Fatalf("Get() = %v, want 2 items", got)
	}

	if err := store.Clear(context.Background(), "cart-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if got := store.Get("cart-1"); got != nil {
		t.Errorf("Get() after Clear() = %v, want nil", got)
	}
}

func TestInMemoryStore_ClearMissingIsNoOp(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Clear(context.Background(), "never-existed"); err != nil {
		t.Errorf("Clear() on missing cart error = %v, want nil", err)
	}
}

func TestInMemoryStore_ClearLeavesOtherCarts(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("cart-1", []string{"sku-1"})
	store.Put("cart-2", []string{"sku-2"})

	if err := store.Clear(context.Background(), "cart-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if got := store.Get("cart-2"); len(got) != 1 || got[0] != "sku-2" {
		t.Errorf("Get(cart-2) = %v, other carts must be untouched", got)
	}
}
