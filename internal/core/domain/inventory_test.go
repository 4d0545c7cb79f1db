package domain

import (
	"errors"
	"testing"
)

func TestNewInventoryItem(t *testing.T) {
	item, err := NewInventoryItem(1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", item.Quantity)
	}

	if _, err := NewInventoryItem(1, -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestDecrease(t *testing.T) {
	item, _ := NewInventoryItem(1, 10)

	if err := item.Decrease(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", item.Quantity)
	}

	if err := item.Decrease(1000); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if item.Quantity != 7 {
		t.Errorf("quantity mutated on failed decrease: %d", item.Quantity)
	}

	if err := item.Decrease(-1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestDecrease_NeverNegative(t *testing.T) {
	item, _ := NewInventoryItem(1, 5)

	deltas := []int{2, 2, 2, 1, 3}
	for _, d := range deltas {
		_ = item.Decrease(d)
		if item.Quantity < 0 {
			t.Fatalf("quantity went negative: %d", item.Quantity)
		}
	}
	if item.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", item.Quantity)
	}
}

func TestIncrease(t *testing.T) {
	item, _ := NewInventoryItem(1, 5)

	if err := item.Increase(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Quantity != 8 {
		t.Errorf("expected quantity 8, got %d", item.Quantity)
	}

	if err := item.Increase(-3); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if item.Quantity != 8 {
		t.Errorf("quantity mutated on failed increase: %d", item.Quantity)
	}
}
