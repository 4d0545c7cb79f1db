package domain

import "time"

type InventoryItem struct {
	ProductID int64
	Quantity  int
	UpdatedAt time.Time
}

// NewInventoryItem normalizes a starting quantity. Negative quantities are
// rejected, never clamped.
func NewInventoryItem(productID int64, quantity int) (InventoryItem, error) {
	if quantity < 0 {
		return InventoryItem{}, ErrInvalidQuantity
	}
	return InventoryItem{ProductID: productID, Quantity: quantity}, nil
}

// Decrease applies a stock decrement, failing instead of going negative.
func (i *InventoryItem) Decrease(qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	if qty > i.Quantity {
		return ErrInsufficientStock
	}
	i.Quantity -= qty
	return nil
}

// Increase restores stock, e.g. when compensating a cancelled sale.
func (i *InventoryItem) Increase(qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	i.Quantity += qty
	return nil
}
