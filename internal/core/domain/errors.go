package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrLockNotAcquired   = errors.New("lock not acquired")
	ErrSaleNotFound      = errors.New("sale not found")
	ErrItemNotFound      = errors.New("inventory item not found")
	ErrSaleCancelled     = errors.New("sale is cancelled")
)

// ValidationError reports the first invalid field found in a sale.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sale: %s %s", e.Field, e.Reason)
}
