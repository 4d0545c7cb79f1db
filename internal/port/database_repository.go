package port

import (
	"context"

	"github.com/rl1809/salestock/internal/core/domain"
)

type InventoryRepository interface {
	// WithTx runs fn inside a single transaction; fn returning an error
	// rolls back everything, nil commits. Nested calls reuse the outer tx.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// DecrementIfEnough subtracts quantity from the product's stock as one
	// conditional update evaluated by the storage engine. It returns false
	// without mutating anything when the stored quantity is lower.
	DecrementIfEnough(ctx context.Context, productID int64, quantity int) (bool, error)

	// GetItem retrieves an inventory item, ErrItemNotFound when absent.
	GetItem(ctx context.Context, productID int64) (domain.InventoryItem, error)

	// ListItems returns a page of inventory items ordered by product id.
	ListItems(ctx context.Context, offset, limit int) ([]domain.InventoryItem, error)

	// SeedItem creates or resets a product's stock counter.
	SeedItem(ctx context.Context, productID int64, quantity int) error
}

type SaleRepository interface {
	// CreateSale persists a sale shell and its items, assigning the ID.
	CreateSale(ctx context.Context, sale *domain.Sale) error

	// GetSaleForUpdate loads a sale and its items under an exclusive row
	// lock; must be called inside WithTx.
	GetSaleForUpdate(ctx context.Context, saleID int64) (domain.Sale, error)

	// UpdateSale persists totals and status of a finalized or cancelled sale.
	UpdateSale(ctx context.Context, sale domain.Sale) error
}
