package domain

// SaleFinalized is published after a sale's finalize transaction commits.
// Listeners use it to enqueue the inventory update for the sale's items.
type SaleFinalized struct {
	SaleID int64
	Items  []SaleItem
}
