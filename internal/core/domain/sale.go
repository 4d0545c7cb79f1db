package domain

import (
	"fmt"
	"math"
	"time"
)

type SaleStatus string

const (
	SaleStatusQueued    SaleStatus = "queued"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

type SaleItem struct {
	ProductID int64
	Quantity  int
	UnitPrice float64
	UnitCost  float64
}

type Sale struct {
	ID          int64
	Items       []SaleItem
	TotalAmount float64
	TotalCost   float64
	TotalProfit float64
	Status      SaleStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateSaleItems rejects a sale with no items or with any malformed item.
// It fails on the first violation, never partially.
func ValidateSaleItems(items []SaleItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for idx, it := range items {
		switch {
		case it.ProductID <= 0:
			return &ValidationError{Field: fmt.Sprintf("items[%d].product_id", idx), Reason: "must be positive"}
		case it.Quantity <= 0:
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", idx), Reason: "must be positive"}
		case it.UnitPrice < 0:
			return &ValidationError{Field: fmt.Sprintf("items[%d].unit_price", idx), Reason: "must not be negative"}
		case it.UnitCost < 0:
			return &ValidationError{Field: fmt.Sprintf("items[%d].unit_cost", idx), Reason: "must not be negative"}
		}
	}
	return nil
}

// Finalize validates the sale's items, recomputes totals and transitions the
// sale to completed. Finalizing a completed sale is a no-op.
func (s *Sale) Finalize(now time.Time) error {
	if s.Status == SaleStatusCompleted {
		return nil
	}
	if s.Status == SaleStatusCancelled {
		return ErrSaleCancelled
	}
	if err := ValidateSaleItems(s.Items); err != nil {
		return err
	}

	var amount, cost float64
	for _, it := range s.Items {
		amount += float64(it.Quantity) * it.UnitPrice
		cost += float64(it.Quantity) * it.UnitCost
	}

	s.TotalAmount = roundMoney(amount)
	s.TotalCost = roundMoney(cost)
	s.TotalProfit = roundMoney(amount - cost)
	s.Status = SaleStatusCompleted
	s.UpdatedAt = now
	return nil
}

// Cancel transitions a queued sale to cancelled. A completed sale can no
// longer be cancelled.
func (s *Sale) Cancel(now time.Time) error {
	switch s.Status {
	case SaleStatusCancelled:
		return nil
	case SaleStatusCompleted:
		return fmt.Errorf("sale %d already completed", s.ID)
	}
	s.Status = SaleStatusCancelled
	s.UpdatedAt = now
	return nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
