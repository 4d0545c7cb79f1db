package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/clock"
	"github.com/rl1809/salestock/internal/core/domain"
	"github.com/rl1809/salestock/internal/port"
)

// SaleService owns the sale lifecycle: create a queued shell, finalize it
// asynchronously, publish SaleFinalized after the finalize transaction
// commits. Inventory mutation happens downstream, triggered by the event.
type SaleService struct {
	sales  port.SaleRepository
	repo   port.InventoryRepository
	queue  port.Queue
	bus    port.SaleFinalizedPublisher
	clock  clock.Clock
	logger *zap.Logger
}

func NewSaleService(
	sales port.SaleRepository,
	repo port.InventoryRepository,
	queue port.Queue,
	bus port.SaleFinalizedPublisher,
	clk clock.Clock,
	logger *zap.Logger,
) *SaleService {
	return &SaleService{
		sales:  sales,
		repo:   repo,
		queue:  queue,
		bus:    bus,
		clock:  clk,
		logger: logger,
	}
}

// CreateSale persists the sale shell and its items in one transaction, then
// schedules finalization. The caller gets the sale ID back immediately and
// never waits on inventory work.
func (s *SaleService) CreateSale(ctx context.Context, items []domain.SaleItem) (int64, error) {
	now := s.clock.Now()
	sale := &domain.Sale{
		Items:     items,
		Status:    domain.SaleStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.sales.CreateSale(txCtx, sale)
	})
	if err != nil {
		return 0, fmt.Errorf("create sale: %w", err)
	}

	if err := s.queue.Enqueue(ctx, &finalizeSaleTask{svc: s, saleID: sale.ID}); err != nil {
		// The sale row survives; an operator can re-trigger finalization.
		s.logger.Error("enqueue finalize failed", zap.Int64("sale_id", sale.ID), zap.Error(err))
		return sale.ID, fmt.Errorf("schedule finalize for sale %d: %w", sale.ID, err)
	}

	s.logger.Info("sale created", zap.Int64("sale_id", sale.ID), zap.Int("items", len(items)))
	return sale.ID, nil
}

// FinalizeSale validates and totals a queued sale under an exclusive row
// lock, then publishes SaleFinalized. Finalizing a completed sale is a safe
// no-op, so retries and duplicate deliveries cannot double-publish totals.
func (s *SaleService) FinalizeSale(ctx context.Context, saleID int64) error {
	var (
		finalized domain.Sale
		completed bool
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		sale, err := s.sales.GetSaleForUpdate(txCtx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == domain.SaleStatusCompleted {
			return nil
		}

		if err := sale.Finalize(s.clock.Now()); err != nil {
			return err
		}
		if err := s.sales.UpdateSale(txCtx, sale); err != nil {
			return err
		}

		finalized = sale
		completed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("finalize sale %d: %w", saleID, err)
	}

	// Publish only after the commit, so listeners never act on a sale state
	// that could still roll back.
	if completed {
		s.bus.Publish(ctx, domain.SaleFinalized{SaleID: finalized.ID, Items: finalized.Items})
		s.logger.Info("sale finalized",
			zap.Int64("sale_id", finalized.ID),
			zap.Float64("total_amount", finalized.TotalAmount),
			zap.Float64("total_profit", finalized.TotalProfit))
	}
	return nil
}

// CancelSale transitions a queued sale to cancelled.
func (s *SaleService) CancelSale(ctx context.Context, saleID int64) error {
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		sale, err := s.sales.GetSaleForUpdate(txCtx, saleID)
		if err != nil {
			return err
		}
		if err := sale.Cancel(s.clock.Now()); err != nil {
			return err
		}
		return s.sales.UpdateSale(txCtx, sale)
	})
	if err != nil {
		return fmt.Errorf("cancel sale %d: %w", saleID, err)
	}
	return nil
}

// finalizeSaleTask runs FinalizeSale on the queue. Validation errors are not
// retryable; everything else goes through the normal backoff.
type finalizeSaleTask struct {
	svc    *SaleService
	saleID int64
}

func (t *finalizeSaleTask) Name() string { return "finalize_sale" }

func (t *finalizeSaleTask) Handle(ctx context.Context) error {
	return t.svc.FinalizeSale(ctx, t.saleID)
}

func (t *finalizeSaleTask) Failed(err error) {
	t.svc.logger.Error("sale finalization permanently failed",
		zap.Int64("sale_id", t.saleID), zap.Error(err))
}
