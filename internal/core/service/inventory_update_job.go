package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/core/domain"
	"github.com/rl1809/salestock/internal/port"
)

const (
	defaultLockTTL      = 10 * time.Second
	defaultLockWait     = 3 * time.Second
	defaultLockPoll     = 50 * time.Millisecond
	productLockTemplate = "inventory:product:%d"
)

// InventoryUpdateJob applies a batch of per-product stock decrements for a
// finalized sale. The whole batch runs in one transaction: either every
// item's decrement commits or none does, which is what makes queue-level
// retries safe.
type InventoryUpdateJob struct {
	repo    port.InventoryRepository
	locker  port.Locker
	cache   port.CacheInvalidator
	metrics port.MetricsSink
	logger  *zap.Logger

	lockTTL  time.Duration
	lockWait time.Duration
	lockPoll time.Duration
}

func NewInventoryUpdateJob(
	repo port.InventoryRepository,
	locker port.Locker,
	cache port.CacheInvalidator,
	metrics port.MetricsSink,
	logger *zap.Logger,
	opts ...JobOption,
) *InventoryUpdateJob {
	job := &InventoryUpdateJob{
		repo:     repo,
		locker:   locker,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
		lockPoll: defaultLockPoll,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

type JobOption func(*InventoryUpdateJob)

// WithLockTimings overrides the per-product lock TTL, bounded wait and poll
// interval.
func WithLockTimings(ttl, wait, poll time.Duration) JobOption {
	return func(j *InventoryUpdateJob) {
		j.lockTTL = ttl
		j.lockWait = wait
		j.lockPoll = poll
	}
}

// Execute decrements stock for every item of the sale, in list order. Each
// product is decremented under its own narrow lock; the conditional update
// underneath is what actually prevents oversell, the lock serializes the
// wider per-product workflow. A single false from the store fails the whole
// job and rolls the transaction back.
func (j *InventoryUpdateJob) Execute(ctx context.Context, saleID int64, items []domain.SaleItem) error {
	j.metrics.Increment(ctx, "inventory_update.started", 1)
	j.metrics.Gauge(ctx, "inventory_update.batch_size", float64(len(items)))

	err := j.repo.WithTx(ctx, func(txCtx context.Context) error {
		for _, item := range items {
			key := fmt.Sprintf(productLockTemplate, item.ProductID)

			err := j.locker.Run(txCtx, key, j.lockTTL, j.lockWait, j.lockPoll, func(lockCtx context.Context) error {
				applied, err := j.repo.DecrementIfEnough(lockCtx, item.ProductID, item.Quantity)
				if err != nil {
					return fmt.Errorf("decrement product %d: %w", item.ProductID, err)
				}
				if !applied {
					return fmt.Errorf("product %d needs %d: %w",
						item.ProductID, item.Quantity, domain.ErrInsufficientStock)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		j.metrics.Increment(ctx, "inventory_update.failed", 1)
		return fmt.Errorf("inventory update for sale %d: %w", saleID, err)
	}

	j.invalidate(ctx, items)
	j.metrics.Increment(ctx, "inventory_update.completed", 1)
	j.logger.Info("inventory updated",
		zap.Int64("sale_id", saleID), zap.Int("items", len(items)))
	return nil
}

// invalidate refreshes read caches after the decrements committed. The
// counters are already correct at this point, so a cache failure is logged
// and absorbed; stale entries expire via TTL anyway.
func (j *InventoryUpdateJob) invalidate(ctx context.Context, items []domain.SaleItem) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	if err := j.cache.InvalidateByProducts(ctx, ids); err != nil {
		j.logger.Warn("cache invalidation failed", zap.Int64s("product_ids", ids), zap.Error(err))
		return
	}
	j.metrics.Increment(ctx, "inventory_cache.invalidated", 1)
}

// Failed is the terminal hook the queue calls after the last attempt. It
// records the failure for operators and must never panic.
func (j *InventoryUpdateJob) Failed(saleID int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("inventory update failure hook panicked", zap.Any("panic", r))
		}
	}()

	j.metrics.Increment(context.Background(), "inventory_update.exhausted", 1)
	j.logger.Error("inventory update permanently failed",
		zap.Int64("sale_id", saleID), zap.Error(err))
}

// InventoryUpdateTask binds a job invocation to the queue's Task contract.
type InventoryUpdateTask struct {
	job    *InventoryUpdateJob
	saleID int64
	items  []domain.SaleItem
}

func NewInventoryUpdateTask(job *InventoryUpdateJob, saleID int64, items []domain.SaleItem) *InventoryUpdateTask {
	return &InventoryUpdateTask{job: job, saleID: saleID, items: items}
}

func (t *InventoryUpdateTask) Name() string { return "inventory_update" }

func (t *InventoryUpdateTask) Handle(ctx context.Context) error {
	return t.job.Execute(ctx, t.saleID, t.items)
}

func (t *InventoryUpdateTask) Failed(err error) {
	t.job.Failed(t.saleID, err)
}
