package port

import (
	"context"

	"github.com/rl1809/salestock/internal/core/domain"
)

// SaleFinalizedPublisher fans a SaleFinalized event out to its listeners.
// Publish is synchronous and in-process; listeners typically just enqueue
// follow-up work.
type SaleFinalizedPublisher interface {
	Publish(ctx context.Context, event domain.SaleFinalized)
}
