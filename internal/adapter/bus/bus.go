package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/core/domain"
)

type SaleFinalizedHandler func(ctx context.Context, event domain.SaleFinalized)

// Bus fans SaleFinalized events out to registered handlers, synchronously
// and in process. A panicking handler is isolated so it cannot starve the
// other listeners.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers []SaleFinalizedHandler
}

func New(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

func (b *Bus) Subscribe(h SaleFinalizedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, event domain.SaleFinalized) {
	b.mu.RLock()
	handlers := make([]SaleFinalizedHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, h SaleFinalizedHandler, event domain.SaleFinalized) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("sale finalized handler panicked",
				zap.Int64("sale_id", event.SaleID), zap.Any("panic", r))
		}
	}()
	h(ctx, event)
}
