package metrics

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/salestock/internal/port"
)

// Guard wraps a sink so that nothing it does can reach business code: every
// panic is recovered and logged. Inventory math must not depend on a
// telemetry backend being healthy.
type Guard struct {
	next   port.MetricsSink
	logger *zap.Logger
}

func NewGuard(next port.MetricsSink, logger *zap.Logger) *Guard {
	return &Guard{next: next, logger: logger}
}

func (g *Guard) Increment(ctx context.Context, name string, by int64) {
	defer g.recover(name)
	g.next.Increment(ctx, name, by)
}

func (g *Guard) Gauge(ctx context.Context, name string, value float64) {
	defer g.recover(name)
	g.next.Gauge(ctx, name, value)
}

func (g *Guard) recover(name string) {
	if r := recover(); r != nil {
		g.logger.Warn("metrics sink failure", zap.String("metric", name), zap.Any("panic", r))
	}
}

// Nop discards all observations; handy in tests and as a default.
type Nop struct{}

func (Nop) Increment(context.Context, string, int64) {}
func (Nop) Gauge(context.Context, string, float64)   {}
