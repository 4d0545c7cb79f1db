package port

import "context"

// MetricsSink records best-effort counters and gauges. Implementations must
// never let a metrics failure reach business code.
type MetricsSink interface {
	Increment(ctx context.Context, name string, by int64)
	Gauge(ctx context.Context, name string, value float64)
}
