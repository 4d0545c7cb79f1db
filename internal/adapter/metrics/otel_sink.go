package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// OTelSink records counters and gauges through an OpenTelemetry meter.
// Instruments are created on first use and reused afterwards.
type OTelSink struct {
	meter metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Float64Gauge
}

func NewOTelSink(meter metric.Meter) *OTelSink {
	return &OTelSink{
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Float64Gauge),
	}
}

func (s *OTelSink) Increment(ctx context.Context, name string, by int64) {
	s.mu.Lock()
	counter, ok := s.counters[name]
	if !ok {
		var err error
		counter, err = s.meter.Int64Counter(name)
		if err != nil {
			s.mu.Unlock()
			return
		}
		s.counters[name] = counter
	}
	s.mu.Unlock()

	counter.Add(ctx, by)
}

func (s *OTelSink) Gauge(ctx context.Context, name string, value float64) {
	s.mu.Lock()
	gauge, ok := s.gauges[name]
	if !ok {
		var err error
		gauge, err = s.meter.Float64Gauge(name)
		if err != nil {
			s.mu.Unlock()
			return
		}
		s.gauges[name] = gauge
	}
	s.mu.Unlock()

	gauge.Record(ctx, value)
}
