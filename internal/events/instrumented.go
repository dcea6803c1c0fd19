package events

import (
	"context"
	"time"

	"student-fee-service/internal/metrics"
)

type instrumented struct {
	next    Publisher
	metrics *metrics.EventMetrics
}

// Instrument records count, latency and failures of every Publish on m.
func Instrument(p Publisher, m *metrics.EventMetrics) Publisher {
	if m == nil {
		return p
	}
	return &instrumented{next: p, metrics: m}
}

func (p *instrumented) Publish(ctx context.Context, event Event) error {
	start := time.Now()
	err := p.next.Publish(ctx, event)
	p.metrics.RecordPublish(ctx, event.Type, time.Since(start), err)
	return err
}

func (p *instrumented) Close() error {
	return p.next.Close()
}
