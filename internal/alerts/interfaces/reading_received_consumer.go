package interfaces

import (
	"context"
	"errors"
	"time"

	alertapp "coldchain-cloud/internal/alerts/application"
	"coldchain-cloud/internal/observability/metrics"
	telemetryevents "coldchain-cloud/internal/telemetry/application/events"
)

// ReadingReceivedConsumer adapts reading events into the alert service.
type ReadingReceivedConsumer struct {
	app *alertapp.Service
}

// NewReadingReceivedConsumer constructs a consumer.
func NewReadingReceivedConsumer(app *alertapp.Service) (*ReadingReceivedConsumer, error) {
	if app == nil {
		return nil, errors.New("alerts consumer: nil service")
	}
	return &ReadingReceivedConsumer{app: app}, nil
}

// Consume handles a reading received event.
func (c *ReadingReceivedConsumer) Consume(ctx context.Context, event telemetryevents.ReadingReceived) error {
	if !event.OccurredAt.IsZero() {
		metrics.ObserveConsumerLag("alerts.reading", time.Since(event.OccurredAt))
	}
	return c.app.HandleReadingReceived(ctx, event)
}
