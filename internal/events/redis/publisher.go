package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/events"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

const (
	publishAttempts = 3
	publishBackoff  = 100 * time.Millisecond
)

// Publisher pushes events onto Redis pub/sub channels. Publish runs after
// the durable write, never before it, so a bus outage degrades to
// local-instance-only delivery instead of losing messages.
type Publisher struct {
	client *redis.Client
	origin string
	logger *zap.Logger
}

// NewPublisher creates a new instance of Publisher. origin is this
// instance's boot-time id.
func NewPublisher(client *redis.Client, origin string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		origin: origin,
		logger: logger,
	}
}

// Publish serializes the event and publishes it with bounded retries. After
// the final failed attempt it returns ErrBusUnavailable; the caller logs and
// carries on, since local delivery already happened.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	data, err := events.EncodeEnvelope(p.origin, event)
	if err != nil {
		return err
	}
	channel := events.ChannelForEvent(event.Kind)

	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		lastErr = p.client.Publish(ctx, channel, data).Err()
		if lastErr == nil {
			metrics.BusPublishTotal.WithLabelValues("ok").Inc()
			return nil
		}
		p.logger.Warn("Bus publish attempt failed",
			zap.Error(lastErr),
			zap.String("channel", channel),
			zap.String("event_kind", string(event.Kind)),
			zap.Int("attempt", attempt),
		)
		if attempt < publishAttempts {
			select {
			case <-ctx.Done():
				metrics.BusPublishTotal.WithLabelValues("canceled").Inc()
				return ctx.Err()
			case <-time.After(publishBackoff * time.Duration(attempt)):
			}
		}
	}

	metrics.BusPublishTotal.WithLabelValues("failed").Inc()
	p.logger.Error("Bus publish failed, continuing in degraded mode",
		zap.Error(lastErr),
		zap.String("channel", channel),
		zap.String("event_kind", string(event.Kind)),
	)
	return domainErrors.ErrBusUnavailable
}

var _ events.Publisher = (*Publisher)(nil)
