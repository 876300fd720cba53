package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/events"
)

const resubscribeDelay = time.Second

// Subscriber consumes the bus channels over Redis pub/sub and feeds each
// decoded envelope to the handler. The receive loop resubscribes after
// connection errors until Stop is called.
type Subscriber struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a new instance of Subscriber.
func NewSubscriber(client *redis.Client, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		client: client,
		logger: logger,
	}
}

// Start begins consuming in a background goroutine.
func (s *Subscriber) Start(ctx context.Context, handler events.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("subscriber already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.consume(ctx, handler)
	return nil
}

// Stop cancels the receive loop and waits for it to drain.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	s.logger.Info("Bus subscriber stopped")
	return nil
}

func (s *Subscriber) consume(ctx context.Context, handler events.Handler) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := s.client.Subscribe(ctx,
			events.ChannelMessages, events.ChannelPresence, events.ChannelGroups)

		// Block until the subscription is confirmed so we do not silently
		// drop events published during startup.
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Bus subscribe failed, retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
			continue
		}
		s.logger.Info("Bus subscriber connected")

		ch := pubsub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					// Connection dropped; resubscribe.
					break receive
				}
				env, err := events.DecodeEnvelope([]byte(msg.Payload))
				if err != nil {
					s.logger.Warn("Dropping malformed bus payload",
						zap.Error(err), zap.String("channel", msg.Channel))
					continue
				}
				handler(ctx, env)
			}
		}
		_ = pubsub.Close()
		s.logger.Warn("Bus connection lost, resubscribing")
	}
}

var _ events.Subscriber = (*Subscriber)(nil)
