package workshiftsync

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/broker"
)

// Source is the broker side of the consumer.
type Source interface {
	DeclareFanout(ctx context.Context, exchange, queue string) error
	Consume(ctx context.Context, queue string, prefetch int) (<-chan amqp.Delivery, error)
}

type EventApplier interface {
	Apply(ctx context.Context, e Event) error
}

type ConsumerConfig struct {
	Exchange   string
	Queue      string
	MaxBackoff time.Duration
}

// Consumer drains the workshift queue one delivery at a time. A delivery is
// acked only after it has been applied.
type Consumer struct {
	src     Source
	applier EventApplier
	cfg     ConsumerConfig
	log     zerolog.Logger
}

func NewConsumer(src Source, applier EventApplier, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Consumer{
		src:     src,
		applier: applier,
		cfg:     cfg,
		log:     log.With().Str("component", "workshift-sync").Str("queue", cfg.Queue).Logger(),
	}
}

// Run subscribes and processes deliveries until ctx ends. Lost channels are
// re-declared and re-subscribed with backoff.
func (c *Consumer) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		deliveries, err := c.subscribe(ctx)
		if err != nil {
			if errors.Is(err, broker.ErrClosed) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			wait := broker.Backoff(attempt, c.cfg.MaxBackoff)
			attempt++
			c.log.Warn().Err(err).Dur("retry_in", wait).Msg("subscribe failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		attempt = 0
		c.log.Info().Str("exchange", c.cfg.Exchange).Msg("waiting for workshift events")
		c.drain(ctx, deliveries)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Msg("delivery channel closed, resubscribing")
	}
}

func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	if err := c.src.DeclareFanout(ctx, c.cfg.Exchange, c.cfg.Queue); err != nil {
		return nil, err
	}
	return c.src.Consume(ctx, c.cfg.Queue, 1)
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle decodes and applies one delivery, then settles it. Events that can
// never apply are acked and dropped. Failed applies are requeued.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	log := c.log.With().Str("routing_key", d.RoutingKey).Uint64("tag", d.DeliveryTag).Logger()

	event, err := Decode(d.RoutingKey, d.Body)
	if err != nil {
		log.Error().Err(err).Int("bytes", len(d.Body)).Msg("dropping workshift event")
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Msg("ack failed")
		}
		return
	}

	if err := c.applier.Apply(ctx, event); err != nil {
		log.Error().Err(err).Str("event", string(event.Kind())).Msg("apply failed, requeueing")
		if err := d.Nack(false, true); err != nil {
			log.Error().Err(err).Msg("nack failed")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Msg("ack failed")
		return
	}
	log.Debug().Str("event", string(event.Kind())).Msg("workshift event applied")
}
