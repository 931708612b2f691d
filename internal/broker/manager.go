// Package broker owns the AMQP connection shared by publishers and
// consumers of the workshift feed.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var (
	ErrClosed       = errors.New("broker manager closed")
	ErrNotConnected = errors.New("broker not connected")
)

const (
	initialBackoff = 500 * time.Millisecond
	dialTimeout    = 10 * time.Second
)

// Manager holds one connection and one channel. A closed connection or
// channel is noticed through NotifyClose and replaced on the next
// Channel call.
type Manager struct {
	url        string
	maxBackoff time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func NewManager(url string, maxBackoff time.Duration, log zerolog.Logger) *Manager {
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &Manager{
		url:        url,
		maxBackoff: maxBackoff,
		log:        log.With().Str("component", "broker").Logger(),
	}
}

// Connect dials until a channel is open or ctx ends.
func (m *Manager) Connect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		_, err := m.Channel(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}

		wait := Backoff(attempt, m.maxBackoff)
		m.log.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", wait).Msg("broker connect failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Channel returns the live channel, reopening the connection or channel
// first if either has gone away. It makes a single attempt.
func (m *Manager) Channel(ctx context.Context) (*amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.ch != nil && !m.ch.IsClosed() {
		return m.ch, nil
	}

	if m.conn == nil || m.conn.IsClosed() {
		conn, err := amqp.DialConfig(m.url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		if err != nil {
			return nil, fmt.Errorf("dial amqp: %w", err)
		}
		m.conn = conn
		m.watchConn(conn)
		m.log.Info().Msg("broker connection established")
	}

	ch, err := m.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	m.ch = ch
	m.watchChannel(ch)
	return ch, nil
}

func (m *Manager) watchConn(conn *amqp.Connection) {
	closes := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closes; ok && err != nil {
			m.log.Warn().Int("code", err.Code).Str("reason", err.Reason).Msg("broker connection lost")
		}
		m.mu.Lock()
		if m.conn == conn {
			m.conn, m.ch = nil, nil
		}
		m.mu.Unlock()
	}()
}

func (m *Manager) watchChannel(ch *amqp.Channel) {
	closes := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closes; ok && err != nil {
			m.log.Warn().Int("code", err.Code).Str("reason", err.Reason).Msg("broker channel closed")
		}
		m.mu.Lock()
		if m.ch == ch {
			m.ch = nil
		}
		m.mu.Unlock()
	}()
}

// DeclareFanout declares exchange as a fanout, declares queue and binds it.
// Non-durable to match the producer side of the feed.
func (m *Manager) DeclareFanout(ctx context.Context, exchange, queue string) error {
	ch, err := m.Channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queue, exchange, err)
	}
	return nil
}

// Consume starts a manual-ack consumer on queue. The returned channel is
// closed when the underlying AMQP channel goes away.
func (m *Manager) Consume(ctx context.Context, queue string, prefetch int) (<-chan amqp.Delivery, error) {
	ch, err := m.Channel(ctx)
	if err != nil {
		return nil, err
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return deliveries, nil
}

func (m *Manager) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	ch, err := m.Channel(ctx)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}
	return nil
}

// Ping reports whether a connection is currently open. It never dials.
func (m *Manager) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.conn == nil || m.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.ch != nil {
		if err := m.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if m.conn != nil && !m.conn.IsClosed() {
		if err := m.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	m.ch, m.conn = nil, nil
	return errors.Join(errs...)
}

// Backoff returns the wait before retry number attempt (zero based):
// 500ms doubling up to limit.
func Backoff(attempt int, limit time.Duration) time.Duration {
	d := initialBackoff
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		return limit
	}
	return d
}
