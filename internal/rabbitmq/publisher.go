package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes persistent messages to durable topic exchanges.
//
// The connection and channel are established lazily: the first Publish pays
// the initialization cost under the mutex, so concurrent callers cannot
// race to open duplicate connections. The publisher never retries a failed
// publish; retry policy belongs to the outbox relay.
type Publisher struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   Channel

	dial    func(string) (*amqp.Connection, error)
	channel func(*amqp.Connection) (Channel, error)
}

func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{
		url:     url,
		logger:  logger,
		dial:    dialAMQP,
		channel: openChannel,
	}
}

// Publish declares the exchange (idempotent, safe to repeat) and publishes
// the body as a persistent JSON message with a fresh message id. A call
// that finds the cached channel stale reconnects once before giving up.
func (p *Publisher) Publish(ctx context.Context, body []byte, exchange, routingKey string) error {
	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}

	if err := p.publishOn(ctx, ch, body, exchange, routingKey); err != nil {
		if !ch.IsClosed() {
			return err
		}
		// The channel died underneath us; one fresh attempt.
		p.logger.Warn("Publish hit a closed channel, reconnecting",
			zap.String("exchange", exchange),
			zap.Error(err),
		)
		ch, rErr := p.ensureChannel()
		if rErr != nil {
			return rErr
		}
		return p.publishOn(ctx, ch, body, exchange, routingKey)
	}
	return nil
}

func (p *Publisher) publishOn(ctx context.Context, ch Channel, body []byte, exchange, routingKey string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("Message published",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
		zap.String("message_id", msg.MessageId),
	)
	return nil
}

func (p *Publisher) ensureChannel() (Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	// Stale or first use: tear down whatever is left and rebuild.
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}

	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := p.channel(conn)
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("Connected to rabbitmq")
	return ch, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			p.logger.Warn("Failed to close rabbitmq channel", zap.Error(err))
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.conn = nil
			return fmt.Errorf("failed to close rabbitmq connection: %w", err)
		}
		p.conn = nil
	}
	return nil
}
