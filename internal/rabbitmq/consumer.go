package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DeliveryHandler processes one message body. A nil return acknowledges the
// message; any error rejects it without requeue. Handlers must be
// idempotent: the same business fact may arrive more than once.
type DeliveryHandler func(ctx context.Context, body []byte) error

// ErrDeliveriesClosed is returned when the broker closes the delivery
// stream out from under a running consumer.
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// Consumer is a long-running subscriber bound to one exchange / queue /
// routing key, processing one message at a time (prefetch 1, manual ack).
type Consumer struct {
	url        string
	exchange   string
	queue      string
	routingKey string
	logger     *zap.Logger

	conn *amqp.Connection
	ch   Channel

	dial    func(string) (*amqp.Connection, error)
	channel func(*amqp.Connection) (Channel, error)
}

func NewConsumer(url, exchange, queue, routingKey string, logger *zap.Logger) *Consumer {
	return &Consumer{
		url:        url,
		exchange:   exchange,
		queue:      queue,
		routingKey: routingKey,
		logger:     logger,
		dial:       dialAMQP,
		channel:    openChannel,
	}
}

// Start declares the topology, then blocks consuming deliveries until ctx
// is cancelled or the broker closes the stream. Message handling is
// strictly sequential within one consumer instance.
func (c *Consumer) Start(ctx context.Context, handler DeliveryHandler) error {
	ch, err := c.setup()
	if err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming from %s: %w", c.queue, err)
	}

	c.logger.Info("Consumer started, waiting for messages",
		zap.String("exchange", c.exchange),
		zap.String("queue", c.queue),
		zap.String("routing_key", c.routingKey),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping")
			return c.Close()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

// handleDelivery runs the handler and settles the message. Errors reject
// without requeue: a deterministic failure (bad data) would loop forever on
// requeue, so the message is dropped and kept visible through the logs.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler DeliveryHandler) {
	if err := handler(ctx, d.Body); err != nil {
		c.logger.Error("Failed to handle delivery, rejecting without requeue",
			zap.String("queue", c.queue),
			zap.String("message_id", d.MessageId),
			zap.Error(err),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to nack delivery", zap.String("message_id", d.MessageId), zap.Error(nackErr))
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to ack delivery", zap.String("message_id", d.MessageId), zap.Error(ackErr))
	}
}

func (c *Consumer) setup() (Channel, error) {
	conn, err := c.dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := c.channel(conn)
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := c.declareTopology(ch); err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return nil, err
	}

	c.conn = conn
	c.ch = ch
	return ch, nil
}

func (c *Consumer) declareTopology(ch Channel) error {
	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.exchange, err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, c.routingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s/%s: %w", c.queue, c.exchange, c.routingKey, err)
	}
	// One in-flight message per consumer instance.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	return nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			c.logger.Warn("Failed to close consumer channel", zap.Error(err))
		}
		c.ch = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.conn = nil
			return fmt.Errorf("failed to close consumer connection: %w", err)
		}
		c.conn = nil
	}
	return nil
}
