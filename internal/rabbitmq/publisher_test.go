package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type declaredExchange struct {
	name    string
	kind    string
	durable bool
}

type fakeChannel struct {
	mu sync.Mutex

	exchanges  []declaredExchange
	queues     []string
	bindings   [][3]string // queue, key, exchange
	published  []amqp.Publishing
	prefetch   int
	closed     bool
	publishErr error
	declareErr error

	deliveries chan amqp.Delivery
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.declareErr != nil {
		return c.declareErr
	}
	c.exchanges = append(c.exchanges, declaredExchange{name: name, kind: kind, durable: durable})
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues = append(c.queues, name)
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, [3]string{name, key, exchange})
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// newTestPublisher wires a publisher to fake channels without a broker. Each
// call to the channel factory hands out the next fake in sequence.
func newTestPublisher(t *testing.T, channels ...*fakeChannel) (*Publisher, *int) {
	t.Helper()
	dials := 0
	next := 0
	p := NewPublisher("amqp://test", zap.NewNop())
	p.dial = func(url string) (*amqp.Connection, error) {
		dials++
		return nil, nil
	}
	p.channel = func(conn *amqp.Connection) (Channel, error) {
		require.Less(t, next, len(channels), "unexpected extra channel open")
		ch := channels[next]
		next++
		return ch, nil
	}
	return p, &dials
}

func TestPublisherPublish(t *testing.T) {
	t.Run("declares a durable topic exchange and publishes a persistent message", func(t *testing.T) {
		ch := &fakeChannel{}
		p, dials := newTestPublisher(t, ch)

		err := p.Publish(context.Background(), []byte(`{"booking_id":"b1"}`), "booking-events", "booking.created")

		require.NoError(t, err)
		assert.Equal(t, 1, *dials)
		require.Len(t, ch.exchanges, 1)
		assert.Equal(t, declaredExchange{name: "booking-events", kind: amqp.ExchangeTopic, durable: true}, ch.exchanges[0])
		require.Len(t, ch.published, 1)
		msg := ch.published[0]
		assert.Equal(t, "application/json", msg.ContentType)
		assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
		assert.NotEmpty(t, msg.MessageId)
		assert.Equal(t, []byte(`{"booking_id":"b1"}`), msg.Body)
	})

	t.Run("reuses the cached channel across publishes", func(t *testing.T) {
		ch := &fakeChannel{}
		p, dials := newTestPublisher(t, ch)

		require.NoError(t, p.Publish(context.Background(), []byte(`1`), "booking-events", "booking.created"))
		require.NoError(t, p.Publish(context.Background(), []byte(`2`), "booking-events", "booking.created"))

		assert.Equal(t, 1, *dials)
		assert.Len(t, ch.published, 2)
	})

	t.Run("reconnects once when the cached channel has gone stale", func(t *testing.T) {
		stale := &fakeChannel{}
		fresh := &fakeChannel{}
		p, dials := newTestPublisher(t, stale, fresh)

		require.NoError(t, p.Publish(context.Background(), []byte(`1`), "booking-events", "booking.created"))

		stale.mu.Lock()
		stale.publishErr = amqp.ErrClosed
		stale.closed = true
		stale.mu.Unlock()

		require.NoError(t, p.Publish(context.Background(), []byte(`2`), "booking-events", "booking.created"))

		assert.Equal(t, 2, *dials)
		require.Len(t, fresh.published, 1)
		assert.Equal(t, []byte(`2`), fresh.published[0].Body)
	})

	t.Run("retries the publish when the channel dies mid-flight", func(t *testing.T) {
		dead := &fakeChannel{publishErr: amqp.ErrClosed, closed: true}
		fresh := &fakeChannel{}
		p, dials := newTestPublisher(t, dead, fresh)

		err := p.Publish(context.Background(), []byte(`1`), "booking-events", "booking.created")

		require.NoError(t, err)
		assert.Equal(t, 2, *dials)
		require.Len(t, fresh.published, 1)
	})

	t.Run("does not retry when the channel is still open", func(t *testing.T) {
		ch := &fakeChannel{publishErr: errors.New("NO_ROUTE")}
		p, _ := newTestPublisher(t, ch)

		err := p.Publish(context.Background(), []byte(`1`), "booking-events", "booking.created")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "NO_ROUTE")
	})

	t.Run("dial failure surfaces to the caller", func(t *testing.T) {
		p := NewPublisher("amqp://test", zap.NewNop())
		p.dial = func(url string) (*amqp.Connection, error) {
			return nil, errors.New("connection refused")
		}

		err := p.Publish(context.Background(), []byte(`1`), "booking-events", "booking.created")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to rabbitmq")
	})

	t.Run("concurrent publishes share a single connection", func(t *testing.T) {
		ch := &fakeChannel{}
		p, dials := newTestPublisher(t, ch)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, p.Publish(context.Background(), []byte(`x`), "booking-events", "booking.created"))
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, *dials)
		assert.Len(t, ch.published, 10)
	})
}

func TestPublisherClose(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newTestPublisher(t, ch)

	require.NoError(t, p.Publish(context.Background(), []byte(`1`), "booking-events", "booking.created"))
	require.NoError(t, p.Close())
	assert.True(t, ch.IsClosed())
}
