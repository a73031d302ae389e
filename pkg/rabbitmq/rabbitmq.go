package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"restaurante/internal/logger"

	amqp "github.com/streadway/amqp"
)

// ErrClientClosed is returned once Close has been called.
var ErrClientClosed = errors.New("RabbitMQ client is closed")

// Client holds the RabbitMQ connection and the publishing channel. A
// connection or channel lost to the broker is redialed on next use.
type Client struct {
	cfg Config

	mu      sync.Mutex // guards conn, channel and publishing on channel
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
	// Exchange is declared as a durable fanout exchange on connect.
	Exchange string
}

// NewClient connects to RabbitMQ, opens a channel and declares the exchange.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{cfg: cfg}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connectLocked() error {
	if c.closed {
		return ErrClientClosed
	}

	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // Close connection if channel creation fails
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if c.cfg.Exchange != "" {
		err = ch.ExchangeDeclare(
			c.cfg.Exchange, // name
			"fanout",       // kind
			true,           // durable
			false,          // auto-deleted
			false,          // internal
			false,          // no-wait
			nil,            // arguments
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("failed to declare exchange %s: %w", c.cfg.Exchange, err)
		}
	}

	c.conn = conn
	c.channel = ch
	go c.watch(ch, ch.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

// watch forgets ch once the broker closes it so the next use redials.
func (c *Client) watch(ch *amqp.Channel, closed <-chan *amqp.Error) {
	if err, ok := <-closed; ok && err != nil {
		logger.Warn("RabbitMQ channel closed by broker", "code", err.Code, "reason", err.Reason)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == ch {
		c.channel = nil
	}
}

// ensureLocked redials when the connection or the publishing channel was lost.
func (c *Client) ensureLocked() error {
	if c.channel != nil && c.conn != nil && !c.conn.IsClosed() {
		return nil
	}
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}
	return c.connectLocked()
}

// connection returns an open connection, redialing when the previous one
// was lost.
func (c *Client) connection() (*amqp.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLocked(); err != nil {
		return nil, err
	}
	return c.conn, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
		c.channel = nil
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends a JSON body to exchange. Messages are transient: a missed
// event is recovered by the consumer refetching, never by redelivery.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLocked(); err != nil {
		return err
	}

	err := c.channel.Publish(
		exchange,   // exchange
		routingKey, // routing key, ignored by fanout exchanges
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// ConsumeFanout binds an exclusive, auto-deleted queue to exchange on its own
// channel and calls handler for every message until the deliveries channel
// closes or ctx ends. Handler errors drop the message instead of requeueing
// it. A lost connection is redialed when ConsumeFanout is called again.
func (c *Client) ConsumeFanout(ctx context.Context, exchange string, handler func(msg amqp.Delivery) error) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	queue, err := ch.QueueDeclare(
		"",    // name: server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue for consuming: %w", err)
	}

	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s: %w", queue.Name, exchange, err)
	}

	msgs, err := ch.Consume(
		queue.Name, // queue
		"",         // consumer tag
		false,      // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("RabbitMQ deliveries channel closed")
			}
			if err := handler(msg); err != nil {
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
