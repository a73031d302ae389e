package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"restaurante/pkg/rabbitmq"

	"github.com/streadway/amqp"
)

// EventsExchange is the fanout exchange shared by every instance.
const EventsExchange = "order_events"

var errMalformedEnvelope = errors.New("malformed envelope")

// AMQPBackplane relays envelopes through a RabbitMQ fanout exchange.
type AMQPBackplane struct {
	client *rabbitmq.Client
}

// NewAMQPBackplane connects to url and declares EventsExchange.
func NewAMQPBackplane(url string) (*AMQPBackplane, error) {
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: url, Exchange: EventsExchange})
	if err != nil {
		return nil, err
	}
	return &AMQPBackplane{client: client}, nil
}

func (b *AMQPBackplane) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return b.client.Publish(ctx, EventsExchange, env.Event.Name, body)
}

// Run consumes until the connection is lost. The next call redials, which
// Channel.Run does with backoff.
func (b *AMQPBackplane) Run(ctx context.Context, deliver func(Envelope)) error {
	return b.client.ConsumeFanout(ctx, EventsExchange, func(msg amqp.Delivery) error {
		env, ok := decodeEnvelope(msg.Body)
		if !ok {
			return errMalformedEnvelope
		}
		deliver(env)
		return nil
	})
}

func (b *AMQPBackplane) Close() error {
	return b.client.Close()
}
