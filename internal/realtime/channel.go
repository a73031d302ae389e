package realtime

import (
	"context"
	"fmt"
	"time"

	"restaurante/internal/logger"
	"restaurante/internal/models"
)

// Backplane carries envelopes between service instances. Implementations
// deliver every published envelope back to each running instance.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	Run(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// Channel is the publish/subscribe surface used by the service.
type Channel struct {
	hub       *Hub
	backplane Backplane
	minDelay  time.Duration
	maxDelay  time.Duration
}

// ChannelOption customizes a Channel.
type ChannelOption func(*Channel)

// WithRetryBackoff sets the delay bounds between backplane restarts.
func WithRetryBackoff(minDelay, maxDelay time.Duration) ChannelOption {
	return func(c *Channel) {
		c.minDelay = minDelay
		c.maxDelay = maxDelay
	}
}

// NewChannel wires a hub to a backplane.
func NewChannel(hub *Hub, backplane Backplane, opts ...ChannelOption) *Channel {
	c := &Channel{
		hub:       hub,
		backplane: backplane,
		minDelay:  500 * time.Millisecond,
		maxDelay:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hub returns the local room registry.
func (c *Channel) Hub() *Hub {
	return c.hub
}

// Subscribe registers fn on room of the local hub.
func (c *Channel) Subscribe(room string, fn Handler) *Subscription {
	return c.hub.Subscribe(room, fn)
}

// Publish sends ev to room through the backplane.
func (c *Channel) Publish(ctx context.Context, room string, ev Event) error {
	if err := c.backplane.Publish(ctx, Envelope{Room: room, Event: ev}); err != nil {
		return fmt.Errorf("%w: publish %s to %s: %v", models.ErrConnectivity, ev.Name, room, err)
	}
	return nil
}

// Run pumps backplane deliveries into the hub until ctx is done. A backplane
// that stops, for instance because the broker went away, is restarted with
// exponential backoff; events published meanwhile are lost and consumers
// recover them by refetching after their own reconnect.
func (c *Channel) Run(ctx context.Context) error {
	delay := c.minDelay
	for {
		delivered := false
		err := c.backplane.Run(ctx, func(env Envelope) {
			delivered = true
			n := c.hub.Deliver(env.Room, env.Event)
			logger.Debug("realtime event delivered", "room", env.Room, "event", env.Event.Name, "subscribers", n)
		})
		if ctx.Err() != nil {
			return nil
		}
		if delivered {
			delay = c.minDelay
		}
		logger.Warn("realtime backplane stopped, restarting", "err", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

// Close releases the backplane.
func (c *Channel) Close() error {
	return c.backplane.Close()
}

// LocalBackplane serves a single instance by delivering straight to its hub.
type LocalBackplane struct {
	hub *Hub
}

// NewLocalBackplane creates a backplane bound to hub.
func NewLocalBackplane(hub *Hub) *LocalBackplane {
	return &LocalBackplane{hub: hub}
}

func (b *LocalBackplane) Publish(_ context.Context, env Envelope) error {
	b.hub.Deliver(env.Room, env.Event)
	return nil
}

func (b *LocalBackplane) Run(ctx context.Context, _ func(Envelope)) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBackplane) Close() error {
	return nil
}

// Publisher maps order mutations to room events.
type Publisher struct {
	channel *Channel
}

// NewPublisher creates a publisher on channel.
func NewPublisher(channel *Channel) *Publisher {
	return &Publisher{channel: channel}
}

// OrderCreated notifies the operator room of a new order.
func (p *Publisher) OrderCreated(ctx context.Context, o models.Order) error {
	return p.channel.Publish(ctx, AdminRoom, Event{Name: EventNewOrder, Order: o})
}

// OrderStatusChanged updates operators and the order's tracker.
func (p *Publisher) OrderStatusChanged(ctx context.Context, o models.Order) error {
	return p.fanout(ctx, o, EventOrderStatusUpdated)
}

// PaymentConfirmed updates operators and the order's tracker.
func (p *Publisher) PaymentConfirmed(ctx context.Context, o models.Order) error {
	return p.fanout(ctx, o, EventPaymentConfirmed)
}

// PaymentRejected updates operators and the order's tracker.
func (p *Publisher) PaymentRejected(ctx context.Context, o models.Order) error {
	return p.fanout(ctx, o, EventPaymentRejected)
}

func (p *Publisher) fanout(ctx context.Context, o models.Order, customerEvent string) error {
	adminErr := p.channel.Publish(ctx, AdminRoom, Event{Name: EventOrderUpdated, Order: o})
	customerErr := p.channel.Publish(ctx, OrderRoom(o.ID), Event{Name: customerEvent, Order: o})
	if adminErr != nil {
		return adminErr
	}
	return customerErr
}
