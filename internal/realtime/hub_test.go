package realtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"restaurante/internal/models"
	"restaurante/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) handle(ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

func (r *recorder) names() []string {
	var out []string
	for _, ev := range r.snapshot() {
		out = append(out, ev.Name)
	}
	return out
}

func TestHub_DeliversInOrderPerSubscriber(t *testing.T) {
	hub := realtime.NewHub(0)
	rec := &recorder{}
	sub := hub.Subscribe(realtime.AdminRoom, rec.handle)
	defer sub.Unsubscribe()

	for _, id := range []string{"1", "2", "3"} {
		hub.Deliver(realtime.AdminRoom, realtime.Event{Name: realtime.EventNewOrder, Order: models.Order{ID: id}})
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	events := rec.snapshot()
	assert.Equal(t, "1", events[0].Order.ID)
	assert.Equal(t, "2", events[1].Order.ID)
	assert.Equal(t, "3", events[2].Order.ID)
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	hub := realtime.NewHub(0)
	admin, order := &recorder{}, &recorder{}
	defer hub.Subscribe(realtime.AdminRoom, admin.handle).Unsubscribe()
	defer hub.Subscribe(realtime.OrderRoom("42"), order.handle).Unsubscribe()

	n := hub.Deliver(realtime.OrderRoom("42"), realtime.Event{Name: realtime.EventPaymentConfirmed, Order: models.Order{ID: "42"}})
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, hub.Deliver(realtime.OrderRoom("7"), realtime.Event{Name: realtime.EventPaymentConfirmed}))

	require.Eventually(t, func() bool { return len(order.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, admin.snapshot())
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := realtime.NewHub(0)
	rec := &recorder{}
	sub := hub.Subscribe(realtime.AdminRoom, rec.handle)
	assert.Equal(t, 1, hub.Subscribers(realtime.AdminRoom))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, hub.Subscribers(realtime.AdminRoom))
	assert.Equal(t, 0, hub.Deliver(realtime.AdminRoom, realtime.Event{Name: realtime.EventNewOrder}))
}

func TestHub_FullMailboxDropsInsteadOfBlocking(t *testing.T) {
	hub := realtime.NewHub(1)
	release := make(chan struct{})
	sub := hub.Subscribe(realtime.AdminRoom, func(realtime.Event) { <-release })
	defer sub.Unsubscribe()
	defer close(release)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Deliver(realtime.AdminRoom, realtime.Event{Name: realtime.EventNewOrder})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a slow subscriber")
	}
}

func TestHub_HandlerPanicDoesNotKillSubscription(t *testing.T) {
	hub := realtime.NewHub(0)
	rec := &recorder{}
	first := true
	sub := hub.Subscribe(realtime.AdminRoom, func(ev realtime.Event) {
		if first {
			first = false
			panic("boom")
		}
		rec.handle(ev)
	})
	defer sub.Unsubscribe()

	hub.Deliver(realtime.AdminRoom, realtime.Event{Name: realtime.EventNewOrder})
	hub.Deliver(realtime.AdminRoom, realtime.Event{Name: realtime.EventOrderUpdated})

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{realtime.EventOrderUpdated}, rec.names())
}

func TestPublisher_Routing(t *testing.T) {
	hub := realtime.NewHub(0)
	channel := realtime.NewChannel(hub, realtime.NewLocalBackplane(hub))
	pub := realtime.NewPublisher(channel)

	admin, customer := &recorder{}, &recorder{}
	defer channel.Subscribe(realtime.AdminRoom, admin.handle).Unsubscribe()
	defer channel.Subscribe(realtime.OrderRoom("o1"), customer.handle).Unsubscribe()

	ctx := context.Background()
	o := models.Order{ID: "o1"}
	require.NoError(t, pub.OrderCreated(ctx, o))
	require.NoError(t, pub.PaymentConfirmed(ctx, o))
	require.NoError(t, pub.OrderStatusChanged(ctx, o))
	require.NoError(t, pub.PaymentRejected(ctx, o))

	require.Eventually(t, func() bool {
		return len(admin.snapshot()) == 4 && len(customer.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{
		realtime.EventNewOrder,
		realtime.EventOrderUpdated,
		realtime.EventOrderUpdated,
		realtime.EventOrderUpdated,
	}, admin.names())
	assert.Equal(t, []string{
		realtime.EventPaymentConfirmed,
		realtime.EventOrderStatusUpdated,
		realtime.EventPaymentRejected,
	}, customer.names())
}
