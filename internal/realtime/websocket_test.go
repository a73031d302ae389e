package realtime_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"restaurante/internal/models"
	"restaurante/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWSServer(t *testing.T, hub *realtime.Hub, authorize realtime.AdminAuthorizer) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	realtime.NewWSServer(hub, authorize).RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

type orderSink struct {
	mu     sync.Mutex
	orders []models.Order
}

func (s *orderSink) add(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

func (s *orderSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func TestWebsocket_ClientReceivesRoomEvents(t *testing.T) {
	hub := realtime.NewHub(0)
	url := startWSServer(t, hub, nil)

	client := realtime.NewClient(url, realtime.WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	confirmed := &orderSink{}
	client.On(realtime.EventPaymentConfirmed, confirmed.add)
	require.NoError(t, client.JoinOrder("o1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	require.Eventually(t, func() bool { return hub.Subscribers(realtime.OrderRoom("o1")) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Deliver(realtime.OrderRoom("o1"), realtime.Event{
		Name:  realtime.EventPaymentConfirmed,
		Order: models.Order{ID: "o1", PaymentStatus: models.PaymentConfirmado},
	})
	hub.Deliver(realtime.OrderRoom("o2"), realtime.Event{Name: realtime.EventPaymentConfirmed, Order: models.Order{ID: "o2"}})

	require.Eventually(t, func() bool { return confirmed.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	confirmed.mu.Lock()
	assert.Equal(t, models.PaymentConfirmado, confirmed.orders[0].PaymentStatus)
	confirmed.mu.Unlock()

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers(realtime.OrderRoom("o1")) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_JoinAdminRequiresValidToken(t *testing.T) {
	hub := realtime.NewHub(0)
	url := startWSServer(t, hub, func(token string) error {
		if token != "good" {
			return errors.New("bad token")
		}
		return nil
	})

	client := realtime.NewClient(url)
	var mu sync.Mutex
	var controls []realtime.ControlMessage
	client.OnControl(func(m realtime.ControlMessage) {
		mu.Lock()
		defer mu.Unlock()
		controls = append(controls, m)
	})
	require.NoError(t, client.JoinAdmin("bad"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(controls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, realtime.EventError, controls[0].Event)
	mu.Unlock()
	assert.Equal(t, 0, hub.Subscribers(realtime.AdminRoom))

	require.NoError(t, client.JoinAdmin("good"))
	require.Eventually(t, func() bool { return hub.Subscribers(realtime.AdminRoom) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ReportsConnectionChanges(t *testing.T) {
	hub := realtime.NewHub(0)
	url := startWSServer(t, hub, nil)

	client := realtime.NewClient(url)
	states := make(chan bool, 4)
	client.OnConnectionChange(func(connected bool) { states <- connected })

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = client.Run(ctx) }()

	select {
	case up := <-states:
		assert.True(t, up)
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}
	assert.True(t, client.Connected())

	cancel()
	select {
	case up := <-states:
		assert.False(t, up)
	case <-time.After(2 * time.Second):
		t.Fatal("client never reported the disconnect")
	}
}
