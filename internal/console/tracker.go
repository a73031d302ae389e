package console

import (
	"context"
	"errors"
	"slices"
	"sync"

	"restaurante/internal/logger"
	"restaurante/internal/models"
	"restaurante/internal/orderflow"
	"restaurante/internal/realtime"
)

// TrackerState is the lifecycle of the customer tracking page.
type TrackerState string

const (
	TrackerLoading  TrackerState = "loading"
	TrackerReady    TrackerState = "ready"
	TrackerNotFound TrackerState = "not_found"
	TrackerFailed   TrackerState = "failed"
)

// Tracker follows a single order for the customer.
type Tracker struct {
	store   OrderStore
	orderID string

	mu       sync.Mutex
	state    TrackerState
	order    models.Order
	version  uint64
	onChange []func(TrackerState)
}

// NewTracker creates a tracker for orderID.
func NewTracker(store OrderStore, orderID string) *Tracker {
	return &Tracker{store: store, orderID: orderID, state: TrackerLoading}
}

// OrderID returns the tracked order id.
func (t *Tracker) OrderID() string {
	return t.orderID
}

// OnChange registers fn to be called whenever the view changes.
func (t *Tracker) OnChange(fn func(TrackerState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// Load fetches the order. An unknown id puts the tracker in the not-found
// state rather than failing. A broadcast received during the fetch is newer
// than the snapshot and is kept.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	version := t.version
	t.mu.Unlock()

	o, err := t.store.GetOrder(ctx, t.orderID)

	t.mu.Lock()
	switch {
	case t.version != version:
		err = nil
	case err == nil:
		t.order = *o
		t.state = TrackerReady
		t.version++
	case errors.Is(err, models.ErrNotFound):
		t.state = TrackerNotFound
		err = nil
	case t.state != TrackerReady:
		t.state = TrackerFailed
	}
	state := t.state
	t.mu.Unlock()

	t.changed(state)
	return err
}

// HandleEvent replaces the local order with a broadcast copy.
func (t *Tracker) HandleEvent(o models.Order) {
	if o.ID != t.orderID {
		return
	}
	t.mu.Lock()
	t.order = o
	t.state = TrackerReady
	t.version++
	t.mu.Unlock()
	t.changed(TrackerReady)
}

// State returns the current lifecycle state.
func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// View returns the tracking view; ok is false until the order is known.
func (t *Tracker) View() (view orderflow.TrackingView, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TrackerReady {
		return orderflow.TrackingView{}, false
	}
	return orderflow.Track(t.order), true
}

func (t *Tracker) changed(state TrackerState) {
	t.mu.Lock()
	fns := slices.Clone(t.onChange)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

// Attach subscribes the tracker to its order room and reloads the order
// after every reconnect.
func (t *Tracker) Attach(ctx context.Context, client *realtime.Client) error {
	for _, event := range []string{
		realtime.EventOrderStatusUpdated,
		realtime.EventPaymentConfirmed,
		realtime.EventPaymentRejected,
	} {
		client.On(event, t.HandleEvent)
	}
	client.OnConnectionChange(func(connected bool) {
		if !connected {
			return
		}
		go func() {
			if err := t.Load(ctx); err != nil {
				logger.Warn("failed to refresh tracked order", "order_id", t.orderID, "err", err)
			}
		}()
	})
	return client.JoinOrder(t.orderID)
}
