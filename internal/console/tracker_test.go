package console_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"restaurante/internal/console"
	"restaurante/internal/models"
	"restaurante/internal/orderflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTracker_NotFound(t *testing.T) {
	store := new(MockStore)
	store.On("GetOrder", mock.Anything, "nope").Return(nil, fmt.Errorf("%w: nope", models.ErrNotFound))

	tr := console.NewTracker(store, "nope")
	assert.Equal(t, console.TrackerLoading, tr.State())

	require.NoError(t, tr.Load(context.Background()))
	assert.Equal(t, console.TrackerNotFound, tr.State())
	_, ok := tr.View()
	assert.False(t, ok)
}

func TestTracker_LoadFailureKeepsLastView(t *testing.T) {
	o := order("a", models.DeliveryTypeDelivery, models.StatusPreparando, models.PaymentConfirmado, 0)
	store := new(MockStore)
	store.On("GetOrder", mock.Anything, "a").Return(&o, nil).Once()
	store.On("GetOrder", mock.Anything, "a").Return(nil, models.ErrConnectivity).Once()

	tr := console.NewTracker(store, "a")
	require.NoError(t, tr.Load(context.Background()))

	err := tr.Load(context.Background())
	assert.True(t, errors.Is(err, models.ErrConnectivity))
	assert.Equal(t, console.TrackerReady, tr.State())

	view, ok := tr.View()
	require.True(t, ok)
	assert.Equal(t, 2, view.Current)
}

func TestTracker_FollowsBroadcasts(t *testing.T) {
	o := order("a", models.DeliveryTypePickup, models.StatusNovo, models.PaymentPendente, 0)
	store := new(MockStore)
	store.On("GetOrder", mock.Anything, "a").Return(&o, nil).Once()

	tr := console.NewTracker(store, "a")
	var states []console.TrackerState
	tr.OnChange(func(s console.TrackerState) { states = append(states, s) })
	require.NoError(t, tr.Load(context.Background()))

	view, ok := tr.View()
	require.True(t, ok)
	assert.Equal(t, 0, view.Current)

	paid := o
	paid.PaymentStatus = models.PaymentConfirmado
	tr.HandleEvent(paid)
	view, _ = tr.View()
	assert.Equal(t, 1, view.Current)

	other := order("b", models.DeliveryTypePickup, models.StatusCancelado, models.PaymentRejeitado, time.Minute)
	tr.HandleEvent(other)
	view, _ = tr.View()
	assert.Equal(t, "a", view.OrderID, "events of other orders are ignored")

	ready := paid
	ready.OrderStatus = models.StatusProntoRetirada
	tr.HandleEvent(ready)
	view, _ = tr.View()
	assert.Equal(t, 3, view.Current)
	assert.Equal(t, "ready_for_pickup", view.Steps[view.Current].Key)

	rejected := o
	rejected.OrderStatus = models.StatusCancelado
	rejected.PaymentStatus = models.PaymentRejeitado
	tr.HandleEvent(rejected)
	view, _ = tr.View()
	assert.True(t, view.Cancelled)
	assert.Equal(t, orderflow.StepCancelled, view.Current)

	assert.Len(t, states, 4)
}

func TestTracker_LoadKeepsBroadcastReceivedDuringFetch(t *testing.T) {
	stale := order("a", models.DeliveryTypePickup, models.StatusNovo, models.PaymentPendente, 0)
	paid := stale
	paid.PaymentStatus = models.PaymentConfirmado
	paid.OrderStatus = models.StatusPreparando

	store := new(MockStore)
	tr := console.NewTracker(store, "a")
	store.On("GetOrder", mock.Anything, "a").
		Run(func(mock.Arguments) { tr.HandleEvent(paid) }).
		Return(&stale, nil).Once()

	require.NoError(t, tr.Load(context.Background()))

	assert.Equal(t, console.TrackerReady, tr.State())
	view, ok := tr.View()
	require.True(t, ok)
	assert.Equal(t, orderflow.Track(paid).Current, view.Current)
}
