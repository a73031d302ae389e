package orderflow_test

import (
	"testing"

	"restaurante/internal/models"
	"restaurante/internal/orderflow"

	"github.com/stretchr/testify/assert"
)

func TestTrack_DeliveryProgress(t *testing.T) {
	tests := []struct {
		status  models.OrderStatus
		payment models.PaymentStatus
		want    int
	}{
		{models.StatusNovo, models.PaymentPendente, 0},
		{models.StatusNovo, models.PaymentRejeitado, 0},
		{models.StatusNovo, models.PaymentConfirmado, 1},
		{models.StatusPreparando, models.PaymentConfirmado, 2},
		{models.StatusPronto, models.PaymentConfirmado, 3},
		{models.StatusSaiuEntrega, models.PaymentConfirmado, 3},
		{models.StatusEntregue, models.PaymentConfirmado, 4},
		{models.StatusFinalizado, models.PaymentConfirmado, 4},
	}
	for _, tt := range tests {
		o := newOrder(models.DeliveryTypeDelivery)
		o.OrderStatus, o.PaymentStatus = tt.status, tt.payment
		view := orderflow.Track(o)
		assert.Equal(t, tt.want, view.Current, tt.status)
		assert.False(t, view.Cancelled)
		assert.Equal(t, "Out for Delivery", view.Steps[3].Label)
	}
}

func TestTrack_PickupProgress(t *testing.T) {
	o := newOrder(models.DeliveryTypePickup)
	o.PaymentStatus = models.PaymentConfirmado

	o.OrderStatus = models.StatusProntoRetirada
	view := orderflow.Track(o)
	assert.Equal(t, 3, view.Current)
	assert.Equal(t, "Ready for Pickup", view.Steps[3].Label)
	assert.Len(t, view.Steps, 5)

	o.OrderStatus = models.StatusRetirado
	assert.Equal(t, 4, orderflow.CurrentStep(o))
}

func TestTrack_Cancelled(t *testing.T) {
	o := newOrder(models.DeliveryTypeDelivery)
	o.OrderStatus = models.StatusCancelado
	o.PaymentStatus = models.PaymentRejeitado

	view := orderflow.Track(o)
	assert.Equal(t, orderflow.StepCancelled, view.Current)
	assert.True(t, view.Cancelled)
	assert.Equal(t, models.PaymentRejeitado, view.PaymentStatus)
}
