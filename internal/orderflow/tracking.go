package orderflow

import "restaurante/internal/models"

// Step is one customer-visible stage of an order.
type Step struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// StepCancelled is the current index of a cancelled order.
const StepCancelled = -1

var (
	stepAwaitingPayment  = Step{Key: "awaiting_payment", Label: "Awaiting Payment"}
	stepPaymentConfirmed = Step{Key: "payment_confirmed", Label: "Payment Confirmed"}
	stepPreparing        = Step{Key: "preparing", Label: "Preparing"}
	stepOutForDelivery   = Step{Key: "out_for_delivery", Label: "Out for Delivery"}
	stepReadyForPickup   = Step{Key: "ready_for_pickup", Label: "Ready for Pickup"}
	stepFinished         = Step{Key: "finished", Label: "Finished"}
)

// TrackingView is what the customer tracker renders.
type TrackingView struct {
	OrderID       string               `json:"order_id"`
	DeliveryType  models.DeliveryType  `json:"delivery_type"`
	Steps         []Step               `json:"steps"`
	Current       int                  `json:"current"`
	Cancelled     bool                 `json:"cancelled"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	AdminNotes    *string              `json:"admin_notes,omitempty"`
}

// Steps returns the ordered steps shown for the delivery type.
func Steps(dt models.DeliveryType) []Step {
	third := stepOutForDelivery
	if dt == models.DeliveryTypePickup {
		third = stepReadyForPickup
	}
	return []Step{stepAwaitingPayment, stepPaymentConfirmed, stepPreparing, third, stepFinished}
}

// CurrentStep returns the index of the active step, or StepCancelled.
// Statuses belonging to the other delivery path map to the equivalent stage.
func CurrentStep(o models.Order) int {
	switch o.OrderStatus {
	case models.StatusCancelado:
		return StepCancelled
	case models.StatusNovo:
		if o.PaymentStatus == models.PaymentConfirmado {
			return 1
		}
		return 0
	case models.StatusPreparando:
		return 2
	case models.StatusPronto, models.StatusSaiuEntrega, models.StatusProntoRetirada:
		return 3
	case models.StatusEntregue, models.StatusRetirado, models.StatusFinalizado:
		return 4
	}
	return 0
}

// Track maps o to its tracking view.
func Track(o models.Order) TrackingView {
	current := CurrentStep(o)
	return TrackingView{
		OrderID:       o.ID,
		DeliveryType:  o.DeliveryType,
		Steps:         Steps(o.DeliveryType),
		Current:       current,
		Cancelled:     current == StepCancelled,
		PaymentStatus: o.PaymentStatus,
		AdminNotes:    o.AdminNotes,
	}
}
