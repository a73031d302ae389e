// Package orderflow holds the pure order lifecycle rules: legal status
// transitions, operator queue priority and the customer tracking view.
package orderflow

import (
	"fmt"

	"restaurante/internal/models"
)

var (
	deliveryPath = []models.OrderStatus{
		models.StatusNovo,
		models.StatusPreparando,
		models.StatusPronto,
		models.StatusSaiuEntrega,
		models.StatusEntregue,
		models.StatusFinalizado,
	}
	pickupPath = []models.OrderStatus{
		models.StatusNovo,
		models.StatusPreparando,
		models.StatusProntoRetirada,
		models.StatusRetirado,
		models.StatusFinalizado,
	}
)

// transitions maps a status to its single forward successor per delivery type.
var transitions = map[models.DeliveryType]map[models.OrderStatus]models.OrderStatus{
	models.DeliveryTypeDelivery: successors(deliveryPath),
	models.DeliveryTypePickup:   successors(pickupPath),
}

func successors(path []models.OrderStatus) map[models.OrderStatus]models.OrderStatus {
	m := make(map[models.OrderStatus]models.OrderStatus, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		m[path[i]] = path[i+1]
	}
	return m
}

// Path returns a copy of the ordered status path for the delivery type.
func Path(dt models.DeliveryType) []models.OrderStatus {
	var p []models.OrderStatus
	switch dt {
	case models.DeliveryTypeDelivery:
		p = deliveryPath
	case models.DeliveryTypePickup:
		p = pickupPath
	default:
		return nil
	}
	out := make([]models.OrderStatus, len(p))
	copy(out, p)
	return out
}

// IsTerminal reports whether no further transition is accepted from s.
func IsTerminal(s models.OrderStatus) bool {
	return s == models.StatusCancelado || s == models.StatusFinalizado
}

// IsFinished reports whether the order no longer needs operator attention.
func IsFinished(o models.Order) bool {
	switch o.OrderStatus {
	case models.StatusEntregue, models.StatusCancelado, models.StatusFinalizado, models.StatusRetirado:
		return true
	}
	return false
}

// NextStatus returns the single legal forward successor of current.
func NextStatus(current models.OrderStatus, dt models.DeliveryType) (models.OrderStatus, error) {
	if IsTerminal(current) {
		return "", fmt.Errorf("%w: %s is terminal", models.ErrInvalidTransition, current)
	}
	path, ok := transitions[dt]
	if !ok {
		return "", fmt.Errorf("%w: unknown delivery type %q", models.ErrInvalidTransition, dt)
	}
	next, ok := path[current]
	if !ok {
		return "", fmt.Errorf("%w: %s is not on the %s path", models.ErrInvalidTransition, current, dt)
	}
	return next, nil
}

// ValidateTransition checks that target is legal for the order right now.
// Only the forward successor or a cancellation is accepted, and preparation
// cannot start before the payment is confirmed.
func ValidateTransition(o models.Order, target models.OrderStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, target)
	}
	if IsTerminal(o.OrderStatus) {
		return fmt.Errorf("%w: order %s is already %s", models.ErrInvalidTransition, o.ID, o.OrderStatus)
	}
	if target == models.StatusCancelado {
		return nil
	}
	next, err := NextStatus(o.OrderStatus, o.DeliveryType)
	if err != nil {
		return err
	}
	if target != next {
		return fmt.Errorf("%w: %s -> %s (expected %s)", models.ErrInvalidTransition, o.OrderStatus, target, next)
	}
	if target == models.StatusPreparando && o.PaymentStatus != models.PaymentConfirmado {
		return fmt.Errorf("%w (order %s)", models.ErrPaymentPending, o.ID)
	}
	return nil
}

// ValidatePaymentConfirm checks that the payment of o may be confirmed.
func ValidatePaymentConfirm(o models.Order) error {
	return validatePaymentDecision(o)
}

// ValidatePaymentReject checks that the payment of o may be rejected.
// A rejected payment also cancels the order.
func ValidatePaymentReject(o models.Order) error {
	return validatePaymentDecision(o)
}

func validatePaymentDecision(o models.Order) error {
	if IsTerminal(o.OrderStatus) {
		return fmt.Errorf("%w: order %s is already %s", models.ErrInvalidTransition, o.ID, o.OrderStatus)
	}
	if o.PaymentStatus != models.PaymentPendente {
		return fmt.Errorf("%w: payment of order %s is already %s", models.ErrInvalidTransition, o.ID, o.PaymentStatus)
	}
	return nil
}

// Apply returns o moved to target after validating the transition.
func Apply(o models.Order, target models.OrderStatus) (models.Order, error) {
	if err := ValidateTransition(o, target); err != nil {
		return o, err
	}
	o.OrderStatus = target
	return o, nil
}

// ConfirmPayment returns o with a confirmed payment.
func ConfirmPayment(o models.Order) (models.Order, error) {
	if err := ValidatePaymentConfirm(o); err != nil {
		return o, err
	}
	o.PaymentStatus = models.PaymentConfirmado
	return o, nil
}

// RejectPayment returns o with a rejected payment and a cancelled status.
func RejectPayment(o models.Order) (models.Order, error) {
	if err := ValidatePaymentReject(o); err != nil {
		return o, err
	}
	o.PaymentStatus = models.PaymentRejeitado
	o.OrderStatus = models.StatusCancelado
	return o, nil
}
