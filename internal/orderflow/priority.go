package orderflow

import (
	"slices"
	"strings"

	"restaurante/internal/models"
)

// PriorityFinished is the priority of every finished order.
const PriorityFinished = 100

// Priority returns the queue priority of o; lower values surface first.
func Priority(o models.Order) int {
	if IsFinished(o) {
		return PriorityFinished
	}
	switch o.OrderStatus {
	case models.StatusNovo:
		if o.PaymentStatus == models.PaymentPendente {
			return 0
		}
		return 1
	case models.StatusPreparando:
		return 2
	case models.StatusPronto:
		return 3
	case models.StatusSaiuEntrega:
		return 4
	case models.StatusProntoRetirada:
		return 5
	}
	return 8
}

// Compare orders a before b by priority ascending, then most recent first.
// The id breaks remaining ties so the result is a strict total order.
func Compare(a, b models.Order) int {
	pa, pb := Priority(a), Priority(b)
	if pa != pb {
		if pa < pb {
			return -1
		}
		return 1
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortQueue sorts orders in place for the operator queue.
func SortQueue(orders []models.Order) {
	slices.SortStableFunc(orders, Compare)
}
