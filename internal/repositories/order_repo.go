package repositories

import (
	"context"
	"fmt"

	"restaurante/internal/models"
	"restaurante/internal/orderflow"
)

// OrderRepository defines the interface for order data access.
// Status and payment writes are compare-and-set: they only apply when the
// stored value still equals the expected one, so two operators acting on a
// stale view can never advance an order twice.
//
// List returns orders in operator queue order (see orderflow.Compare), so
// Limit and Offset page through the queue rather than through arrival order.
type OrderRepository interface {
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, notes *string) (*models.Order, error)
	UpdatePayment(ctx context.Context, id string, from, to models.PaymentStatus, status models.OrderStatus) (*models.Order, error)
}

var finishedStatuses = []models.OrderStatus{
	models.StatusEntregue,
	models.StatusRetirado,
	models.StatusFinalizado,
	models.StatusCancelado,
}

var terminalStatuses = []models.OrderStatus{
	models.StatusFinalizado,
	models.StatusCancelado,
}

// queueOrderSQL is the ORDER BY equivalent of orderflow.Compare.
var queueOrderSQL = fmt.Sprintf(`CASE
		WHEN order_status IN ('%s', '%s', '%s', '%s') THEN %d
		WHEN order_status = '%s' AND payment_status = '%s' THEN 0
		WHEN order_status = '%s' THEN 1
		WHEN order_status = '%s' THEN 2
		WHEN order_status = '%s' THEN 3
		WHEN order_status = '%s' THEN 4
		WHEN order_status = '%s' THEN 5
		ELSE 8
	END, created_at DESC, id`,
	models.StatusEntregue, models.StatusRetirado, models.StatusFinalizado, models.StatusCancelado, orderflow.PriorityFinished,
	models.StatusNovo, models.PaymentPendente,
	models.StatusNovo,
	models.StatusPreparando,
	models.StatusPronto,
	models.StatusSaiuEntrega,
	models.StatusProntoRetirada,
)
