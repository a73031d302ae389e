package services

import (
	"context"
	"fmt"
	"strings"

	"restaurante/internal/logger"
	"restaurante/internal/models"
	"restaurante/internal/orderflow"
	"restaurante/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// EventPublisher broadcasts the outcome of order mutations.
type EventPublisher interface {
	OrderCreated(ctx context.Context, order models.Order) error
	OrderStatusChanged(ctx context.Context, order models.Order) error
	PaymentConfirmed(ctx context.Context, order models.Order) error
	PaymentRejected(ctx context.Context, order models.Order) error
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo repositories.OrderRepository
	publisher EventPublisher // may be nil
	validate  *validator.Validate
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository, publisher EventPublisher) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		publisher: publisher,
		validate:  validator.New(),
	}
}

// ListOrders returns the orders matching filter in operator queue order.
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	return s.orderRepo.List(ctx, filter)
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// TrackOrder returns the customer tracking view of an order.
func (s *OrderService) TrackOrder(ctx context.Context, id string) (orderflow.TrackingView, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return orderflow.TrackingView{}, err
	}
	return orderflow.Track(*order), nil
}

// CreateOrder validates a checkout submission, stores it as a new order
// awaiting payment and announces it to the operators.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidOrder, err)
	}
	if req.TotalAmount.IsNegative() {
		return nil, fmt.Errorf("%w: total_amount must not be negative", models.ErrInvalidOrder)
	}
	if req.DeliveryType == models.DeliveryTypeDelivery &&
		(req.CustomerAddress == nil || strings.TrimSpace(*req.CustomerAddress) == "") {
		return nil, fmt.Errorf("%w: customer_address is required for delivery", models.ErrInvalidOrder)
	}

	order := &models.Order{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		DeliveryType:    req.DeliveryType,
		OrderStatus:     models.StatusNovo,
		PaymentStatus:   models.PaymentPendente,
		PaymentMethod:   req.PaymentMethod,
		TotalAmount:     req.TotalAmount.Round(2),
		ItemsSummary:    req.ItemsSummary,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}
	logger.Info("order created", "order_id", order.ID, "delivery_type", order.DeliveryType, "total", order.TotalAmount.String())

	s.publish("new-order", order, func(p EventPublisher) error {
		return p.OrderCreated(ctx, *order)
	})
	return order, nil
}

// UpdateOrderStatus moves an order to target. Only the forward successor or
// a cancellation is accepted; notes are stored as admin notes.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, target models.OrderStatus, notes *string) (*models.Order, error) {
	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := orderflow.ValidateTransition(*current, target); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, id, current.OrderStatus, target, notes)
	if err != nil {
		return nil, err
	}
	logger.Info("order status updated", "order_id", id, "from", current.OrderStatus, "to", updated.OrderStatus)

	s.publish("order-status-updated", updated, func(p EventPublisher) error {
		return p.OrderStatusChanged(ctx, *updated)
	})
	return updated, nil
}

// AdvanceOrder moves an order to its next status on the delivery path.
func (s *OrderService) AdvanceOrder(ctx context.Context, id string) (*models.Order, error) {
	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := orderflow.NextStatus(current.OrderStatus, current.DeliveryType)
	if err != nil {
		return nil, err
	}
	return s.UpdateOrderStatus(ctx, id, next, nil)
}

// ConfirmPayment marks a pending payment as confirmed.
func (s *OrderService) ConfirmPayment(ctx context.Context, id string) (*models.Order, error) {
	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := orderflow.ValidatePaymentConfirm(*current); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.UpdatePayment(ctx, id, models.PaymentPendente, models.PaymentConfirmado, "")
	if err != nil {
		return nil, err
	}
	logger.Info("payment confirmed", "order_id", id)

	s.publish("payment-confirmed", updated, func(p EventPublisher) error {
		return p.PaymentConfirmed(ctx, *updated)
	})
	return updated, nil
}

// RejectPayment marks a pending payment as rejected and cancels the order.
func (s *OrderService) RejectPayment(ctx context.Context, id string) (*models.Order, error) {
	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := orderflow.ValidatePaymentReject(*current); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.UpdatePayment(ctx, id, models.PaymentPendente, models.PaymentRejeitado, models.StatusCancelado)
	if err != nil {
		return nil, err
	}
	logger.Info("payment rejected", "order_id", id)

	s.publish("payment-rejected", updated, func(p EventPublisher) error {
		return p.PaymentRejected(ctx, *updated)
	})
	return updated, nil
}

// publish broadcasts a mutation. The store is authoritative, so a failed
// broadcast is logged and never fails the mutation itself.
func (s *OrderService) publish(event string, order *models.Order, send func(EventPublisher) error) {
	if s.publisher == nil {
		logger.Debug("no event publisher configured, skipping broadcast", "event", event, "order_id", order.ID)
		return
	}
	if err := send(s.publisher); err != nil {
		logger.Warn("failed to publish order event", "event", event, "order_id", order.ID, "err", err)
	}
}
