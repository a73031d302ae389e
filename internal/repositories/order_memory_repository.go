package repositories

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"restaurante/internal/models"
	"restaurante/internal/orderflow"

	"github.com/google/uuid"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
type MemoryOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// List returns the orders matching filter in queue order.
func (r *MemoryOrderRepository) List(_ context.Context, filter models.OrderFilter) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Status != "" && order.OrderStatus != filter.Status {
			continue
		}
		if filter.DeliveryType != "" && order.DeliveryType != filter.DeliveryType {
			continue
		}
		if filter.ActiveOnly && slices.Contains(finishedStatuses, order.OrderStatus) {
			continue
		}
		orderList = append(orderList, order)
	}
	orderflow.SortQueue(orderList)

	if filter.Offset > 0 {
		if filter.Offset >= len(orderList) {
			return []models.Order{}, nil
		}
		orderList = orderList[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(orderList) {
		orderList = orderList[:filter.Limit]
	}
	return orderList, nil
}

// GetByID returns an order by its ID.
func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return &order, nil
}

// Create adds a new order.
func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.ID] = *order
	return nil
}

// UpdateStatus moves the order from one status to another.
func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, notes *string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if order.OrderStatus != from {
		return nil, fmt.Errorf("%w: order %s changed concurrently (now %s)", models.ErrInvalidTransition, id, order.OrderStatus)
	}
	order.OrderStatus = to
	if notes != nil {
		n := *notes
		order.AdminNotes = &n
	}
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return &order, nil
}

// UpdatePayment changes the payment status of a non-terminal order.
func (r *MemoryOrderRepository) UpdatePayment(_ context.Context, id string, from, to models.PaymentStatus, status models.OrderStatus) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if order.PaymentStatus != from || slices.Contains(terminalStatuses, order.OrderStatus) {
		return nil, fmt.Errorf("%w: order %s changed concurrently (now %s/%s)",
			models.ErrInvalidTransition, id, order.OrderStatus, order.PaymentStatus)
	}
	order.PaymentStatus = to
	if status != "" {
		order.OrderStatus = status
	}
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return &order, nil
}
