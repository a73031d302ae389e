package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurante/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// List retrieves orders in queue order.
func (r *GORMOrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		q = q.Where("order_status = ?", filter.Status)
	}
	if filter.DeliveryType != "" {
		q = q.Where("delivery_type = ?", filter.DeliveryType)
	}
	if filter.ActiveOnly {
		q = q.Where("order_status NOT IN ?", finishedStatuses)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var orders []models.Order
	if err := q.Order(queueOrderSQL).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// Create inserts a new order.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateStatus moves the order from one status to another.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, notes *string) (*models.Order, error) {
	updates := map[string]interface{}{
		"order_status": to,
		"updated_at":   time.Now(),
	}
	if notes != nil {
		updates["admin_notes"] = *notes
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND order_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update status of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.lostUpdate(ctx, id)
	}
	return r.GetByID(ctx, id)
}

// UpdatePayment changes the payment status, and the order status when
// status is not empty, of a non-terminal order.
func (r *GORMOrderRepository) UpdatePayment(ctx context.Context, id string, from, to models.PaymentStatus, status models.OrderStatus) (*models.Order, error) {
	updates := map[string]interface{}{
		"payment_status": to,
		"updated_at":     time.Now(),
	}
	if status != "" {
		updates["order_status"] = status
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND order_status NOT IN ?", id, from, terminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update payment of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.lostUpdate(ctx, id)
	}
	return r.GetByID(ctx, id)
}

// lostUpdate tells a missing order apart from a concurrent change.
func (r *GORMOrderRepository) lostUpdate(ctx context.Context, id string) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s changed concurrently (now %s/%s)",
		models.ErrInvalidTransition, id, current.OrderStatus, current.PaymentStatus)
}
