package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// total_amount travels as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// DeliveryType selects which status path an order follows.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

// Valid reports whether t is a known delivery type.
func (t DeliveryType) Valid() bool {
	return t == DeliveryTypeDelivery || t == DeliveryTypePickup
}

// OrderStatus is the fulfillment stage of an order.
type OrderStatus string

const (
	StatusNovo           OrderStatus = "novo"
	StatusPreparando     OrderStatus = "preparando"
	StatusPronto         OrderStatus = "pronto"
	StatusSaiuEntrega    OrderStatus = "saiu_entrega"
	StatusEntregue       OrderStatus = "entregue"
	StatusProntoRetirada OrderStatus = "pronto_retirada"
	StatusRetirado       OrderStatus = "retirado"
	StatusFinalizado     OrderStatus = "finalizado"
	StatusCancelado      OrderStatus = "cancelado"
)

var orderStatuses = map[OrderStatus]struct{}{
	StatusNovo:           {},
	StatusPreparando:     {},
	StatusPronto:         {},
	StatusSaiuEntrega:    {},
	StatusEntregue:       {},
	StatusProntoRetirada: {},
	StatusRetirado:       {},
	StatusFinalizado:     {},
	StatusCancelado:      {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

func (s OrderStatus) String() string {
	return string(s)
}

// PaymentStatus tracks the payment side-channel of an order.
type PaymentStatus string

const (
	PaymentPendente   PaymentStatus = "pendente"
	PaymentConfirmado PaymentStatus = "confirmado"
	PaymentRejeitado  PaymentStatus = "rejeitado"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPendente || s == PaymentConfirmado || s == PaymentRejeitado
}

// PaymentMethod is informational only.
type PaymentMethod string

const (
	PaymentMethodPix      PaymentMethod = "pix"
	PaymentMethodCartao   PaymentMethod = "cartao"
	PaymentMethodDinheiro PaymentMethod = "dinheiro"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodPix || m == PaymentMethodCartao || m == PaymentMethodDinheiro
}

// Order represents a customer order as stored and broadcast.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CustomerName    string          `json:"customer_name" gorm:"type:varchar(120);not null"`
	CustomerPhone   string          `json:"customer_phone" gorm:"type:varchar(30);not null"`
	CustomerAddress *string         `json:"customer_address"`
	DeliveryType    DeliveryType    `json:"delivery_type" gorm:"type:varchar(16);not null"`
	OrderStatus     OrderStatus     `json:"order_status" gorm:"type:varchar(20);index;not null"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null"`
	PaymentMethod   PaymentMethod   `json:"payment_method" gorm:"type:varchar(16);not null"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:numeric(10,2);not null"`
	ItemsSummary    string          `json:"items_summary"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time       `json:"updated_at"`
	AdminNotes      *string         `json:"admin_notes"`
}

// ShortID returns the leading segment of the order id, used in alerts.
func (o Order) ShortID() string {
	if len(o.ID) > 8 {
		return o.ID[:8]
	}
	return o.ID
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	CustomerName    string          `json:"customer_name" validate:"required,min=2,max=120"`
	CustomerPhone   string          `json:"customer_phone" validate:"required,min=8,max=30"`
	CustomerAddress *string         `json:"customer_address" validate:"omitempty,min=5,max=255"`
	DeliveryType    DeliveryType    `json:"delivery_type" validate:"required,oneof=delivery pickup"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"required,oneof=pix cartao dinheiro"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ItemsSummary    string          `json:"items_summary" validate:"required,max=2000"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	Status       OrderStatus
	DeliveryType DeliveryType
	ActiveOnly   bool
	Limit        int
	Offset       int
}
