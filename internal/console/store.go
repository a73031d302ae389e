// Package console holds the client-side state of the operator console and
// the customer tracker, kept in sync by REST calls and realtime events.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"restaurante/internal/models"

	"github.com/gofiber/fiber/v2"
)

// OrderStore is the authoritative order API as seen by the consoles.
type OrderStore interface {
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus, notes *string) (*models.Order, error)
	ConfirmPayment(ctx context.Context, id string) (*models.Order, error)
	RejectPayment(ctx context.Context, id string) (*models.Order, error)
}

const defaultRequestTimeout = 10 * time.Second

// APIStore talks to the order service over HTTP.
type APIStore struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewAPIStore creates a store for baseURL (e.g. http://host/api/v1). token
// is the operator JWT; it may be empty for the public endpoints.
func NewAPIStore(baseURL, token string) *APIStore {
	return &APIStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: defaultRequestTimeout,
	}
}

// ListOrders fetches the operator queue.
func (s *APIStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.DeliveryType != "" {
		q.Set("delivery_type", string(filter.DeliveryType))
	}
	if filter.ActiveOnly {
		q.Set("active", "true")
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	path := "/admin/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var orders []models.Order
	if err := s.do(ctx, fiber.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches a single order through the public endpoint.
func (s *APIStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.do(ctx, fiber.MethodGet, "/orders/"+url.PathEscape(id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

type statusUpdate struct {
	Status     models.OrderStatus `json:"status"`
	AdminNotes *string            `json:"admin_notes,omitempty"`
}

// UpdateStatus moves an order to status.
func (s *APIStore) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, notes *string) (*models.Order, error) {
	var order models.Order
	body := statusUpdate{Status: status, AdminNotes: notes}
	if err := s.do(ctx, fiber.MethodPatch, "/admin/orders/"+url.PathEscape(id)+"/status", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ConfirmPayment confirms a pending payment.
func (s *APIStore) ConfirmPayment(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.do(ctx, fiber.MethodPost, "/admin/orders/"+url.PathEscape(id)+"/confirm-payment", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// RejectPayment rejects a pending payment.
func (s *APIStore) RejectPayment(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.do(ctx, fiber.MethodPost, "/admin/orders/"+url.PathEscape(id)+"/reject-payment", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (s *APIStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConnectivity, err)
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(s.baseURL + path)
	if s.token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+s.token)
	}
	if body != nil {
		a.JSON(body)
	}
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	a.Timeout(timeout)

	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return fmt.Errorf("%w: %s %s: %v", models.ErrConnectivity, method, path, err)
	}

	// Bytes releases the agent.
	code, respBody, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s %s: %v", models.ErrConnectivity, method, path, errors.Join(errs...))
	}
	if code >= fiber.StatusBadRequest {
		return statusError(code, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// statusError maps an HTTP error response onto the domain errors.
func statusError(code int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.Error
	if detail == "" {
		detail = apiErr.Message
	}
	if detail == "" {
		detail = strconv.Itoa(code)
	}

	switch code {
	case fiber.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, detail)
	case fiber.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", models.ErrPaymentPending, detail)
	case fiber.StatusConflict:
		return fmt.Errorf("%w: %s", models.ErrInvalidTransition, detail)
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return fmt.Errorf("%w: %s", models.ErrInvalidCredentials, detail)
	case fiber.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrInvalidOrder, detail)
	default:
		return fmt.Errorf("order service returned %d: %s", code, detail)
	}
}
