package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"restaurante/internal/handlers"
	"restaurante/internal/middleware"
	"restaurante/internal/models"
	"restaurante/internal/orderflow"
	"restaurante/internal/realtime"
	"restaurante/internal/repositories"
	"restaurante/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app         *fiber.App
	hub         *realtime.Hub
	authService *services.AuthService
}

// setupApp builds the API against a private in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.Operator{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	hub := realtime.NewHub(realtime.DefaultMailboxSize)
	channel := realtime.NewChannel(hub, realtime.NewLocalBackplane(hub))

	orderService := services.NewOrderService(repositories.NewGORMOrderRepository(db), realtime.NewPublisher(channel))
	authService := services.NewAuthService(repositories.NewGORMOperatorRepository(db), "test_jwt_secret")

	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	orderHandler.RegisterRoutes(apiV1)
	admin := apiV1.Group("/admin", middleware.AuthRequired(authService))
	orderHandler.RegisterAdminRoutes(admin)
	authHandler.RegisterAdminRoutes(admin)

	return &testEnv{app: app, hub: hub, authService: authService}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// operatorToken seeds an operator and logs in.
func (e *testEnv) operatorToken(t *testing.T) string {
	t.Helper()
	created, err := e.authService.SeedOperator(context.Background(), models.Operator{
		Username: "caixa",
		Email:    "caixa@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.True(t, created)

	resp, data := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "caixa",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(data, &loginResp))
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func (e *testEnv) createOrder(t *testing.T, dt models.DeliveryType) models.Order {
	t.Helper()
	body := map[string]interface{}{
		"customer_name":  "Maria Souza",
		"customer_phone": "11999990000",
		"delivery_type":  dt,
		"payment_method": "pix",
		"total_amount":   57.9,
		"items_summary":  "2x Pizza Margherita",
	}
	if dt == models.DeliveryTypeDelivery {
		body["customer_address"] = "Rua das Flores, 10"
	}
	resp, data := e.do(t, http.MethodPost, "/api/v1/orders", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var order models.Order
	require.NoError(t, json.Unmarshal(data, &order))
	return order
}

func decodeOrder(t *testing.T, data []byte) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, json.Unmarshal(data, &order))
	return order
}

type eventLog struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (l *eventLog) add(ev realtime.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Name)
	}
	return out
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)
	token := env.operatorToken(t)

	claims, err := env.authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "caixa", claims["username"])
	assert.Contains(t, claims, "operator_id")

	// Registration is not public
	resp, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "intruso",
		"email":    "intruso@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/operators", "", map[string]string{
		"username": "intruso",
		"email":    "intruso@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// An operator adds a colleague
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/operators", token, map[string]string{
		"username": "cozinha",
		"email":    "cozinha@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "cozinha",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Duplicate username
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/operators", token, map[string]string{
		"username": "caixa",
		"email":    "other@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Wrong password
	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "caixa",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Validation
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/operators", token, map[string]string{
		"username": "x",
		"email":    "not-an-email",
		"password": "1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := setupApp(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/admin/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/orders", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Token abc")
	r, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)
}

func TestOrderLifecycle_Pickup(t *testing.T) {
	env := setupApp(t)
	token := env.operatorToken(t)

	admin := &eventLog{}
	env.hub.Subscribe(realtime.AdminRoom, admin.add)

	order := env.createOrder(t, models.DeliveryTypePickup)
	assert.Equal(t, models.StatusNovo, order.OrderStatus)
	assert.Equal(t, models.PaymentPendente, order.PaymentStatus)
	assert.Equal(t, "57.9", order.TotalAmount.String())

	customer := &eventLog{}
	env.hub.Subscribe(realtime.OrderRoom(order.ID), customer.add)

	// Preparation is gated on payment.
	resp, _ := env.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/advance", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, data := env.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/confirm-payment", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.PaymentConfirmado, decodeOrder(t, data).PaymentStatus)

	for _, want := range []models.OrderStatus{
		models.StatusPreparando,
		models.StatusProntoRetirada,
		models.StatusRetirado,
		models.StatusFinalizado,
	} {
		resp, data := env.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/advance", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		assert.Equal(t, want, decodeOrder(t, data).OrderStatus)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/advance", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = env.do(t, http.MethodGet, "/api/v1/orders/"+order.ID+"/tracking", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view orderflow.TrackingView
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, 4, view.Current)
	assert.False(t, view.Cancelled)
	assert.Equal(t, "ready_for_pickup", view.Steps[3].Key)

	assert.Eventually(t, func() bool { return len(admin.names()) == 6 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, realtime.EventNewOrder, admin.names()[0])
	assert.Eventually(t, func() bool { return len(customer.names()) == 5 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, realtime.EventPaymentConfirmed, customer.names()[0])
	assert.Equal(t, realtime.EventOrderStatusUpdated, customer.names()[4])
}

func TestCreateOrderValidation(t *testing.T) {
	env := setupApp(t)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/orders", "", map[string]interface{}{
		"customer_name":  "Joao",
		"customer_phone": "11988887777",
		"delivery_type":  "delivery",
		"payment_method": "dinheiro",
		"total_amount":   10,
		"items_summary":  "1x Esfiha",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "delivery requires an address")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/orders", "", map[string]interface{}{
		"customer_name":  "Joao",
		"customer_phone": "11988887777",
		"delivery_type":  "drone",
		"payment_method": "pix",
		"total_amount":   10,
		"items_summary":  "1x Esfiha",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/orders", "", map[string]interface{}{
		"customer_name":  "Joao",
		"customer_phone": "11988887777",
		"delivery_type":  "pickup",
		"payment_method": "pix",
		"total_amount":   -1,
		"items_summary":  "1x Esfiha",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := setupApp(t)
	token := env.operatorToken(t)
	order := env.createOrder(t, models.DeliveryTypeDelivery)

	resp, _ := env.do(t, http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", token, map[string]string{
		"status": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", token, map[string]string{
		"status": "pronto",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "skipping a status is refused")

	resp, data := env.do(t, http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", token, map[string]string{
		"status":      "cancelado",
		"admin_notes": "cliente desistiu",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	cancelled := decodeOrder(t, data)
	assert.Equal(t, models.StatusCancelado, cancelled.OrderStatus)
	require.NotNil(t, cancelled.AdminNotes)
	assert.Equal(t, "cliente desistiu", *cancelled.AdminNotes)

	resp, _ = env.do(t, http.MethodPatch, "/api/v1/admin/orders/"+order.ID+"/status", token, map[string]string{
		"status": "cancelado",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "terminal states are absorbing")

	resp, _ = env.do(t, http.MethodPatch, "/api/v1/admin/orders/does-not-exist/status", token, map[string]string{
		"status": "cancelado",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRejectPaymentCancelsOrder(t *testing.T) {
	env := setupApp(t)
	token := env.operatorToken(t)
	order := env.createOrder(t, models.DeliveryTypeDelivery)

	resp, data := env.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/reject-payment", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejected := decodeOrder(t, data)
	assert.Equal(t, models.PaymentRejeitado, rejected.PaymentStatus)
	assert.Equal(t, models.StatusCancelado, rejected.OrderStatus)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/confirm-payment", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = env.do(t, http.MethodGet, "/api/v1/orders/"+order.ID+"/tracking", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view orderflow.TrackingView
	require.NoError(t, json.Unmarshal(data, &view))
	assert.True(t, view.Cancelled)
	assert.Equal(t, orderflow.StepCancelled, view.Current)
}

func TestListOrders(t *testing.T) {
	env := setupApp(t)
	token := env.operatorToken(t)

	paid := env.createOrder(t, models.DeliveryTypeDelivery)
	pending := env.createOrder(t, models.DeliveryTypePickup)
	done := env.createOrder(t, models.DeliveryTypePickup)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/admin/orders/"+paid.ID+"/confirm-payment", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/orders/"+done.ID+"/reject-payment", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.do(t, http.MethodGet, "/api/v1/admin/orders", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(data, &orders))
	require.Len(t, orders, 3)
	assert.Equal(t, pending.ID, orders[0].ID, "unpaid new orders come first")
	assert.Equal(t, paid.ID, orders[1].ID)
	assert.Equal(t, done.ID, orders[2].ID, "finished orders sink to the bottom")

	resp, data = env.do(t, http.MethodGet, "/api/v1/admin/orders?active=true&delivery_type=pickup", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	orders = nil
	require.NoError(t, json.Unmarshal(data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, pending.ID, orders[0].ID)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/orders?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrder(t *testing.T) {
	env := setupApp(t)
	order := env.createOrder(t, models.DeliveryTypeDelivery)

	resp, data := env.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeOrder(t, data)
	assert.Equal(t, order.ID, got.ID)
	require.NotNil(t, got.CustomerAddress)
	assert.Equal(t, "Rua das Flores, 10", *got.CustomerAddress)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/orders/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
