// Package realtime fans order lifecycle events out to operator consoles and
// customer trackers. Delivery is best-effort and at-most-once per live
// connection; the channel is a freshness hint, not a durable log.
package realtime

import (
	"encoding/json"

	"restaurante/internal/logger"
	"restaurante/internal/models"
)

// Event names carried on the wire.
const (
	EventNewOrder           = "new-order"
	EventOrderUpdated       = "order-updated"
	EventOrderStatusUpdated = "order-status-updated"
	EventPaymentConfirmed   = "payment-confirmed"
	EventPaymentRejected    = "payment-rejected"
)

// AdminRoom is joined by every operator console.
const AdminRoom = "admin"

// OrderRoom returns the customer room of a single order.
func OrderRoom(orderID string) string {
	return "order:" + orderID
}

// Event is an order lifecycle event; it is also the server-to-client frame.
type Event struct {
	Name  string       `json:"event"`
	Order models.Order `json:"data"`
}

// Envelope addresses an event to a room when it crosses a backplane.
type Envelope struct {
	Room  string `json:"room"`
	Event Event  `json:"event"`
}

// decodeEnvelope parses a backplane payload. Malformed payloads are logged
// and reported as not ok so the caller can drop them.
func decodeEnvelope(body []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		logger.Warn("invalid envelope on backplane, dropped", "err", err)
		return Envelope{}, false
	}
	if env.Room == "" || env.Event.Name == "" {
		logger.Warn("incomplete envelope on backplane, dropped", "room", env.Room, "event", env.Event.Name)
		return Envelope{}, false
	}
	return env, true
}
