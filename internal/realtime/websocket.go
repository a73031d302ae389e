package realtime

import (
	"strings"
	"time"

	"restaurante/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Client-to-server frame types.
const (
	FrameJoinAdmin  = "join-admin"
	FrameJoinClient = "join-client"
	FrameLeave      = "leave"
)

// Server control events, sent alongside order events.
const (
	EventJoined = "joined"
	EventError  = "error"
)

// Frame is a client-to-server message.
type Frame struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// ControlMessage acknowledges or refuses a frame.
type ControlMessage struct {
	Event   string `json:"event"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message,omitempty"`
}

// AdminAuthorizer validates the token presented with join-admin.
type AdminAuthorizer func(token string) error

// WSServer exposes the hub over websockets.
type WSServer struct {
	hub       *Hub
	authorize AdminAuthorizer
	queueSize int
}

// NewWSServer creates a websocket transport on hub. A nil authorize admits
// every join-admin frame.
func NewWSServer(hub *Hub, authorize AdminAuthorizer) *WSServer {
	return &WSServer{hub: hub, authorize: authorize, queueSize: DefaultMailboxSize}
}

// RegisterRoutes mounts GET /ws on router.
func (s *WSServer) RegisterRoutes(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(s.serve))
}

func (s *WSServer) serve(conn *websocket.Conn) {
	out := make(chan interface{}, s.queueSize)
	done := make(chan struct{})
	subs := make(map[string]*Subscription)

	defer func() {
		close(done)
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	go func() {
		for {
			select {
			case <-done:
				return
			case msg := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					logger.Debug("websocket write failed", "err", err)
					_ = conn.Close()
					return
				}
			}
		}
	}()

	send := func(msg interface{}) {
		select {
		case <-done:
		case out <- msg:
		default:
			logger.Warn("websocket send queue full, message dropped", "remote", conn.RemoteAddr().String())
		}
	}

	join := func(room string) {
		if _, ok := subs[room]; ok {
			send(ControlMessage{Event: EventJoined, Room: room})
			return
		}
		subs[room] = s.hub.Subscribe(room, func(ev Event) { send(ev) })
		send(ControlMessage{Event: EventJoined, Room: room})
	}

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			logger.Debug("websocket closed", "err", err)
			return
		}

		switch f.Type {
		case FrameJoinAdmin:
			if s.authorize != nil {
				if err := s.authorize(f.Token); err != nil {
					send(ControlMessage{Event: EventError, Room: AdminRoom, Message: "unauthorized"})
					continue
				}
			}
			join(AdminRoom)
		case FrameJoinClient:
			id := strings.TrimSpace(f.OrderID)
			if id == "" {
				send(ControlMessage{Event: EventError, Message: "order_id is required"})
				continue
			}
			join(OrderRoom(id))
		case FrameLeave:
			room := AdminRoom
			if f.OrderID != "" {
				room = OrderRoom(f.OrderID)
			}
			if sub, ok := subs[room]; ok {
				sub.Unsubscribe()
				delete(subs, room)
			}
		default:
			send(ControlMessage{Event: EventError, Message: "unknown frame type " + f.Type})
		}
	}
}
