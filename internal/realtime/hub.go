package realtime

import (
	"sync"

	"restaurante/internal/logger"
)

// DefaultMailboxSize bounds the pending events of one subscriber.
const DefaultMailboxSize = 64

// Handler consumes events delivered to a subscription.
type Handler func(Event)

// Hub is the in-process room registry. Each subscriber drains its own
// mailbox on its own goroutine, so per-subscriber order is kept and a slow
// consumer never blocks a publisher.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[uint64]*Subscription
	nextID      uint64
	mailboxSize int
}

// NewHub creates a hub; mailboxSize <= 0 selects DefaultMailboxSize.
func NewHub(mailboxSize int) *Hub {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	return &Hub{
		rooms:       make(map[string]map[uint64]*Subscription),
		mailboxSize: mailboxSize,
	}
}

// Subscription is a live registration of a handler on a room.
type Subscription struct {
	hub     *Hub
	room    string
	id      uint64
	mailbox chan Event
	done    chan struct{}
	once    sync.Once
}

// Room returns the subscribed room.
func (s *Subscription) Room() string {
	return s.room
}

// Unsubscribe stops delivery. Pending events are discarded.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

// Subscribe registers fn on room.
func (h *Hub) Subscribe(room string, fn Handler) *Subscription {
	h.mu.Lock()
	h.nextID++
	sub := &Subscription{
		hub:     h,
		room:    room,
		id:      h.nextID,
		mailbox: make(chan Event, h.mailboxSize),
		done:    make(chan struct{}),
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[uint64]*Subscription)
	}
	h.rooms[room][sub.id] = sub
	h.mu.Unlock()

	go sub.drain(fn)
	return sub
}

func (s *Subscription) drain(fn Handler) {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.mailbox:
			s.handle(fn, ev)
		}
	}
}

func (s *Subscription) handle(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("realtime handler panicked", "room", s.room, "event", ev.Name, "panic", r)
		}
	}()
	fn(ev)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.rooms[s.room]
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(h.rooms, s.room)
	}
}

// Deliver hands ev to every subscriber of room and returns how many
// accepted it. Subscribers with a full mailbox miss the event.
func (h *Hub) Deliver(room string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.rooms[room] {
		select {
		case <-sub.done:
		case sub.mailbox <- ev:
			delivered++
		default:
			logger.Warn("realtime mailbox full, event dropped", "room", room, "event", ev.Name, "order_id", ev.Order.ID)
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions on room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
