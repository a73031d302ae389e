package notify

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 5 * time.Second

// ToastVariant controls how loudly a toast is rendered.
type ToastVariant string

const (
	ToastInfo      ToastVariant = "info"
	ToastProminent ToastVariant = "prominent"
	ToastError     ToastVariant = "error"
)

// Toast is an in-app notification.
type Toast struct {
	ID        uint64
	Variant   ToastVariant
	Title     string
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ToastQueue holds the visible toasts. Each toast expires on its own timer
// and can be dismissed early.
type ToastQueue struct {
	mu       sync.Mutex
	ttl      time.Duration
	nextID   uint64
	toasts   map[uint64]Toast
	timers   map[uint64]*time.Timer
	onChange []func([]Toast)
}

// NewToastQueue creates a queue; ttl <= 0 selects DefaultToastTTL.
func NewToastQueue(ttl time.Duration) *ToastQueue {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &ToastQueue{
		ttl:    ttl,
		toasts: make(map[uint64]Toast),
		timers: make(map[uint64]*time.Timer),
	}
}

// OnChange registers fn to receive the visible toasts after every change.
func (q *ToastQueue) OnChange(fn func([]Toast)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = append(q.onChange, fn)
}

// Push shows a new toast.
func (q *ToastQueue) Push(variant ToastVariant, title, message string) Toast {
	q.mu.Lock()
	q.nextID++
	now := time.Now()
	t := Toast{
		ID:        q.nextID,
		Variant:   variant,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(q.ttl),
	}
	q.toasts[t.ID] = t
	id := t.ID
	q.timers[id] = time.AfterFunc(q.ttl, func() { q.Dismiss(id) })
	q.mu.Unlock()

	q.changed()
	return t
}

// Dismiss removes a toast; it reports whether the toast was still visible.
func (q *ToastQueue) Dismiss(id uint64) bool {
	q.mu.Lock()
	_, ok := q.toasts[id]
	if ok {
		delete(q.toasts, id)
		if timer := q.timers[id]; timer != nil {
			timer.Stop()
		}
		delete(q.timers, id)
	}
	q.mu.Unlock()

	if ok {
		q.changed()
	}
	return ok
}

// Active returns the visible toasts, oldest first.
func (q *ToastQueue) Active() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.activeLocked()
}

func (q *ToastQueue) activeLocked() []Toast {
	out := make([]Toast, 0, len(q.toasts))
	for _, t := range q.toasts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (q *ToastQueue) changed() {
	q.mu.Lock()
	active := q.activeLocked()
	fns := slices.Clone(q.onChange)
	q.mu.Unlock()
	for _, fn := range fns {
		fn(active)
	}
}

// Close stops every pending expiry timer.
func (q *ToastQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
}
