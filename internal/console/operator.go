package console

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"restaurante/internal/logger"
	"restaurante/internal/models"
	"restaurante/internal/notify"
	"restaurante/internal/orderflow"
	"restaurante/internal/realtime"
)

// Operator is the state behind the operator console: the order list, its
// priority queue and the optimistic mutations issued by the operator.
type Operator struct {
	store      OrderStore
	dispatcher *notify.Dispatcher // may be nil

	mu       sync.Mutex
	orders   []models.Order // newest first
	versions map[string]uint64
	loading  bool
	loaded   bool
	onChange []func()
}

// NewOperator creates the console state on store.
func NewOperator(store OrderStore, dispatcher *notify.Dispatcher) *Operator {
	return &Operator{
		store:      store,
		dispatcher: dispatcher,
		versions:   make(map[string]uint64),
	}
}

// OnChange registers fn to be called after the order list changes.
func (op *Operator) OnChange(fn func()) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.onChange = append(op.onChange, fn)
}

func (op *Operator) isLoaded() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.loaded
}

// Loading reports whether the initial fetch is in flight.
func (op *Operator) Loading() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.loading
}

// Load replaces the local list with a snapshot from the store. Only the
// first load raises the loading flag; later ones are silent refreshes.
func (op *Operator) Load(ctx context.Context) error {
	op.mu.Lock()
	initial := !op.loaded
	if initial {
		op.loading = true
	}
	before := maps.Clone(op.versions)
	op.mu.Unlock()

	orders, err := op.store.ListOrders(ctx, models.OrderFilter{})

	op.mu.Lock()
	if initial {
		op.loading = false
	}
	if err == nil {
		op.orders = op.mergeLocked(orders, before)
		op.loaded = true
	}
	op.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	op.changed()
	return nil
}

// mergeLocked builds the list from a snapshot taken while the versions were
// before. Orders changed locally since then keep their local copy.
func (op *Operator) mergeLocked(snapshot []models.Order, before map[string]uint64) []models.Order {
	merged := make([]models.Order, 0, len(snapshot))
	seen := make(map[string]bool, len(snapshot))
	for _, o := range snapshot {
		seen[o.ID] = true
		if op.versions[o.ID] != before[o.ID] {
			if i := op.indexLocked(o.ID); i >= 0 {
				o = op.orders[i]
			}
		} else {
			op.versions[o.ID]++
		}
		merged = append(merged, o)
	}
	var newer []models.Order
	for _, o := range op.orders {
		if !seen[o.ID] && op.versions[o.ID] != before[o.ID] {
			newer = append(newer, o)
		}
	}
	return append(newer, merged...)
}

// HandleNewOrder adds a broadcast order to the top of the list and alerts
// the operator. A known id is treated as an update without a new alert.
func (op *Operator) HandleNewOrder(ctx context.Context, o models.Order) {
	op.mu.Lock()
	known := op.replaceLocked(o)
	if !known {
		op.orders = append([]models.Order{o}, op.orders...)
		op.versions[o.ID]++
	}
	op.mu.Unlock()

	op.changed()
	if !known && op.dispatcher != nil {
		r := op.dispatcher.NotifyNewOrder(ctx, o)
		logger.Debug("new order alert", "order_id", o.ID, "sound", r.Sound, "os_notified", r.OSNotified)
	}
}

// HandleOrderUpdated overwrites the local copy with a broadcast order.
func (op *Operator) HandleOrderUpdated(o models.Order) {
	op.mu.Lock()
	if !op.replaceLocked(o) {
		op.orders = append([]models.Order{o}, op.orders...)
		op.versions[o.ID]++
	}
	op.mu.Unlock()
	op.changed()
}

func (op *Operator) replaceLocked(o models.Order) bool {
	for i := range op.orders {
		if op.orders[i].ID == o.ID {
			op.orders[i] = o
			op.versions[o.ID]++
			return true
		}
	}
	return false
}

// Order returns the local copy of an order.
func (op *Operator) Order(id string) (models.Order, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	for _, o := range op.orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

// Orders returns the list in arrival order, newest first.
func (op *Operator) Orders() []models.Order {
	op.mu.Lock()
	defer op.mu.Unlock()
	return append([]models.Order(nil), op.orders...)
}

// Queue returns every order sorted by priority.
func (op *Operator) Queue() []models.Order {
	orders := op.Orders()
	orderflow.SortQueue(orders)
	return orders
}

// Active returns the unfinished orders in queue order.
func (op *Operator) Active() []models.Order {
	return op.split(false)
}

// Archived returns the finished orders in queue order.
func (op *Operator) Archived() []models.Order {
	return op.split(true)
}

func (op *Operator) split(finished bool) []models.Order {
	var out []models.Order
	for _, o := range op.Queue() {
		if orderflow.IsFinished(o) == finished {
			out = append(out, o)
		}
	}
	return out
}

// Advance moves an order to its next status.
func (op *Operator) Advance(ctx context.Context, id string) (*models.Order, error) {
	return op.mutate(ctx, id, "avançar pedido", func(o models.Order) (models.Order, error) {
		next, err := orderflow.NextStatus(o.OrderStatus, o.DeliveryType)
		if err != nil {
			return o, err
		}
		return orderflow.Apply(o, next)
	}, func(ctx context.Context, optimistic models.Order) (*models.Order, error) {
		return op.store.UpdateStatus(ctx, id, optimistic.OrderStatus, nil)
	})
}

// Cancel cancels an order, storing notes as admin notes.
func (op *Operator) Cancel(ctx context.Context, id string, notes *string) (*models.Order, error) {
	return op.mutate(ctx, id, "cancelar pedido", func(o models.Order) (models.Order, error) {
		next, err := orderflow.Apply(o, models.StatusCancelado)
		if err != nil {
			return o, err
		}
		if notes != nil {
			next.AdminNotes = notes
		}
		return next, nil
	}, func(ctx context.Context, _ models.Order) (*models.Order, error) {
		return op.store.UpdateStatus(ctx, id, models.StatusCancelado, notes)
	})
}

// ConfirmPayment confirms the pending payment of an order.
func (op *Operator) ConfirmPayment(ctx context.Context, id string) (*models.Order, error) {
	return op.mutate(ctx, id, "confirmar pagamento", orderflow.ConfirmPayment,
		func(ctx context.Context, _ models.Order) (*models.Order, error) {
			return op.store.ConfirmPayment(ctx, id)
		})
}

// RejectPayment rejects the pending payment of an order.
func (op *Operator) RejectPayment(ctx context.Context, id string) (*models.Order, error) {
	return op.mutate(ctx, id, "rejeitar pagamento", orderflow.RejectPayment,
		func(ctx context.Context, _ models.Order) (*models.Order, error) {
			return op.store.RejectPayment(ctx, id)
		})
}

// mutate applies an optimistic local change and sends a single request.
// Invalid changes are refused before any request. On failure the local
// copy is rolled back unless a broadcast has overwritten it meanwhile; the
// same guard keeps such a broadcast over the response on success.
func (op *Operator) mutate(
	ctx context.Context,
	id, action string,
	apply func(models.Order) (models.Order, error),
	send func(context.Context, models.Order) (*models.Order, error),
) (*models.Order, error) {
	op.mu.Lock()
	idx := op.indexLocked(id)
	if idx < 0 {
		op.mu.Unlock()
		return nil, op.fail(action, id, fmt.Errorf("%w: %s", models.ErrNotFound, id))
	}
	previous := op.orders[idx]
	optimistic, err := apply(previous)
	if err != nil {
		op.mu.Unlock()
		return nil, op.fail(action, id, err)
	}
	op.orders[idx] = optimistic
	op.versions[id]++
	version := op.versions[id]
	op.mu.Unlock()
	op.changed()

	saved, err := send(ctx, optimistic)
	if err != nil {
		op.mu.Lock()
		if i := op.indexLocked(id); i >= 0 && op.versions[id] == version {
			op.orders[i] = previous
			op.versions[id]++
		}
		op.mu.Unlock()
		op.changed()
		return nil, op.fail(action, id, err)
	}

	// A broadcast received while the request was in flight is newer than
	// the response and stays.
	op.mu.Lock()
	if op.versions[id] == version && !op.replaceLocked(*saved) {
		op.orders = append([]models.Order{*saved}, op.orders...)
		op.versions[saved.ID]++
	}
	op.mu.Unlock()
	op.changed()
	return saved, nil
}

func (op *Operator) indexLocked(id string) int {
	for i := range op.orders {
		if op.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (op *Operator) fail(action, id string, err error) error {
	logger.Warn("order action failed", "action", action, "order_id", id, "err", err)
	if op.dispatcher != nil {
		op.dispatcher.NotifyError("Não foi possível "+action, describeError(err))
	}
	return err
}

func describeError(err error) string {
	switch {
	case errors.Is(err, models.ErrPaymentPending):
		return "O pagamento ainda não foi confirmado."
	case errors.Is(err, models.ErrInvalidTransition):
		return "O pedido já mudou de status."
	case errors.Is(err, models.ErrNotFound):
		return "Pedido não encontrado."
	case errors.Is(err, models.ErrConnectivity):
		return "Sem conexão com o servidor."
	default:
		return err.Error()
	}
}

func (op *Operator) changed() {
	op.mu.Lock()
	fns := slices.Clone(op.onChange)
	op.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Attach wires the console to a realtime client: operator room events feed
// the list and every reconnect refetches the snapshot, since events missed
// while offline are not replayed.
func (op *Operator) Attach(ctx context.Context, client *realtime.Client, token string) error {
	client.On(realtime.EventNewOrder, func(o models.Order) { op.HandleNewOrder(ctx, o) })
	client.On(realtime.EventOrderUpdated, op.HandleOrderUpdated)

	client.OnConnectionChange(func(connected bool) {
		if !connected || !op.isLoaded() {
			return
		}
		go func() {
			if err := op.Load(ctx); err != nil {
				logger.Warn("failed to refresh orders after reconnect", "err", err)
			}
		}()
	})
	return client.JoinAdmin(token)
}
