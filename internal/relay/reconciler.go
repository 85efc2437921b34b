// internal/relay/reconciler.go
package relay

import (
	"encoding/json"
	"fmt"
	"sync"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/progression"
	"commande-track-api-server/internal/socket"

	"go.uber.org/zap"
)

// Reconciler holds the orders known to one tab and merges incoming events
// into them. Events reach it from two sources — the socket stream and the
// cross-tab bus — and are handled identically regardless of origin. Incoming
// progression values are clamped before being applied, whatever the source.
type Reconciler struct {
	mu      sync.Mutex
	orders  map[string]models.Order
	onApply func(models.Order)
	logger  *zap.Logger
}

// NewReconciler creates an empty reconciler. onApply, when non-nil, is called
// after every applied mutation with the new record — the downstream
// render/toast hook.
func NewReconciler(logger *zap.Logger, onApply func(models.Order)) *Reconciler {
	return &Reconciler{
		orders:  make(map[string]models.Order),
		onApply: onApply,
		logger:  logger,
	}
}

// Seed loads the state pulled from the read path. New subscribers never
// replay missed events; they start from a fresh pull.
func (r *Reconciler) Seed(orders []models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range orders {
		o.Progression = progression.Clamp(o.Progression)
		r.orders[o.ID.Hex()] = o
	}
}

// Order returns a copy of one locally held record.
func (r *Reconciler) Order(id string) (models.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	return o, ok
}

// Orders returns copies of all locally held records.
func (r *Reconciler) Orders() []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out
}

// Apply dispatches one envelope to its per-type handler. The event vocabulary
// is closed: an unknown type is an error, not a silent drop.
func (r *Reconciler) Apply(env socket.Envelope) error {
	switch env.Type {
	case socket.EventCommandCreated:
		var p socket.CommandCreated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r.replace(p.Order)
	case socket.EventCommandFullyUpdated:
		var p socket.CommandFullyUpdated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r.replace(p.Order)
	case socket.EventCommandUpdated:
		var p socket.CommandUpdated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r.merge(p)
	case socket.EventCommandDeleted:
		var p socket.CommandDeleted
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		r.mu.Lock()
		delete(r.orders, p.OrderID)
		r.mu.Unlock()
		return nil
	case socket.EventStatusChanged:
		var p socket.StatusChanged
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r.applyStatus(p)
	case socket.EventStepUpdated:
		var p socket.StepUpdated
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return r.applyStep(p)
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
}

// replace swaps in the whole record (create and full-update events).
func (r *Reconciler) replace(order models.Order) error {
	order.Progression = progression.Clamp(order.Progression)
	r.mu.Lock()
	r.orders[order.ID.Hex()] = order
	r.mu.Unlock()
	r.notify(order)
	return nil
}

// merge applies a partial-field patch by overlaying the patch's JSON onto the
// existing record, so unspecified fields keep their current values.
func (r *Reconciler) merge(p socket.CommandUpdated) error {
	r.mu.Lock()
	current, ok := r.orders[p.OrderID]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("patch for unknown order, dropped", zap.String("order", p.OrderID))
		return nil
	}

	overlay, err := json.Marshal(p.Fields)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	if err := json.Unmarshal(overlay, &current); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}
	current.Progression = progression.Clamp(current.Progression)

	r.mu.Lock()
	r.orders[p.OrderID] = current
	r.mu.Unlock()
	r.notify(current)
	return nil
}

// applyStatus sets status and progression. An event carrying a revision older
// than the local record is stale (out-of-order delivery) and is dropped.
func (r *Reconciler) applyStatus(p socket.StatusChanged) error {
	r.mu.Lock()
	current, ok := r.orders[p.OrderID]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("status for unknown order, dropped", zap.String("order", p.OrderID))
		return nil
	}
	if p.Revision != 0 && p.Revision < current.Revision {
		r.mu.Unlock()
		r.logger.Debug("stale status event dropped",
			zap.String("order", p.OrderID),
			zap.Int64("revision", p.Revision))
		return nil
	}
	current.Status = p.Status
	current.Progression = progression.Clamp(p.Progression)
	if p.Revision != 0 {
		current.Revision = p.Revision
	}
	r.orders[p.OrderID] = current
	r.mu.Unlock()
	r.notify(current)
	return nil
}

// applyStep merges one step and recomputes progression locally with the same
// rule the server uses, so the UI never shows a stale percentage while the
// authoritative value is still in flight.
func (r *Reconciler) applyStep(p socket.StepUpdated) error {
	r.mu.Lock()
	current, ok := r.orders[p.OrderID]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("step for unknown order, dropped", zap.String("order", p.OrderID))
		return nil
	}
	found := false
	for i := range current.Steps {
		if current.Steps[i].ID == p.Step.ID {
			current.Steps[i] = p.Step
			found = true
			break
		}
	}
	if !found {
		current.Steps = append(current.Steps, p.Step)
	}
	current.Progression = progression.Compute(current.Steps, current.Status)
	r.orders[p.OrderID] = current
	r.mu.Unlock()
	r.notify(current)
	return nil
}

// ApplyOptimistic sets a status locally ahead of the server round trip and
// returns a revert closure for the failure path. The revert restores the
// record captured here, not whatever is current when it runs.
func (r *Reconciler) ApplyOptimistic(orderID string, status models.OrderStatus) (revert func(), ok bool) {
	r.mu.Lock()
	current, exists := r.orders[orderID]
	if !exists {
		r.mu.Unlock()
		return nil, false
	}
	snapshot := current
	current.Status = status
	current.Progression = progression.Compute(current.Steps, status)
	r.orders[orderID] = current
	r.mu.Unlock()
	r.notify(current)

	return func() {
		r.mu.Lock()
		r.orders[orderID] = snapshot
		r.mu.Unlock()
		r.notify(snapshot)
	}, true
}

func (r *Reconciler) notify(order models.Order) {
	if r.onApply != nil {
		r.onApply(order)
	}
}
