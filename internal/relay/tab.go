// internal/relay/tab.go
package relay

import (
	"encoding/json"
	"fmt"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/socket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tab is one browser tab's view of the order list. It owns a reconciler, a
// debouncing coalescer in front of it, and a subscription to the cross-tab
// bus. Socket events and bus events flow through the same coalesce-then-apply
// path.
type Tab struct {
	ID          string
	rec         *Reconciler
	coal        *Coalescer
	bus         *Bus
	unsubscribe func()
	done        chan struct{}
	logger      *zap.Logger
}

// NewTab wires a tab to the shared bus. onApply, when non-nil, fires once per
// coalesced mutation.
func NewTab(bus *Bus, logger *zap.Logger, onApply func(models.Order)) *Tab {
	t := &Tab{
		ID:     uuid.New().String()[:8],
		bus:    bus,
		done:   make(chan struct{}),
		logger: logger,
	}
	t.rec = NewReconciler(logger, onApply)
	t.coal = NewCoalescer(DefaultDebounce, func(_ string, env socket.Envelope) {
		if err := t.rec.Apply(env); err != nil {
			logger.Warn("reconcile failed", zap.String("event", string(env.Type)), zap.Error(err))
		}
	})

	ch, cancel := bus.Subscribe()
	t.unsubscribe = cancel
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				t.offer(msg.Envelope)
			case <-t.done:
				return
			}
		}
	}()
	return t
}

// Seed loads the initial order list pulled from the read path.
func (t *Tab) Seed(orders []models.Order) { t.rec.Seed(orders) }

// HandleRemote feeds an envelope received over the tab's socket connection.
func (t *Tab) HandleRemote(env socket.Envelope) { t.offer(env) }

// BroadcastLocal publishes a locally originated mutation onto the bus. The
// origin tab does not apply it directly: it reacts to its own broadcast the
// same way every sibling tab does.
func (t *Tab) BroadcastLocal(env socket.Envelope) {
	t.bus.Publish(Message{Envelope: env, OriginTab: t.ID})
}

// Order returns a copy of one locally held record.
func (t *Tab) Order(id string) (models.Order, bool) { return t.rec.Order(id) }

// Orders returns copies of all locally held records.
func (t *Tab) Orders() []models.Order { return t.rec.Orders() }

// ApplyOptimistic sets a status ahead of the server response; the returned
// revert restores the previous record if the request fails.
func (t *Tab) ApplyOptimistic(orderID string, status models.OrderStatus) (func(), bool) {
	return t.rec.ApplyOptimistic(orderID, status)
}

// Close detaches the tab from the bus and cancels pending coalesced updates,
// so nothing mutates state after teardown.
func (t *Tab) Close() {
	t.coal.Close()
	t.unsubscribe()
	close(t.done)
}

func (t *Tab) offer(env socket.Envelope) {
	key, err := envelopeOrderKey(env)
	if err != nil {
		t.logger.Warn("undeliverable event", zap.String("event", string(env.Type)), zap.Error(err))
		return
	}
	t.coal.Offer(key, env)
}

// envelopeOrderKey extracts the order id an envelope refers to; it is the
// coalescing key.
func envelopeOrderKey(env socket.Envelope) (string, error) {
	switch env.Type {
	case socket.EventCommandCreated, socket.EventCommandFullyUpdated:
		var p struct {
			Order struct {
				ID string `json:"id"`
			} `json:"order"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return "", err
		}
		return p.Order.ID, nil
	case socket.EventCommandUpdated, socket.EventCommandDeleted,
		socket.EventStatusChanged, socket.EventStepUpdated:
		var p struct {
			OrderID string `json:"orderID"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return "", err
		}
		return p.OrderID, nil
	default:
		return "", fmt.Errorf("unknown event type %q", env.Type)
	}
}
