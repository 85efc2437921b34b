// internal/socket/events.go
package socket

import (
	"encoding/json"
	"fmt"

	"commande-track-api-server/internal/models"
)

// EventType is the closed vocabulary of realtime events. Adding a kind means
// adding a constant here and a case to every switch that consumes envelopes;
// the relay's dispatcher rejects anything outside this set.
type EventType string

const (
	EventCommandCreated      EventType = "COMMAND_CREATED"
	EventCommandUpdated      EventType = "COMMAND_UPDATED"
	EventCommandDeleted      EventType = "COMMAND_DELETED"
	EventStatusChanged       EventType = "STATUS_CHANGED"
	EventStepUpdated         EventType = "STEP_UPDATED"
	EventCommandFullyUpdated EventType = "COMMAND_FULLY_UPDATED"
)

// Valid reports whether t belongs to the event vocabulary.
func (t EventType) Valid() bool {
	switch t {
	case EventCommandCreated, EventCommandUpdated, EventCommandDeleted,
		EventStatusChanged, EventStepUpdated, EventCommandFullyUpdated:
		return true
	}
	return false
}

// Payload is implemented by every event payload. EventOrderID scopes the
// public per-order room; it is never empty.
type Payload interface {
	EventOrderID() string
}

// CommandCreated announces a new order. Carries the full record.
type CommandCreated struct {
	Order models.Order `json:"order"`
}

func (p CommandCreated) EventOrderID() string { return p.Order.ID.Hex() }

// CommandUpdated is a partial-field patch on one order.
type CommandUpdated struct {
	OrderID string                 `json:"orderID"`
	Fields  map[string]interface{} `json:"fields"`
}

func (p CommandUpdated) EventOrderID() string { return p.OrderID }

// CommandDeleted announces the removal of an order from its organisation.
type CommandDeleted struct {
	OrderID string `json:"orderID"`
}

func (p CommandDeleted) EventOrderID() string { return p.OrderID }

// StatusChanged carries only status and the derived progression. Revision lets
// clients discard an event older than the state they already hold.
type StatusChanged struct {
	OrderID     string             `json:"orderID"`
	Status      models.OrderStatus `json:"status"`
	Progression int                `json:"progression"`
	Revision    int64              `json:"revision"`
}

func (p StatusChanged) EventOrderID() string { return p.OrderID }

// StepUpdated carries one step's new state; receivers recompute progression
// locally from their step list rather than waiting for the server value.
type StepUpdated struct {
	OrderID string                `json:"orderID"`
	Step    models.ProductionStep `json:"step"`
}

func (p StepUpdated) EventOrderID() string { return p.OrderID }

// CommandFullyUpdated replaces the whole order record. Used when several
// derived fields change together and a partial patch would be ambiguous.
type CommandFullyUpdated struct {
	Order models.Order `json:"order"`
}

func (p CommandFullyUpdated) EventOrderID() string { return p.Order.ID.Hex() }

// Envelope is the wire form of an event.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload for the wire.
func NewEnvelope(t EventType, payload Payload) (Envelope, error) {
	if !t.Valid() {
		return Envelope{}, fmt.Errorf("unknown event type %q", t)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, Data: data}, nil
}
