// internal/models/history.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actions recorded in the audit trail.
const (
	ActionOrderCreated  = "order-created"
	ActionOrderUpdated  = "order-updated"
	ActionOrderDeleted  = "order-deleted"
	ActionStatusChanged = "status-changed"
	ActionStepUpdated   = "step-updated"
)

// Sources of a state-changing action.
const (
	SourceWeb    = "web"
	SourceMobile = "mobile"
)

// HistoryEntry is an immutable audit record. Entries live in their own
// collection and survive the deletion of the order they reference.
type HistoryEntry struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	OrderID   string                 `bson:"orderID" json:"orderID"`
	Action    string                 `bson:"action" json:"action"`
	Change    map[string]interface{} `bson:"change" json:"change"`
	Source    string                 `bson:"source" json:"source"` // "web" or "mobile"
	MailSent  bool                   `bson:"mailSent" json:"mailSent"`
	CreatedAt time.Time              `bson:"createdAt" json:"createdAt"`
}
