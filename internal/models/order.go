// internal/models/order.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the lifecycle status of a commande. There is deliberately no
// enforced transition graph: the workshop may move an order to any status,
// including back to an earlier one. Only membership in the enum is validated.
type OrderStatus string

const (
	StatusDraft        OrderStatus = "draft"
	StatusPending      OrderStatus = "pending"
	StatusValidated    OrderStatus = "validated"
	StatusInProduction OrderStatus = "in-production"
	StatusQualityCheck OrderStatus = "quality-check"
	StatusReady        OrderStatus = "ready"
	StatusShipped      OrderStatus = "shipped"
	StatusDelivered    OrderStatus = "delivered"
	StatusCanceled     OrderStatus = "canceled"
)

// Valid reports whether s is a member of the status enum.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusValidated, StatusInProduction,
		StatusQualityCheck, StatusReady, StatusShipped, StatusDelivered,
		StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal success status. Terminal orders are
// always considered fully complete regardless of their steps.
func (s OrderStatus) Terminal() bool {
	return s == StatusReady || s == StatusShipped || s == StatusDelivered
}

// StepStatus is the status of a single production step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepBlocked    StepStatus = "blocked"
)

func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted, StepBlocked:
		return true
	}
	return false
}

// Product is one line of a commande.
type Product struct {
	Name     string `bson:"name" json:"name"`
	Quantity int    `bson:"quantity" json:"quantity"`
	Spec     string `bson:"spec" json:"spec"` // free-text specification
}

// ProductionStep is a unit of work within an order's fulfilment.
type ProductionStep struct {
	ID         string     `bson:"id" json:"id"`
	Name       string     `bson:"name" json:"name"`
	Status     StepStatus `bson:"status" json:"status"`
	AssigneeID string     `bson:"assigneeID,omitempty" json:"assigneeID,omitempty"`
	StartedAt  *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	EndedAt    *time.Time `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
}

// ClientSnapshot is the denormalized client contact carried on each order, so
// the order stays readable even if the client record is later edited.
type ClientSnapshot struct {
	ID    string `bson:"id,omitempty" json:"id,omitempty"`
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
}

// Order is a commande. Orders are embedded in their Organisation document and
// are never a top-level collection of their own.
type Order struct {
	ID           primitive.ObjectID `bson:"id" json:"id"`
	Number       int64              `bson:"number" json:"number"` // organisation-relative, minted from the org counter
	Reference    string             `bson:"reference" json:"reference"`
	Client       ClientSnapshot     `bson:"client" json:"client"`
	Products     []Product          `bson:"products" json:"products"`
	Status       OrderStatus        `bson:"status" json:"status"`
	Progression  int                `bson:"progression" json:"progression"` // derived, 0..100
	Revision     int64              `bson:"revision" json:"revision"`       // bumped on every mutation, lets clients drop stale events
	Steps        []ProductionStep   `bson:"steps" json:"steps"`
	Attachments  []string           `bson:"attachments,omitempty" json:"attachments,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	DeliveryDate time.Time          `bson:"deliveryDate" json:"deliveryDate"`
}

// StepByID returns a pointer into Steps, or nil when absent.
func (o *Order) StepByID(stepID string) *ProductionStep {
	for i := range o.Steps {
		if o.Steps[i].ID == stepID {
			return &o.Steps[i]
		}
	}
	return nil
}
