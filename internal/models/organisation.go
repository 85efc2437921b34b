// internal/models/organisation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client is a customer of the organisation.
type Client struct {
	ID      primitive.ObjectID `bson:"id" json:"id"`
	Name    string             `bson:"name" json:"name"`
	Email   string             `bson:"email" json:"email"`
	Phone   string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Company string             `bson:"company,omitempty" json:"company,omitempty"`
}

// Organisation is the tenant aggregate. Clients and orders are embedded, so a
// mutation to any order is persisted as one atomic replace of the whole
// document. Counter only ever increases: order numbers are unique within the
// organisation and never reused, even after an order is deleted.
type Organisation struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	Members   []primitive.ObjectID `bson:"members" json:"members"`
	Counter   int64                `bson:"counter" json:"counter"`
	Clients   []Client             `bson:"clients" json:"clients"`
	Orders    []Order              `bson:"commandes" json:"commandes"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// OrderByID returns a pointer into Orders by global id, or nil.
func (org *Organisation) OrderByID(id primitive.ObjectID) *Order {
	for i := range org.Orders {
		if org.Orders[i].ID == id {
			return &org.Orders[i]
		}
	}
	return nil
}

// OrderByNumber returns a pointer into Orders by organisation-relative number.
func (org *Organisation) OrderByNumber(number int64) *Order {
	for i := range org.Orders {
		if org.Orders[i].Number == number {
			return &org.Orders[i]
		}
	}
	return nil
}

// ClientByID returns a pointer into Clients, or nil.
func (org *Organisation) ClientByID(id primitive.ObjectID) *Client {
	for i := range org.Clients {
		if org.Clients[i].ID == id {
			return &org.Clients[i]
		}
	}
	return nil
}
