// internal/store/organisation_store.go
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"commande-track-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrOrganisationNotFound = errors.New("organisation not found")
	ErrOrderNotFound        = errors.New("order not found")
)

// OrganisationStore is the durable record of organisations and their embedded
// orders. Every write replaces the whole organisation document: the aggregate
// save is the single serialization point, with last-write-wins semantics
// across concurrent mutations of the same organisation.
type OrganisationStore struct {
	db *mongo.Database
}

func NewOrganisationStore(db *mongo.Database) *OrganisationStore {
	return &OrganisationStore{db: db}
}

func (s *OrganisationStore) collection() *mongo.Collection {
	return s.db.Collection("organisations")
}

// FindByID loads one organisation aggregate.
func (s *OrganisationStore) FindByID(ctx context.Context, orgID primitive.ObjectID) (*models.Organisation, error) {
	var org models.Organisation
	err := s.collection().FindOne(ctx, bson.M{"_id": orgID}).Decode(&org)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrganisationNotFound
		}
		return nil, err
	}
	return &org, nil
}

// FindOrder resolves an order inside its organisation by either its global
// ObjectID hex or its organisation-relative number. The returned *Order
// points into the returned aggregate, so mutating it and saving the
// organisation persists the change.
func (s *OrganisationStore) FindOrder(ctx context.Context, orgID primitive.ObjectID, ref string) (*models.Organisation, *models.Order, error) {
	org, err := s.FindByID(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	if oid, err := primitive.ObjectIDFromHex(ref); err == nil {
		if order := org.OrderByID(oid); order != nil {
			return org, order, nil
		}
	}
	if number, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if order := org.OrderByNumber(number); order != nil {
			return org, order, nil
		}
	}
	return nil, nil, ErrOrderNotFound
}

// FindOrderAnyOrg resolves an order by global id alone, without a tenant in
// hand. This backs the unauthenticated mobile quick-update path, which only
// ever knows the order id printed in its QR code.
func (s *OrganisationStore) FindOrderAnyOrg(ctx context.Context, orderID string) (*models.Organisation, *models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, nil, ErrOrderNotFound
	}
	var org models.Organisation
	err = s.collection().FindOne(ctx, bson.M{"commandes.id": oid}).Decode(&org)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}
	order := org.OrderByID(oid)
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}
	return &org, order, nil
}

// Save atomically replaces the whole organisation document.
func (s *OrganisationStore) Save(ctx context.Context, org *models.Organisation) error {
	org.UpdatedAt = time.Now()
	res, err := s.collection().ReplaceOne(ctx, bson.M{"_id": org.ID}, org)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrOrganisationNotFound
	}
	return nil
}

// Insert creates a new organisation document.
func (s *OrganisationStore) Insert(ctx context.Context, org *models.Organisation) error {
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	res, err := s.collection().InsertOne(ctx, org)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		org.ID = oid
	}
	return nil
}
