// internal/store/history_store.go
package store

import (
	"context"
	"time"

	"commande-track-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HistoryStore appends and reads immutable audit entries. Entries are keyed by
// order id and are never deleted, even when the order itself is removed from
// its organisation.
type HistoryStore struct {
	db *mongo.Database
}

func NewHistoryStore(db *mongo.Database) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) collection() *mongo.Collection {
	return s.db.Collection("histories")
}

// Append writes one entry, stamping CreatedAt when unset.
func (s *HistoryStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.collection().InsertOne(ctx, entry)
	return err
}

// ByOrder returns an order's entries, newest first.
func (s *HistoryStore) ByOrder(ctx context.Context, orderID string) ([]models.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.collection().Find(ctx, bson.M{"orderID": orderID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.HistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return entries, nil
}
