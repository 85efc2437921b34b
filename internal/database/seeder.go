// internal/database/seeder.go
package database

import (
	"context"

	"commande-track-api-server/internal/auth"
	"commande-track-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SeedAdmin ensures a first organisation and its admin user exist, so a fresh
// deployment can be logged into.
func SeedAdmin(db *mongo.Database, logger *zap.Logger) error {
	userCollection := db.Collection("users")
	adminEmail := "admin@example.com"

	count, err := userCollection.CountDocuments(context.Background(), bson.M{"email": adminEmail})
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("admin already exists, seeding skipped")
		return nil
	}

	logger.Info("admin not found, seeding")
	hashedPassword, err := auth.HashPassword("adminpassword")
	if err != nil {
		return err
	}

	org := models.Organisation{
		ID:      primitive.NewObjectID(),
		Name:    "Atelier Demo",
		Clients: []models.Client{},
		Orders:  []models.Order{},
	}

	admin := models.User{
		Email:    adminEmail,
		Name:     "Admin",
		Password: hashedPassword,
		Role:     "admin",
		OrgID:    org.ID,
		Status:   "active",
	}

	res, err := userCollection.InsertOne(context.Background(), admin)
	if err != nil {
		return err
	}
	if uid, ok := res.InsertedID.(primitive.ObjectID); ok {
		org.Members = []primitive.ObjectID{uid}
	}

	if _, err := db.Collection("organisations").InsertOne(context.Background(), org); err != nil {
		return err
	}

	logger.Info("admin and demo organisation seeded")
	return nil
}
