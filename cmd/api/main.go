// cmd/api/main.go
package main

import (
	"context"
	"log"
	"time"

	"commande-track-api-server/config"
	"commande-track-api-server/internal/api/routes"
	"commande-track-api-server/internal/database"
	"commande-track-api-server/internal/mail"
	"commande-track-api-server/internal/orders"
	"commande-track-api-server/internal/s3"
	"commande-track-api-server/internal/socket"
	"commande-track-api-server/internal/store"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Could not create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal("failed to ping MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.Mongo.DBName)

	if err := database.SeedAdmin(db, logger); err != nil {
		logger.Fatal("failed to seed admin", zap.Error(err))
	}

	orgStore := store.NewOrganisationStore(db)
	historyStore := store.NewHistoryStore(db)
	hub := socket.NewHub(logger)
	mailer := mail.New(mail.Config{
		Mode:     cfg.Mail.Mode,
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	}, logger)

	var uploader *s3.Uploader
	if cfg.S3.Bucket != "" {
		uploader, err = s3.NewUploader(cfg.S3)
		if err != nil {
			logger.Fatal("failed to create S3 uploader", zap.Error(err))
		}
	}

	orderService := orders.NewService(orgStore, historyStore, mailer, hub, logger)

	router := routes.SetupRouter(cfg, db, orderService, orgStore, historyStore, hub, uploader, logger)

	logger.Info("starting API server", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("failed to run server", zap.Error(err))
	}
}
