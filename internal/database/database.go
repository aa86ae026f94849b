package database

import (
	"context"
	"log"
	"time"

	"crmflow/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
)

// MongodbDB wraps the active database handle so repositories can be
// constructed from a single fx-provided dependency.
type MongodbDB struct {
	DB *mongo.Database
}

// NewDatabase connects to MongoDB, provisions the engine's indexes and
// registers the disconnect on shutdown.
func NewDatabase(lc fx.Lifecycle, cfg *config.Config) (*MongodbDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	log.Println("Connected to MongoDB!")

	db := client.Database(cfg.DBName)
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Println("Disconnecting from MongoDB...")
			return client.Disconnect(ctx)
		},
	})

	return &MongodbDB{DB: db}, nil
}

// ensureIndexes covers the hot read paths: event dispatch looks
// automations up by organization, trigger type and active flag; run log
// listings page by automation newest-first.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("automations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "organization_id", Value: 1},
			{Key: "trigger.type", Value: 1},
			{Key: "is_active", Value: 1},
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("automation_run_logs").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "automation_id", Value: 1},
			{Key: "start_time", Value: -1},
		},
	})
	return err
}
