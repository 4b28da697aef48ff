package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDatabase returns the application database handle.
func MongoDatabase() *mongo.Database {
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "minuteflow"
	}
	return MongoClient.Database(dbName)
}

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	analyses := db.Collection("meeting_analyses")
	_, err := analyses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// one analysis document per job; re-runs upsert in place
		{
			Keys: bson.D{{Key: "job_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_job_id").
				SetUnique(true),
		},
		// recent listing
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_created"),
		},
	})
	return err
}
