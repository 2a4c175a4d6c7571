package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	ListingsCollection       = "properties"
	CountersCollection       = "counters"
	EmailTemplatesCollection = "email_templates"
	EnquiriesCollection      = "enquiries"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("connected to MongoDB", "database", dbName)
	return client, client.Database(dbName), nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	slog.Info("MongoDB connection closed")
	return nil
}

// EnsureIndexes creates the indexes the catalog relies on. The unique ones
// back the code and counter invariants; the rest serve the search filters.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	plan := map[string][]mongo.IndexModel{
		ListingsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "dealType", Value: 1}, {Key: "address.city", Value: 1}, {Key: "price", Value: 1}}},
			{Keys: bson.D{{Key: "featured", Value: 1}}},
			{Keys: bson.D{{Key: "landArea", Value: 1}}},
			{Keys: bson.D{{Key: "construction.builtArea", Value: 1}}},
		},
		CountersCollection: {
			{Keys: bson.D{{Key: "prefix", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		EmailTemplatesCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "locale", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		EnquiriesCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range plan {
		if _, err := database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
