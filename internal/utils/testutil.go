package utils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var loadEnvOnce sync.Once

// loadTestEnv loads the project root .env once per test binary.
func loadTestEnv() {
	loadEnvOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
		if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
			_ = godotenv.Load()
		}
	})
}

// GetTestMongoURI returns MONGO_URI from the environment or .env.
func GetTestMongoURI() string {
	loadTestEnv()
	return os.Getenv("MONGO_URI")
}

// SetupTestDB connects to the test MongoDB and drops the given collections.
// The test is skipped when no MONGO_URI is configured.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	uri := GetTestMongoURI()
	if uri == "" {
		t.Skip("MONGO_URI not set; skipping MongoDB-backed test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err, "Failed to connect to MongoDB")
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("MongoDB at MONGO_URI unreachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database(dbName)
	for _, collection := range collections {
		_ = db.Collection(collection).Drop(ctx)
	}
	return db
}

// SetupTestRedis connects to REDIS_ADDR (default localhost:6379) on DB 15 and
// flushes it. The test is skipped when Redis is unreachable.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	loadTestEnv()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("Redis at %s unreachable: %v", addr, err)
	}
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
