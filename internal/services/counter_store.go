package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cimars/catalog/internal/cache"
	"cimars/catalog/internal/config"
	"cimars/catalog/internal/db"
	"cimars/catalog/internal/models"
)

// ICounterStore keeps one monotonic sequence per prefix.
type ICounterStore interface {
	// Next atomically increments the sequence for prefix and returns the new
	// value. A prefix seen for the first time starts at 1.
	Next(ctx context.Context, prefix string) (int64, error)
	// Current returns the last issued value, 0 if none.
	Current(ctx context.Context, prefix string) (int64, error)
}

// NewCounterStore picks the backend named by cfg.CounterBackend.
func NewCounterStore(cfg *config.Config, database *mongo.Database, rdb *redis.Client) (ICounterStore, error) {
	switch cfg.CounterBackend {
	case config.CounterBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("counter backend %q needs a Redis client", cfg.CounterBackend)
		}
		return NewRedisCounterStore(rdb), nil
	case config.CounterBackendMongo, "":
		return NewMongoCounterStore(database), nil
	default:
		return nil, fmt.Errorf("unknown counter backend %q", cfg.CounterBackend)
	}
}

type mongoCounterStore struct {
	db *mongo.Database
}

// NewMongoCounterStore stores sequences in the counters collection. The
// collection needs a unique index on prefix (see db.EnsureIndexes).
func NewMongoCounterStore(database *mongo.Database) ICounterStore {
	return &mongoCounterStore{db: database}
}

func (s *mongoCounterStore) Next(ctx context.Context, prefix string) (int64, error) {
	collection := s.db.Collection(db.CountersCollection)
	filter := bson.M{"prefix": prefix}
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter models.Counter
	// Two first-time upserts on the same prefix race on the unique index; the
	// loser's write is rejected without incrementing, so repeating it is safe.
	err := db.Try(ctx, func(ctx context.Context) error {
		return collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: incrementing %s: %v", models.ErrCounterStoreUnavailable, prefix, err)
	}
	return counter.Seq, nil
}

func (s *mongoCounterStore) Current(ctx context.Context, prefix string) (int64, error) {
	var counter models.Counter
	err := s.db.Collection(db.CountersCollection).FindOne(ctx, bson.M{"prefix": prefix}).Decode(&counter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: reading %s: %v", models.ErrCounterStoreUnavailable, prefix, err)
	}
	return counter.Seq, nil
}

type redisCounterStore struct {
	rdb *redis.Client
}

// NewRedisCounterStore keeps each sequence in a Redis string advanced by INCR.
func NewRedisCounterStore(rdb *redis.Client) ICounterStore {
	return &redisCounterStore{rdb: rdb}
}

func counterKey(prefix string) string {
	return cache.Key("counter", prefix)
}

func (s *redisCounterStore) Next(ctx context.Context, prefix string) (int64, error) {
	seq, err := s.rdb.Incr(ctx, counterKey(prefix)).Result()
	if err != nil {
		slog.Error("redis counter increment failed", "prefix", prefix, "error", err)
		return 0, fmt.Errorf("%w: incrementing %s: %v", models.ErrCounterStoreUnavailable, prefix, err)
	}
	return seq, nil
}

func (s *redisCounterStore) Current(ctx context.Context, prefix string) (int64, error) {
	seq, err := s.rdb.Get(ctx, counterKey(prefix)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: reading %s: %v", models.ErrCounterStoreUnavailable, prefix, err)
	}
	return seq, nil
}
