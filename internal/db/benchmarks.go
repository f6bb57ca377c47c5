// This file implements benchmark persistence.
//
// Benchmarks carry a caller-computed content hash; the store never
// recomputes it. Creation deduplicates by hash within the caller's
// visibility and publishes the new row in the creator's personal group.
// Deletion cascades to every episode recorded against the benchmark.
package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// BenchmarkDB handles database operations for benchmarks.
type BenchmarkDB struct {
	db *mongo.Database
}

// NewBenchmarkDB creates a new BenchmarkDB instance.
func NewBenchmarkDB(db *mongo.Database) *BenchmarkDB {
	return &BenchmarkDB{db: db}
}

func (b *BenchmarkDB) benchmarks() *mongo.Collection {
	return b.db.Collection(CollBenchmarks)
}

// CreateBenchmark stores a benchmark unless one with the same hash is
// already visible to the caller, in which case it conflicts.
func (b *BenchmarkDB) CreateBenchmark(ctx context.Context, caller string, scope access.ReadScope, query models.BenchmarkQuery) (*models.BenchmarkHeader, error) {
	visible := scopeQuery(caller, scope)
	dup := bson.M{"hash": query.Hash}
	if len(visible) > 0 {
		dup = bson.M{"$and": []bson.M{visible, dup}}
	}
	count, err := b.benchmarks().CountDocuments(ctx, dup)
	if err != nil {
		return nil, apperrors.Storage("hash lookup failed", err)
	}
	if count > 0 {
		return nil, apperrors.Conflict("Benchmark with this hash already exists")
	}

	bench := models.Benchmark{
		BenchmarkHeader: models.BenchmarkHeader{
			ID:          uuid.New().String(),
			Hash:        query.Hash,
			CreatedBy:   caller,
			CreatedAt:   time.Now().UTC(),
			Metadata:    query.Metadata,
			PublishedIn: []string{caller},
		},
		Serialized: query.Serialized,
	}
	if _, err := b.benchmarks().InsertOne(ctx, bench); err != nil {
		return nil, apperrors.Storage("create benchmark failed", err)
	}
	header := bench.Header()
	return &header, nil
}

// LoadBenchmark retrieves a benchmark by id, including its payload.
func (b *BenchmarkDB) LoadBenchmark(ctx context.Context, id string) (*models.Benchmark, error) {
	var bench models.Benchmark
	err := b.benchmarks().FindOne(ctx, bson.M{"_id": id}).Decode(&bench)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("Benchmark not found")
		}
		return nil, apperrors.Storage("load benchmark failed", err)
	}
	return &bench, nil
}

// ListBenchmarks returns headers matching the filter, restricted to the
// caller's visibility. The authorization predicate is part of the query.
func (b *BenchmarkDB) ListBenchmarks(ctx context.Context, caller string, scope access.ReadScope, filter *models.Filter) ([]models.BenchmarkHeader, error) {
	query, err := listQuery(caller, scope, filter)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	// Headers never carry the serialized payload.
	opts := options.Find().SetProjection(bson.M{"serialized": 0})
	cur, err := b.benchmarks().Find(ctx, query, opts)
	if err != nil {
		return nil, apperrors.Storage("list benchmarks failed", err)
	}
	defer cur.Close(ctx)

	headers := []models.BenchmarkHeader{}
	if err := cur.All(ctx, &headers); err != nil {
		return nil, apperrors.Storage("decode benchmarks failed", err)
	}
	return headers, nil
}

// DeleteBenchmark removes a benchmark and all episodes recorded against
// it. Idempotent: a missing id is a success.
func (b *BenchmarkDB) DeleteBenchmark(ctx context.Context, id string) error {
	if _, err := b.benchmarks().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperrors.Storage("delete benchmark failed", err)
	}
	if _, err := b.db.Collection(CollEpisodes).DeleteMany(ctx, bson.M{"benchmark_id": id}); err != nil {
		return apperrors.Storage("cascade episode delete failed", err)
	}
	return nil
}

// PublishBenchmark adds a publication scope (set semantics).
func (b *BenchmarkDB) PublishBenchmark(ctx context.Context, id, group string) error {
	return b.updatePublication(ctx, id, bson.M{"$addToSet": bson.M{"published_in": group}})
}

// UnpublishBenchmark removes a publication scope (set semantics).
func (b *BenchmarkDB) UnpublishBenchmark(ctx context.Context, id, group string) error {
	return b.updatePublication(ctx, id, bson.M{"$pull": bson.M{"published_in": group}})
}

func (b *BenchmarkDB) updatePublication(ctx context.Context, id string, update bson.M) error {
	res, err := b.benchmarks().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return apperrors.Storage("update publication failed", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("Benchmark not found")
	}
	return nil
}
