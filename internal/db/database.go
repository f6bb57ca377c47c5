// Package db provides MongoDB persistence for BenchVault.
//
// Collections:
//   - users: account rows with embedded memberships
//   - roles: named capability sets
//   - groups: publication scopes
//   - benchmarks: environment definitions (serialized payload inline)
//   - artifacts_meta / artifacts_blob: content-addressed binary artifacts,
//     metadata and payload split so listings never page blob data
//   - episodes: recorded tuple sequences
//
// Every store shares one *mongo.Database handle; all operations take a
// context and rely on Mongo's single-document atomicity. Publish and
// unpublish are single-document $addToSet/$pull updates.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/benchvault/benchvault/internal/logger"
)

// Collection names.
const (
	CollUsers         = "users"
	CollRoles         = "roles"
	CollGroups        = "groups"
	CollBenchmarks    = "benchmarks"
	CollArtifactsMeta = "artifacts_meta"
	CollArtifactsBlob = "artifacts_blob"
	CollEpisodes      = "episodes"
)

// Config holds the connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Connect creates a client, verifies the connection with a ping, and
// returns the database handle plus a cleanup func for shutdown.
func Connect(parentCtx context.Context, cfg Config) (*mongo.Database, func(), error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts = clientOpts.
			SetConnectTimeout(cfg.ConnectTimeout).
			SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(parentCtx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, func() {}, fmt.Errorf("mongodb: connect failed: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, func() {}, fmt.Errorf("mongodb: ping failed: %w", err)
	}

	db := client.Database(cfg.Database)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Database().Error().Err(err).Msg("mongodb disconnect error")
		}
	}

	return db, cleanup, nil
}

func optionsUpsert() *options.UpdateOptions {
	return options.Update().SetUpsert(true)
}

// EnsureIndexes creates the uniqueness indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	indexes := []struct {
		coll string
		keys bson.D
	}{
		{CollUsers, bson.D{{Key: "username", Value: 1}}},
		{CollRoles, bson.D{{Key: "role", Value: 1}}},
		{CollGroups, bson.D{{Key: "name", Value: 1}}},
	}
	for _, idx := range indexes {
		_, err := db.Collection(idx.coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    idx.keys,
			Options: unique,
		})
		if err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll, err)
		}
	}

	// Non-unique lookup indexes for the hot query paths.
	lookups := []struct {
		coll string
		keys bson.D
	}{
		{CollBenchmarks, bson.D{{Key: "hash", Value: 1}}},
		{CollBenchmarks, bson.D{{Key: "created_by", Value: 1}}},
		{CollEpisodes, bson.D{{Key: "benchmark_id", Value: 1}}},
		{CollEpisodes, bson.D{{Key: "created_by", Value: 1}}},
		{CollArtifactsMeta, bson.D{{Key: "created_by", Value: 1}}},
	}
	for _, idx := range lookups {
		_, err := db.Collection(idx.coll).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys})
		if err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll, err)
		}
	}
	return nil
}
