// This file implements artifact persistence.
//
// Artifacts are content-addressed: id and hash are the SHA-256 hex digest
// of the blob, so storing identical bytes twice is an idempotent success
// that lands on the existing row. Metadata and blob live in separate
// collections so list queries never touch payload data.
package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// ArtifactDB handles database operations for artifacts.
type ArtifactDB struct {
	db *mongo.Database
}

// NewArtifactDB creates a new ArtifactDB instance.
func NewArtifactDB(db *mongo.Database) *ArtifactDB {
	return &ArtifactDB{db: db}
}

func (a *ArtifactDB) meta() *mongo.Collection {
	return a.db.Collection(CollArtifactsMeta)
}

func (a *ArtifactDB) blobs() *mongo.Collection {
	return a.db.Collection(CollArtifactsBlob)
}

// HashBytes computes the content address of a blob.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StoreArtifact stores a blob with its metadata. Re-storing identical
// bytes returns the existing metadata item.
func (a *ArtifactDB) StoreArtifact(ctx context.Context, caller string, data []byte, metadata models.ArtifactMetadata) (*models.ArtifactMetadataItem, error) {
	id := HashBytes(data)

	var existing models.ArtifactMetadataItem
	err := a.meta().FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, apperrors.Storage("artifact lookup failed", err)
	}

	item := models.ArtifactMetadataItem{
		ID:          id,
		Hash:        id,
		CreatedBy:   caller,
		CreatedAt:   time.Now().UTC(),
		Metadata:    metadata,
		PublishedIn: []string{caller},
	}
	if _, err := a.blobs().InsertOne(ctx, models.ArtifactBlob{ID: id, Data: data}); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Storage("store blob failed", err)
		}
	}
	if _, err := a.meta().InsertOne(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Concurrent store of the same bytes: fall back to the winner.
			if ferr := a.meta().FindOne(ctx, bson.M{"_id": id}).Decode(&existing); ferr == nil {
				return &existing, nil
			}
		}
		return nil, apperrors.Storage("store artifact metadata failed", err)
	}
	return &item, nil
}

// LoadArtifact retrieves an artifact's metadata and blob by id.
func (a *ArtifactDB) LoadArtifact(ctx context.Context, id string) (*models.ArtifactMetadataItem, []byte, error) {
	var item models.ArtifactMetadataItem
	err := a.meta().FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil, apperrors.NotFound("Artifact not found")
		}
		return nil, nil, apperrors.Storage("load artifact failed", err)
	}

	var blob models.ArtifactBlob
	if err := a.blobs().FindOne(ctx, bson.M{"_id": id}).Decode(&blob); err != nil {
		return nil, nil, apperrors.Storage("load artifact blob failed", err)
	}
	return &item, blob.Data, nil
}

// GetMetadata retrieves only the metadata row.
func (a *ArtifactDB) GetMetadata(ctx context.Context, id string) (*models.ArtifactMetadataItem, error) {
	var item models.ArtifactMetadataItem
	err := a.meta().FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("Artifact not found")
		}
		return nil, apperrors.Storage("load artifact failed", err)
	}
	return &item, nil
}

// ListArtifacts returns metadata items matching the filter, restricted to
// the caller's visibility.
func (a *ArtifactDB) ListArtifacts(ctx context.Context, caller string, scope access.ReadScope, filter *models.Filter) ([]models.ArtifactMetadataItem, error) {
	query, err := listQuery(caller, scope, filter)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	cur, err := a.meta().Find(ctx, query)
	if err != nil {
		return nil, apperrors.Storage("list artifacts failed", err)
	}
	defer cur.Close(ctx)

	items := []models.ArtifactMetadataItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, apperrors.Storage("decode artifacts failed", err)
	}
	return items, nil
}

// DeleteArtifact removes the metadata and blob rows. Idempotent.
func (a *ArtifactDB) DeleteArtifact(ctx context.Context, id string) error {
	if _, err := a.meta().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperrors.Storage("delete artifact failed", err)
	}
	if _, err := a.blobs().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperrors.Storage("delete artifact blob failed", err)
	}
	return nil
}

// PublishArtifact adds a publication scope (set semantics).
func (a *ArtifactDB) PublishArtifact(ctx context.Context, id, group string) error {
	return a.updatePublication(ctx, id, bson.M{"$addToSet": bson.M{"published_in": group}})
}

// UnpublishArtifact removes a publication scope (set semantics).
func (a *ArtifactDB) UnpublishArtifact(ctx context.Context, id, group string) error {
	return a.updatePublication(ctx, id, bson.M{"$pull": bson.M{"published_in": group}})
}

func (a *ArtifactDB) updatePublication(ctx context.Context, id string, update bson.M) error {
	res, err := a.meta().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return apperrors.Storage("update publication failed", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("Artifact not found")
	}
	return nil
}
