// This file implements episode persistence.
//
// Episodes are append-only: the full tuple list arrives in one record
// call and is never mutated. The terminated/timeout/n_tuples fields are
// derived from the tuple list at record time. Referential integrity to
// the parent benchmark is checked at record time only; afterwards parent
// deletion cascades.
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

// EpisodeDB handles database operations for episodes.
type EpisodeDB struct {
	db *mongo.Database
}

// NewEpisodeDB creates a new EpisodeDB instance.
func NewEpisodeDB(db *mongo.Database) *EpisodeDB {
	return &EpisodeDB{db: db}
}

func (e *EpisodeDB) episodes() *mongo.Collection {
	return e.db.Collection(CollEpisodes)
}

// RecordEpisode stores an episode. The caller is responsible for checking
// that the parent benchmark exists and that the recording user may
// reference it.
func (e *EpisodeDB) RecordEpisode(ctx context.Context, caller string, query models.EpisodeQuery) (*models.EpisodeHeader, error) {
	if len(query.Tuples) == 0 {
		return nil, apperrors.Validation("episode requires at least one tuple")
	}
	episode := models.NewEpisodeItem(uuid.New().String(), caller, time.Now().UTC(), query)
	if _, err := e.episodes().InsertOne(ctx, episode); err != nil {
		return nil, apperrors.Storage("record episode failed", err)
	}
	header := episode.Header()
	return &header, nil
}

// GetEpisode retrieves a single episode with tuples.
func (e *EpisodeDB) GetEpisode(ctx context.Context, id string) (*models.EpisodeItem, error) {
	var episode models.EpisodeItem
	err := e.episodes().FindOne(ctx, bson.M{"_id": id}).Decode(&episode)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("Episode not found")
		}
		return nil, apperrors.Storage("load episode failed", err)
	}
	return &episode, nil
}

// ListEpisodes returns episodes matching the filter, restricted to the
// caller's visibility. With includeTuples false the tuple lists are
// projected away server-side.
func (e *EpisodeDB) ListEpisodes(ctx context.Context, caller string, scope access.ReadScope, filter *models.Filter, includeTuples bool) ([]models.EpisodeItem, error) {
	query, err := listQuery(caller, scope, filter)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	opts := options.Find()
	if !includeTuples {
		opts = opts.SetProjection(bson.M{"tuples": 0})
	}
	cur, err := e.episodes().Find(ctx, query, opts)
	if err != nil {
		return nil, apperrors.Storage("list episodes failed", err)
	}
	defer cur.Close(ctx)

	episodes := []models.EpisodeItem{}
	if err := cur.All(ctx, &episodes); err != nil {
		return nil, apperrors.Storage("decode episodes failed", err)
	}
	return episodes, nil
}

// DeleteEpisode removes an episode. Idempotent.
func (e *EpisodeDB) DeleteEpisode(ctx context.Context, id string) error {
	if _, err := e.episodes().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperrors.Storage("delete episode failed", err)
	}
	return nil
}

// PublishEpisode adds a publication scope (set semantics). The handler
// checks the parent benchmark is published in the target scope first.
func (e *EpisodeDB) PublishEpisode(ctx context.Context, id, group string) error {
	return e.updatePublication(ctx, id, bson.M{"$addToSet": bson.M{"published_in": group}})
}

// UnpublishEpisode removes a publication scope (set semantics).
func (e *EpisodeDB) UnpublishEpisode(ctx context.Context, id, group string) error {
	return e.updatePublication(ctx, id, bson.M{"$pull": bson.M{"published_in": group}})
}

func (e *EpisodeDB) updatePublication(ctx context.Context, id string, update bson.M) error {
	res, err := e.episodes().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return apperrors.Storage("update publication failed", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("Episode not found")
	}
	return nil
}
