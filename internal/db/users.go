// This file implements the user side of the identity store.
//
// Invariants maintained here:
//   - every user has a personal group named after the username, created at
//     signup together with memberships {global: [guest]} and
//     {<username>: [admin]}
//   - passwords are stored only as bcrypt hashes
//   - deleting a user cascades to every resource the user created whose
//     publication never left the personal scope; publicly published
//     resources survive under the stale username
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/auth"
	"github.com/benchvault/benchvault/internal/logger"
	"github.com/benchvault/benchvault/internal/models"
)

// UserDB handles database operations for users.
type UserDB struct {
	db *mongo.Database
}

// NewUserDB creates a new UserDB instance.
func NewUserDB(db *mongo.Database) *UserDB {
	return &UserDB{db: db}
}

func (u *UserDB) users() *mongo.Collection {
	return u.db.Collection(CollUsers)
}

// CreateUser creates a user with its personal group and the default
// memberships. Fails with Conflict when the username (or a group of the
// same name) already exists.
func (u *UserDB) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.Storage("password hashing failed", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Memberships: []models.Membership{
			{Group: models.GlobalGroup, Roles: []string{models.RoleGuest}},
			{Group: username, Roles: []string{models.RoleAdmin}},
		},
	}

	// The personal group doubles as the ownership scope; a group squatting
	// on the name blocks the signup.
	personal := models.Group{
		Name:        username,
		Description: fmt.Sprintf("personal group of %s", username),
		CreatedBy:   username,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := u.db.Collection(CollGroups).InsertOne(ctx, personal); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("User already exists")
		}
		return nil, apperrors.Storage("create personal group failed", err)
	}

	if _, err := u.users().InsertOne(ctx, user); err != nil {
		_, _ = u.db.Collection(CollGroups).DeleteOne(ctx, bson.M{"name": username})
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("User already exists")
		}
		return nil, apperrors.Storage("create user failed", err)
	}
	return user, nil
}

// GetUser retrieves a user by username.
func (u *UserDB) GetUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := u.users().FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Storage("load user failed", err)
	}
	return &user, nil
}

// ListUsers retrieves all users, sorted by username.
func (u *UserDB) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	cur, err := u.users().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperrors.Storage("list users failed", err)
	}
	defer cur.Close(ctx)

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, apperrors.Storage("decode users failed", err)
	}
	return users, nil
}

// ChangePassword replaces the stored password hash.
func (u *UserDB) ChangePassword(ctx context.Context, username, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperrors.Storage("password hashing failed", err)
	}
	res, err := u.users().UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"password_hash": hash}},
	)
	if err != nil {
		return apperrors.Storage("update password failed", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("User not found")
	}
	return nil
}

// VerifyCredentials checks a username/password pair for login.
func (u *UserDB) VerifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := u.GetUser(ctx, username)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, apperrors.Unauthorized("invalid credentials")
	}
	return user, nil
}

// privateScope matches resources created by username whose published_in
// never left the personal group (empty, or containing only the username).
func privateScope(username string) bson.M {
	return bson.M{
		"created_by":   username,
		"published_in": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$ne": username}}},
	}
}

// DeleteUser removes a user, its personal group, and cascades to all
// privately-scoped resources the user created. Idempotent: a missing
// user is a success.
func (u *UserDB) DeleteUser(ctx context.Context, username string) error {
	res, err := u.users().DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return apperrors.Storage("delete user failed", err)
	}
	if res.DeletedCount == 0 {
		return nil
	}

	// Privately-scoped benchmarks go away with all their episodes.
	benchCur, err := u.db.Collection(CollBenchmarks).Find(ctx, privateScope(username))
	if err != nil {
		return apperrors.Storage("cascade lookup failed", err)
	}
	var benches []models.BenchmarkHeader
	if err := benchCur.All(ctx, &benches); err != nil {
		return apperrors.Storage("cascade decode failed", err)
	}
	for _, b := range benches {
		if _, err := u.db.Collection(CollEpisodes).DeleteMany(ctx, bson.M{"benchmark_id": b.ID}); err != nil {
			return apperrors.Storage("cascade episode delete failed", err)
		}
	}
	if _, err := u.db.Collection(CollBenchmarks).DeleteMany(ctx, privateScope(username)); err != nil {
		return apperrors.Storage("cascade benchmark delete failed", err)
	}

	// Privately-scoped artifacts: metadata and blob rows.
	metaCur, err := u.db.Collection(CollArtifactsMeta).Find(ctx, privateScope(username))
	if err != nil {
		return apperrors.Storage("cascade lookup failed", err)
	}
	var artifacts []models.ArtifactMetadataItem
	if err := metaCur.All(ctx, &artifacts); err != nil {
		return apperrors.Storage("cascade decode failed", err)
	}
	for _, a := range artifacts {
		if _, err := u.db.Collection(CollArtifactsBlob).DeleteOne(ctx, bson.M{"_id": a.ID}); err != nil {
			return apperrors.Storage("cascade blob delete failed", err)
		}
	}
	if _, err := u.db.Collection(CollArtifactsMeta).DeleteMany(ctx, privateScope(username)); err != nil {
		return apperrors.Storage("cascade artifact delete failed", err)
	}

	// Privately-scoped episodes recorded against surviving benchmarks.
	if _, err := u.db.Collection(CollEpisodes).DeleteMany(ctx, privateScope(username)); err != nil {
		return apperrors.Storage("cascade episode delete failed", err)
	}

	// The personal group disappears: drop it from the group collection and
	// from every surviving resource's publication set.
	if _, err := u.db.Collection(CollGroups).DeleteOne(ctx, bson.M{"name": username}); err != nil {
		return apperrors.Storage("delete personal group failed", err)
	}
	pull := bson.M{"$pull": bson.M{"published_in": username}}
	for _, coll := range []string{CollBenchmarks, CollArtifactsMeta, CollEpisodes} {
		if _, err := u.db.Collection(coll).UpdateMany(ctx, bson.M{}, pull); err != nil {
			return apperrors.Storage("unpublish personal scope failed", err)
		}
	}

	logger.Database().Info().Str("username", username).Msg("user deleted with cascade")
	return nil
}
