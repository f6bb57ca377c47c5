package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/logger"
	"github.com/benchvault/benchvault/internal/models"
)

// Bootstrap provisions first-boot state: indexes, built-in roles, the
// global group, and the administrator account. Re-running is a no-op for
// anything that already exists.
func Bootstrap(ctx context.Context, database *mongo.Database, adminUsername, adminPassword string) error {
	if err := EnsureIndexes(ctx, database); err != nil {
		return err
	}
	if err := NewRoleDB(database).EnsureBuiltinRoles(ctx); err != nil {
		return err
	}

	// The global group row exists so reads and membership listings can
	// treat it like any other group.
	_, err := database.Collection(CollGroups).UpdateOne(ctx,
		bson.M{"name": models.GlobalGroup},
		bson.M{"$setOnInsert": models.Group{
			Name:        models.GlobalGroup,
			Description: "implicit scope containing every user",
			CreatedAt:   time.Now().UTC(),
		}},
		optionsUpsert(),
	)
	if err != nil {
		return apperrors.Storage("provision global group failed", err)
	}

	userDB := NewUserDB(database)
	if _, err := userDB.GetUser(ctx, adminUsername); err == nil {
		return nil
	}

	if _, err := userDB.CreateUser(ctx, adminUsername, adminPassword); err != nil {
		return err
	}
	// Promote the bootstrap account: admin role in the global scope.
	_, err = database.Collection(CollUsers).UpdateOne(ctx,
		bson.M{"username": adminUsername, "memberships.group": models.GlobalGroup},
		bson.M{"$set": bson.M{"memberships.$.roles": []string{models.RoleAdmin}}},
	)
	if err != nil {
		return apperrors.Storage("promote admin failed", err)
	}

	logger.Database().Info().Str("username", adminUsername).Msg("bootstrap admin created")
	return nil
}
