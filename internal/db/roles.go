package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// RoleDB handles database operations for roles.
type RoleDB struct {
	db *mongo.Database
}

// NewRoleDB creates a new RoleDB instance.
func NewRoleDB(db *mongo.Database) *RoleDB {
	return &RoleDB{db: db}
}

func (r *RoleDB) roles() *mongo.Collection {
	return r.db.Collection(CollRoles)
}

// CreateRole stores a role after validating every right name against the
// closed enumeration.
func (r *RoleDB) CreateRole(ctx context.Context, role models.UserRole) (*models.UserRole, error) {
	if _, err := models.ParseRights(role.Rights); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if _, err := r.roles().InsertOne(ctx, role); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("Role already exists")
		}
		return nil, apperrors.Storage("create role failed", err)
	}
	return &role, nil
}

// DeleteRole removes a role and strips it from every user's memberships.
// Idempotent: a missing role is a success.
func (r *RoleDB) DeleteRole(ctx context.Context, name string) error {
	if _, err := r.roles().DeleteOne(ctx, bson.M{"role": name}); err != nil {
		return apperrors.Storage("delete role failed", err)
	}
	_, err := r.db.Collection(CollUsers).UpdateMany(ctx,
		bson.M{"memberships.roles": name},
		bson.M{"$pull": bson.M{"memberships.$[].roles": name}},
	)
	if err != nil {
		return apperrors.Storage("strip role from memberships failed", err)
	}
	return nil
}

// GetRole retrieves a role by name.
func (r *RoleDB) GetRole(ctx context.Context, name string) (*models.UserRole, error) {
	var role models.UserRole
	err := r.roles().FindOne(ctx, bson.M{"role": name}).Decode(&role)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("Role not found")
		}
		return nil, apperrors.Storage("load role failed", err)
	}
	return &role, nil
}

// ListRoles retrieves all roles.
func (r *RoleDB) ListRoles(ctx context.Context) ([]models.UserRole, error) {
	cur, err := r.roles().Find(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.Storage("list roles failed", err)
	}
	defer cur.Close(ctx)

	roles := []models.UserRole{}
	if err := cur.All(ctx, &roles); err != nil {
		return nil, apperrors.Storage("decode roles failed", err)
	}
	return roles, nil
}

// EnsureBuiltinRoles provisions the built-in roles on first boot. Existing
// rows are left untouched so operators can tighten them.
func (r *RoleDB) EnsureBuiltinRoles(ctx context.Context) error {
	resourceRead := []string{"ARTIFACT_READ", "BENCHMARK_READ", "EPISODE_READ"}
	resourceCreate := []string{"ARTIFACT_CREATE", "BENCHMARK_CREATE", "EPISODE_CREATE"}
	resourceDelete := []string{"ARTIFACT_DELETE", "BENCHMARK_DELETE", "EPISODE_DELETE"}

	builtins := []models.UserRole{
		{
			Role:        models.RoleAdmin,
			Description: "full administrative access",
			Rights:      models.AllRights.Names(),
		},
		{
			Role:        models.RoleContentAdmin,
			Description: "create and delete any resource kind",
			Rights: concat(resourceRead, resourceCreate, resourceDelete,
				[]string{"USER_READ", "GROUP_READ", "ROLE_READ"}),
		},
		{
			Role:        models.RoleContributor,
			Description: "read and create resources",
			Rights:      concat(resourceRead, resourceCreate),
		},
		{
			Role:        models.RoleGuest,
			Description: "read-only resource access",
			Rights:      resourceRead,
		},
	}

	for _, role := range builtins {
		_, err := r.roles().UpdateOne(ctx,
			bson.M{"role": role.Role},
			bson.M{"$setOnInsert": role},
			optionsUpsert(),
		)
		if err != nil {
			return apperrors.Storage("provision builtin roles failed", err)
		}
	}
	return nil
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
