// This file implements the group side of the identity store.
//
// Groups are publication scopes and the unit of role assignment. The
// reserved names are "global" (implicit membership for every user) and
// each user's personal group. Both exist as rows, so creating a group
// under either name conflicts; this file does not guard deletion of them,
// the group handler refuses it.
package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// GroupDB handles database operations for groups.
type GroupDB struct {
	db *mongo.Database
}

// NewGroupDB creates a new GroupDB instance.
func NewGroupDB(db *mongo.Database) *GroupDB {
	return &GroupDB{db: db}
}

func (g *GroupDB) groups() *mongo.Collection {
	return g.db.Collection(CollGroups)
}

// CreateGroup stores a group and grants the creator the admin role within
// it. Conflicts with existing groups, including personal groups.
func (g *GroupDB) CreateGroup(ctx context.Context, group models.Group, creator string) (*models.Group, error) {
	group.CreatedBy = creator
	group.CreatedAt = time.Now().UTC()

	if _, err := g.groups().InsertOne(ctx, group); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("Group already exists")
		}
		return nil, apperrors.Storage("create group failed", err)
	}

	// Creator becomes group admin. The membership entry replaces any
	// previous entry for the same group.
	if err := g.setMembership(ctx, creator, group.Name, []string{models.RoleAdmin}); err != nil {
		_, _ = g.groups().DeleteOne(ctx, bson.M{"name": group.Name})
		return nil, err
	}
	return &group, nil
}

// GetGroup retrieves a group by name.
func (g *GroupDB) GetGroup(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	err := g.groups().FindOne(ctx, bson.M{"name": name}).Decode(&group)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("Group not found")
		}
		return nil, apperrors.Storage("load group failed", err)
	}
	return &group, nil
}

// DeleteGroup removes a group, strips the membership from every user, and
// pulls the scope from every resource's publication set (equivalent to
// unpublishing). Idempotent: a missing group is a success.
func (g *GroupDB) DeleteGroup(ctx context.Context, name string) error {
	if _, err := g.groups().DeleteOne(ctx, bson.M{"name": name}); err != nil {
		return apperrors.Storage("delete group failed", err)
	}

	_, err := g.db.Collection(CollUsers).UpdateMany(ctx,
		bson.M{"memberships.group": name},
		bson.M{"$pull": bson.M{"memberships": bson.M{"group": name}}},
	)
	if err != nil {
		return apperrors.Storage("strip group memberships failed", err)
	}

	pull := bson.M{"$pull": bson.M{"published_in": name}}
	for _, coll := range []string{CollBenchmarks, CollArtifactsMeta, CollEpisodes} {
		if _, err := g.db.Collection(coll).UpdateMany(ctx, bson.M{}, pull); err != nil {
			return apperrors.Storage("unpublish group scope failed", err)
		}
	}
	return nil
}

// ListGroups retrieves all groups.
func (g *GroupDB) ListGroups(ctx context.Context) ([]models.Group, error) {
	cur, err := g.groups().Find(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.Storage("list groups failed", err)
	}
	defer cur.Close(ctx)

	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, apperrors.Storage("decode groups failed", err)
	}
	return groups, nil
}

// ListGroupsVisibleTo returns the groups the user holds a membership in,
// plus global. Global admins see every group.
func (g *GroupDB) ListGroupsVisibleTo(ctx context.Context, user *models.User, isAdmin bool) ([]models.Group, error) {
	if isAdmin {
		return g.ListGroups(ctx)
	}

	names := []string{models.GlobalGroup}
	for _, m := range user.Memberships {
		if m.Group != models.GlobalGroup {
			names = append(names, m.Group)
		}
	}

	cur, err := g.groups().Find(ctx, bson.M{"name": bson.M{"$in": names}})
	if err != nil {
		return nil, apperrors.Storage("list groups failed", err)
	}
	defer cur.Close(ctx)

	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, apperrors.Storage("decode groups failed", err)
	}
	return groups, nil
}

// ReadGroup returns a group together with its current members and their
// roles, collected from the user collection.
func (g *GroupDB) ReadGroup(ctx context.Context, name string) (*models.GroupWithMembers, error) {
	group, err := g.GetGroup(ctx, name)
	if err != nil {
		return nil, err
	}

	cur, err := g.db.Collection(CollUsers).Find(ctx, bson.M{"memberships.group": name})
	if err != nil {
		return nil, apperrors.Storage("list group members failed", err)
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, apperrors.Storage("decode group members failed", err)
	}

	members := []models.GroupMembership{}
	for _, u := range users {
		if m, ok := u.MembershipIn(name); ok {
			members = append(members, models.GroupMembership{User: u.Username, Roles: m.Roles})
		}
	}
	return &models.GroupWithMembers{Group: *group, Members: members}, nil
}

// AddMembers sets the role lists for the given users within a group.
// Semantics are replace-not-merge: the final state equals the request.
// Missing users or roles yield NotFound; an entry with no roles is a
// no-op.
func (g *GroupDB) AddMembers(ctx context.Context, groupName string, members []models.GroupMembership) error {
	if _, err := g.GetGroup(ctx, groupName); err != nil {
		return err
	}

	roleDB := NewRoleDB(g.db)
	for _, member := range members {
		if len(member.Roles) == 0 {
			continue
		}
		for _, role := range member.Roles {
			if _, err := roleDB.GetRole(ctx, role); err != nil {
				return err
			}
		}
		if err := g.setMembership(ctx, member.User, groupName, member.Roles); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMembers drops the given users' memberships in a group. Tolerant:
// missing users or memberships are a success.
func (g *GroupDB) RemoveMembers(ctx context.Context, groupName string, usernames []string) error {
	if _, err := g.GetGroup(ctx, groupName); err != nil {
		return err
	}
	for _, username := range usernames {
		_, err := g.db.Collection(CollUsers).UpdateOne(ctx,
			bson.M{"username": username},
			bson.M{"$pull": bson.M{"memberships": bson.M{"group": groupName}}},
		)
		if err != nil {
			return apperrors.Storage("remove membership failed", err)
		}
	}
	return nil
}

// setMembership replaces a user's membership entry for one group.
func (g *GroupDB) setMembership(ctx context.Context, username, groupName string, roles []string) error {
	users := g.db.Collection(CollUsers)

	res, err := users.UpdateOne(ctx,
		bson.M{"username": username, "memberships.group": groupName},
		bson.M{"$set": bson.M{"memberships.$.roles": roles}},
	)
	if err != nil {
		return apperrors.Storage("update membership failed", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	res, err = users.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$push": bson.M{"memberships": models.Membership{Group: groupName, Roles: roles}}},
	)
	if err != nil {
		return apperrors.Storage("add membership failed", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("User not found")
	}
	return nil
}
