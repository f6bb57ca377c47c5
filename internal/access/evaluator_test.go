package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// staticRoles is a RoleSource over a fixed role list.
type staticRoles struct {
	roles []models.UserRole
}

func (s staticRoles) ListRoles(_ context.Context) ([]models.UserRole, error) {
	return s.roles, nil
}

func builtinRoles() staticRoles {
	return staticRoles{roles: []models.UserRole{
		{Role: models.RoleAdmin, Rights: models.AllRights.Names()},
		{Role: models.RoleGuest, Rights: []string{"ARTIFACT_READ", "BENCHMARK_READ", "EPISODE_READ"}},
		{Role: models.RoleContributor, Rights: []string{
			"ARTIFACT_READ", "BENCHMARK_READ", "EPISODE_READ",
			"ARTIFACT_CREATE", "BENCHMARK_CREATE", "EPISODE_CREATE",
		}},
	}}
}

// standardUser mirrors what signup provisions: guest in global, admin in
// the personal group.
func standardUser(username string) *models.User {
	return &models.User{
		Username: username,
		Memberships: []models.Membership{
			{Group: models.GlobalGroup, Roles: []string{models.RoleGuest}},
			{Group: username, Roles: []string{models.RoleAdmin}},
		},
	}
}

func adminUser() *models.User {
	return &models.User{
		Username: "admin",
		Memberships: []models.Membership{
			{Group: models.GlobalGroup, Roles: []string{models.RoleAdmin}},
			{Group: "admin", Roles: []string{models.RoleAdmin}},
		},
	}
}

func TestCheckResource_OwnershipPath(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	alice := standardUser("alice")

	// Owner reads an unpublished resource via the personal group.
	err := eval.CheckResource(context.Background(), alice, models.RightBenchmarkRead, "alice", []string{"alice"})
	assert.NoError(t, err)

	// Owner deletes the same resource: personal-group admin carries it.
	err = eval.CheckResource(context.Background(), alice, models.RightBenchmarkDelete, "alice", []string{"alice"})
	assert.NoError(t, err)
}

func TestCheckResource_ScopePath(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	bob := standardUser("bob")

	// Published in global: every user reads it through the implicit guest
	// membership.
	err := eval.CheckResource(context.Background(), bob, models.RightBenchmarkRead, "alice", []string{"alice", models.GlobalGroup})
	assert.NoError(t, err)

	// Unpublished beyond the owner's personal scope: invisible to others.
	err = eval.CheckResource(context.Background(), bob, models.RightBenchmarkRead, "alice", []string{"alice"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)
}

func TestCheckResource_GroupMembershipGrants(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	bob := standardUser("bob")
	bob.Memberships = append(bob.Memberships, models.Membership{
		Group: "team", Roles: []string{models.RoleContributor},
	})

	err := eval.CheckResource(context.Background(), bob, models.RightArtifactRead, "alice", []string{"alice", "team"})
	assert.NoError(t, err)

	// Contributor membership does not grant deletion.
	err = eval.CheckResource(context.Background(), bob, models.RightArtifactDelete, "alice", []string{"alice", "team"})
	assert.Error(t, err)
}

func TestCheckResource_GlobalAdminBypass(t *testing.T) {
	eval := NewEvaluator(builtinRoles())

	err := eval.CheckResource(context.Background(), adminUser(), models.RightBenchmarkDelete, "alice", []string{"alice"})
	assert.NoError(t, err)
}

func TestCheckResource_NoCaller(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	err := eval.CheckResource(context.Background(), nil, models.RightBenchmarkRead, "alice", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.As(err).Kind)
}

func TestCheckScope_PublishRights(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	alice := standardUser("alice")

	// Creating into the personal scope is always within reach.
	assert.NoError(t, eval.CheckScope(context.Background(), alice, models.RightBenchmarkCreate, "alice"))

	// A guest cannot publish into global.
	err := eval.CheckScope(context.Background(), alice, models.RightBenchmarkCreate, models.GlobalGroup)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)

	// Contributor membership in a team unlocks publication there.
	alice.Memberships = append(alice.Memberships, models.Membership{
		Group: "team", Roles: []string{models.RoleContributor},
	})
	assert.NoError(t, eval.CheckScope(context.Background(), alice, models.RightBenchmarkCreate, "team"))
}

func TestCheckAny_BlanketCapability(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	bob := standardUser("bob")

	// The implicit guest membership in global already carries read
	// rights, so any signed-up user passes the blanket check — even for
	// benchmarks they cannot see.
	assert.NoError(t, eval.CheckAny(context.Background(), bob, models.RightBenchmarkRead))

	// A guest-only caller (no personal-group admin) holds create rights
	// nowhere.
	guestOnly := &models.User{
		Username: "visitor",
		Memberships: []models.Membership{
			{Group: models.GlobalGroup, Roles: []string{models.RoleGuest}},
		},
	}
	err := eval.CheckAny(context.Background(), guestOnly, models.RightBenchmarkCreate)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)

	err = eval.CheckAny(context.Background(), nil, models.RightBenchmarkRead)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.As(err).Kind)
}

func TestCheckGlobal_AdminGates(t *testing.T) {
	eval := NewEvaluator(builtinRoles())

	err := eval.CheckGlobal(context.Background(), standardUser("alice"), models.RightRoleCreate)
	assert.Error(t, err)
	assert.NoError(t, eval.CheckGlobal(context.Background(), adminUser(), models.RightRoleCreate))
}

func TestReadable_Scopes(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	alice := standardUser("alice")
	alice.Memberships = append(alice.Memberships, models.Membership{
		Group: "team", Roles: []string{models.RoleContributor},
	})

	scope, err := eval.Readable(context.Background(), alice, models.RightBenchmarkRead)
	require.NoError(t, err)
	assert.False(t, scope.Everything)
	assert.True(t, scope.Owned)
	assert.ElementsMatch(t, []string{models.GlobalGroup, "alice", "team"}, scope.Groups)
}

func TestReadable_AdminSeesEverything(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	scope, err := eval.Readable(context.Background(), adminUser(), models.RightBenchmarkRead)
	require.NoError(t, err)
	assert.True(t, scope.Everything)
}

func TestEffectiveRights_UnionAcrossRoles(t *testing.T) {
	eval := NewEvaluator(builtinRoles())
	user := standardUser("carol")
	user.Memberships = append(user.Memberships, models.Membership{
		Group: "team", Roles: []string{models.RoleGuest, models.RoleContributor},
	})

	rights, err := eval.EffectiveRights(context.Background(), user)
	require.NoError(t, err)

	assert.True(t, rights["team"].Has(models.RightBenchmarkCreate))
	assert.True(t, rights["team"].Has(models.RightBenchmarkRead))
	assert.True(t, rights[models.GlobalGroup].Has(models.RightBenchmarkRead))
	assert.False(t, rights[models.GlobalGroup].Has(models.RightBenchmarkCreate))
	assert.True(t, rights["carol"].Has(models.RightGroupDelete))
}
