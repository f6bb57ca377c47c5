package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

type staticRoles struct {
	roles []models.UserRole
}

func (s staticRoles) ListRoles(_ context.Context) ([]models.UserRole, error) {
	return s.roles, nil
}

func testEvaluator() *access.Evaluator {
	return access.NewEvaluator(staticRoles{roles: []models.UserRole{
		{Role: models.RoleAdmin, Rights: models.AllRights.Names()},
		{Role: models.RoleGuest, Rights: []string{"ARTIFACT_READ", "BENCHMARK_READ", "EPISODE_READ"}},
		{Role: models.RoleContentAdmin, Rights: []string{
			"ARTIFACT_READ", "BENCHMARK_READ", "EPISODE_READ",
			"ARTIFACT_CREATE", "BENCHMARK_CREATE", "EPISODE_CREATE",
			"ARTIFACT_DELETE", "BENCHMARK_DELETE", "EPISODE_DELETE",
		}},
	}})
}

func signupUser(username string) *models.User {
	return &models.User{
		Username: username,
		Memberships: []models.Membership{
			{Group: models.GlobalGroup, Roles: []string{models.RoleGuest}},
			{Group: username, Roles: []string{models.RoleAdmin}},
		},
	}
}

func TestCheckDelete_OwnerAlwaysAllowed(t *testing.T) {
	eval := testEvaluator()
	alice := signupUser("alice")

	// Even a benchmark published beyond the personal scope stays
	// deletable by its owner.
	err := checkDelete(context.Background(), eval, alice, models.RightBenchmarkDelete,
		"alice", []string{"alice", models.GlobalGroup})
	assert.NoError(t, err)
}

func TestCheckDelete_NonOwnerDenied(t *testing.T) {
	eval := testEvaluator()
	bob := signupUser("bob")

	err := checkDelete(context.Background(), eval, bob, models.RightBenchmarkDelete,
		"alice", []string{"alice", models.GlobalGroup})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)

	// Unpublished resources of others are never deletable.
	err = checkDelete(context.Background(), eval, bob, models.RightBenchmarkDelete, "alice", nil)
	require.Error(t, err)
}

func TestCheckDelete_NonOwnerNeedsRightInEveryScope(t *testing.T) {
	eval := testEvaluator()
	bob := signupUser("bob")
	bob.Memberships = append(bob.Memberships, models.Membership{
		Group: "team", Roles: []string{models.RoleContentAdmin},
	})

	// Right held in the only publication scope: allowed.
	err := checkDelete(context.Background(), eval, bob, models.RightArtifactDelete,
		"alice", []string{"team"})
	assert.NoError(t, err)

	// A second scope without the right blocks the deletion.
	err = checkDelete(context.Background(), eval, bob, models.RightArtifactDelete,
		"alice", []string{"team", "other"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)
}

func TestCheckDelete_GlobalAdminBypass(t *testing.T) {
	eval := testEvaluator()
	admin := &models.User{
		Username: "admin",
		Memberships: []models.Membership{
			{Group: models.GlobalGroup, Roles: []string{models.RoleAdmin}},
		},
	}

	err := checkDelete(context.Background(), eval, admin, models.RightBenchmarkDelete,
		"alice", []string{"alice", "team"})
	assert.NoError(t, err)
}
