// Package access implements the rights evaluator: given an authenticated
// caller, a required right, and a target (a concrete resource or a
// publication scope), it decides allow or deny.
//
// The decision procedure for resource-scoped actions:
//
//  1. Build the caller's effective rights: for every group in the caller's
//     memberships plus the implicit global membership (guest role), the
//     union of the rights of every role held there, indexed by group.
//  2. Ownership path: if the caller created the resource, grant when the
//     caller holds the right in their personal group (the group named
//     after the username).
//  3. Scope path: grant when any group in published_in ∩ memberships
//     carries the right.
//  4. A caller holding the built-in admin role in global passes every
//     check unconditionally.
//
// List queries do not evaluate per-document: the evaluator emits a scope
// summary (ReadScope) that the storage layer pushes into the backend query
// so pagination stays correct.
package access

import (
	"context"
	"fmt"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// RoleSource provides role definitions. Implemented by the identity store.
type RoleSource interface {
	ListRoles(ctx context.Context) ([]models.UserRole, error)
}

// Evaluator decides authorization questions. It owns no persistent state;
// role definitions are read through the RoleSource on each evaluation.
type Evaluator struct {
	roles RoleSource
}

// NewEvaluator creates an evaluator backed by a role source.
func NewEvaluator(roles RoleSource) *Evaluator {
	return &Evaluator{roles: roles}
}

// ReadScope summarizes what a caller may see for one right. The storage
// layer translates it into an authorization predicate on list queries.
type ReadScope struct {
	// Everything short-circuits all filtering (global admin).
	Everything bool
	// Owned grants the caller's own rows (ownership path holds).
	Owned bool
	// Groups are the publication scopes in which the right is held.
	Groups []string
}

func (e *Evaluator) roleRights(ctx context.Context) (map[string]models.RightSet, error) {
	roles, err := e.roles.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	m := make(map[string]models.RightSet, len(roles))
	for _, r := range roles {
		m[r.Role] = r.RightSet()
	}
	return m, nil
}

// EffectiveRights computes the caller's rights per group: the union over
// every held role, with the implicit guest membership in global folded in.
func (e *Evaluator) EffectiveRights(ctx context.Context, caller *models.User) (map[string]models.RightSet, error) {
	rights, err := e.roleRights(ctx)
	if err != nil {
		return nil, err
	}

	effective := map[string]models.RightSet{
		models.GlobalGroup: rights[models.RoleGuest],
	}
	for _, m := range caller.Memberships {
		set := effective[m.Group]
		for _, role := range m.Roles {
			set = set.Union(rights[role])
		}
		effective[m.Group] = set
	}
	return effective, nil
}

// IsGlobalAdmin reports whether the caller holds the built-in admin role
// in the global group.
func IsGlobalAdmin(caller *models.User) bool {
	m, ok := caller.MembershipIn(models.GlobalGroup)
	if !ok {
		return false
	}
	for _, role := range m.Roles {
		if role == models.RoleAdmin {
			return true
		}
	}
	return false
}

// CheckResource authorizes an action requiring right on a concrete
// resource, identified by its creator and publication scopes.
func (e *Evaluator) CheckResource(ctx context.Context, caller *models.User, right models.Right, createdBy string, publishedIn []string) error {
	if caller == nil {
		return apperrors.Unauthorized("not authenticated")
	}
	if IsGlobalAdmin(caller) {
		return nil
	}

	effective, err := e.EffectiveRights(ctx, caller)
	if err != nil {
		return apperrors.Storage("rights evaluation failed", err)
	}

	// Ownership path: the personal group carries the owner's rights.
	if createdBy == caller.Username && effective[caller.Username].Has(right) {
		return nil
	}

	// Scope path: any shared publication scope granting the right.
	for _, group := range publishedIn {
		if effective[group].Has(right) {
			return nil
		}
	}
	return apperrors.Forbidden(fmt.Sprintf("missing right %s", right))
}

// CheckScope authorizes publish/unpublish-style actions targeting a
// single publication scope.
func (e *Evaluator) CheckScope(ctx context.Context, caller *models.User, right models.Right, group string) error {
	if caller == nil {
		return apperrors.Unauthorized("not authenticated")
	}
	if IsGlobalAdmin(caller) {
		return nil
	}

	effective, err := e.EffectiveRights(ctx, caller)
	if err != nil {
		return apperrors.Storage("rights evaluation failed", err)
	}
	if effective[group].Has(right) {
		return nil
	}
	return apperrors.Forbidden(fmt.Sprintf("missing right %s in group %s", right, group))
}

// CheckAny authorizes actions that only require the caller to hold a
// right somewhere — in any group of their memberships (the implicit
// global guest membership included), regardless of the target resource's
// publication scopes. Recording an episode needs BENCHMARK_READ in this
// blanket sense: referencing a benchmark by id does not reveal its
// contents.
func (e *Evaluator) CheckAny(ctx context.Context, caller *models.User, right models.Right) error {
	if caller == nil {
		return apperrors.Unauthorized("not authenticated")
	}
	if IsGlobalAdmin(caller) {
		return nil
	}

	effective, err := e.EffectiveRights(ctx, caller)
	if err != nil {
		return apperrors.Storage("rights evaluation failed", err)
	}
	for _, set := range effective {
		if set.Has(right) {
			return nil
		}
	}
	return apperrors.Forbidden(fmt.Sprintf("missing right %s", right))
}

// CheckGlobal authorizes actions that are not scoped to a resource or
// group, such as user and role administration. The right must be held in
// the global group.
func (e *Evaluator) CheckGlobal(ctx context.Context, caller *models.User, right models.Right) error {
	return e.CheckScope(ctx, caller, right, models.GlobalGroup)
}

// Readable computes the caller's visibility for list queries on the given
// right (normally a *_READ right).
func (e *Evaluator) Readable(ctx context.Context, caller *models.User, right models.Right) (ReadScope, error) {
	if caller == nil {
		return ReadScope{}, apperrors.Unauthorized("not authenticated")
	}
	if IsGlobalAdmin(caller) {
		return ReadScope{Everything: true}, nil
	}

	effective, err := e.EffectiveRights(ctx, caller)
	if err != nil {
		return ReadScope{}, apperrors.Storage("rights evaluation failed", err)
	}

	scope := ReadScope{Owned: effective[caller.Username].Has(right)}
	for group, set := range effective {
		if set.Has(right) {
			scope.Groups = append(scope.Groups, group)
		}
	}
	return scope, nil
}
