// This file implements authentication and identity administration:
// login/refresh, signup, user management, roles, and groups.
//
// API Endpoints:
//   - POST   /access/users/token - Password login, returns token pair
//   - POST   /access/users/refresh-token - Trade refresh token for access token
//   - POST   /access/signup - Self-service registration (unauthenticated)
//   - POST   /access/users/create - Admin user creation
//   - DELETE /access/users/delete?username= - Delete user (cascading)
//   - PUT    /access/users/change-password - Self-service or admin
//   - GET    /access/users/list - List users
//   - POST   /access/roles/create | DELETE /access/roles/delete?role_name= | GET /access/roles/list
//   - POST   /access/groups/create | DELETE /access/groups/delete?group_name=
//   - GET    /access/groups/list | GET /access/groups/read?group_name=
//   - POST   /access/groups/add-members | POST /access/groups/remove-members
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/auth"
	"github.com/benchvault/benchvault/internal/db"
	"github.com/benchvault/benchvault/internal/logger"
	"github.com/benchvault/benchvault/internal/models"
	"github.com/benchvault/benchvault/internal/validator"
)

// AccessHandler handles authentication and identity requests.
type AccessHandler struct {
	userDB  *db.UserDB
	roleDB  *db.RoleDB
	groupDB *db.GroupDB
	jwt     *auth.JWTManager
	eval    *access.Evaluator
}

// NewAccessHandler creates a new access handler.
func NewAccessHandler(userDB *db.UserDB, roleDB *db.RoleDB, groupDB *db.GroupDB, jwt *auth.JWTManager, eval *access.Evaluator) *AccessHandler {
	return &AccessHandler{
		userDB:  userDB,
		roleDB:  roleDB,
		groupDB: groupDB,
		jwt:     jwt,
		eval:    eval,
	}
}

// RegisterPublicRoutes registers the unauthenticated endpoints.
func (h *AccessHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/access/users/token", h.Login)
	router.POST("/access/users/refresh-token", h.RefreshToken)
	router.POST("/access/signup", h.Signup)
}

// RegisterRoutes registers the authenticated endpoints.
func (h *AccessHandler) RegisterRoutes(router *gin.RouterGroup) {
	accessRoutes := router.Group("/access")
	{
		accessRoutes.POST("/users/create", h.CreateUser)
		accessRoutes.DELETE("/users/delete", h.DeleteUser)
		accessRoutes.PUT("/users/change-password", h.ChangePassword)
		accessRoutes.GET("/users/list", h.ListUsers)

		accessRoutes.POST("/roles/create", h.CreateRole)
		accessRoutes.DELETE("/roles/delete", h.DeleteRole)
		accessRoutes.GET("/roles/list", h.ListRoles)

		accessRoutes.POST("/groups/create", h.CreateGroup)
		accessRoutes.DELETE("/groups/delete", h.DeleteGroup)
		accessRoutes.GET("/groups/list", h.ListGroups)
		accessRoutes.GET("/groups/read", h.ReadGroup)
		accessRoutes.POST("/groups/add-members", h.AddMembers)
		accessRoutes.POST("/groups/remove-members", h.RemoveMembers)
	}
}

// Login verifies credentials and issues an access/refresh token pair.
func (h *AccessHandler) Login(c *gin.Context) {
	var req models.UserCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	user, err := h.userDB.VerifyCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		logger.Security().Warn().Str("username", req.Username).Msg("login failed")
		respondError(c, err)
		return
	}

	accessToken, refreshToken, err := h.jwt.GenerateTokenPair(user.Username)
	if err != nil {
		respondError(c, apperrors.Storage("token generation failed", err))
		return
	}

	c.JSON(http.StatusOK, models.TokenPair{
		AccessToken:  models.Token{Token: accessToken, TokenType: "bearer"},
		RefreshToken: models.Token{Token: refreshToken, TokenType: "bearer"},
	})
}

// RefreshToken trades a refresh token for a new access token. Access
// tokens are rejected here; only the refresh type is accepted.
func (h *AccessHandler) RefreshToken(c *gin.Context) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		respondError(c, err)
		return
	}

	claims, err := h.jwt.ValidateToken(token, auth.TokenTypeRefresh)
	if err != nil {
		respondError(c, err)
		return
	}

	// The subject must still exist; a refresh token for a deleted user is
	// worthless.
	if _, err := h.userDB.GetUser(c.Request.Context(), claims.Subject); err != nil {
		respondError(c, apperrors.Unauthorized("unknown user"))
		return
	}

	accessToken, err := h.jwt.GenerateToken(claims.Subject, auth.TokenTypeAccess)
	if err != nil {
		respondError(c, apperrors.Storage("token generation failed", err))
		return
	}
	c.JSON(http.StatusOK, models.Token{Token: accessToken, TokenType: "bearer"})
}

// Signup registers a new user with guest rights. Unauthenticated.
func (h *AccessHandler) Signup(c *gin.Context) {
	var req models.UserCredentials
	if !validator.BindAndValidate(c, &req) {
		return
	}
	if req.Username == models.GlobalGroup {
		respondError(c, apperrors.Conflict("User already exists"))
		return
	}

	user, err := h.userDB.CreateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Out())
}

// CreateUser registers a user on behalf of an administrator.
func (h *AccessHandler) CreateUser(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	if err := h.eval.CheckGlobal(c.Request.Context(), user, models.RightUserCreate); err != nil {
		respondError(c, err)
		return
	}

	var req models.UserCredentials
	if !validator.BindAndValidate(c, &req) {
		return
	}
	if req.Username == models.GlobalGroup {
		respondError(c, apperrors.Conflict("User already exists"))
		return
	}

	created, err := h.userDB.CreateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, created.Out())
}

// DeleteUser removes a user and cascades per the publication rules.
// Idempotent: deleting a missing user succeeds.
func (h *AccessHandler) DeleteUser(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	username, ok := requiredQuery(c, "username")
	if !ok {
		return
	}
	if err := h.eval.CheckGlobal(c.Request.Context(), user, models.RightUserDelete); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, h.userDB.DeleteUser(c.Request.Context(), username))
}

// ChangePassword updates a password. Users may change their own; changing
// another user's password requires USER_UPDATE.
func (h *AccessHandler) ChangePassword(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}

	var req models.UserCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if req.Username != user.Username {
		if err := h.eval.CheckGlobal(c.Request.Context(), user, models.RightUserUpdate); err != nil {
			respondError(c, err)
			return
		}
	}

	if err := h.userDB.ChangePassword(c.Request.Context(), req.Username, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// ListUsers returns every user without credential material.
func (h *AccessHandler) ListUsers(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	if err := h.eval.CheckGlobal(c.Request.Context(), user, models.RightUserRead); err != nil {
		respondError(c, err)
		return
	}

	users, err := h.userDB.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]models.UserOut, 0, len(users))
	for i := range users {
		out = append(out, users[i].Out())
	}
	c.JSON(http.StatusOK, out)
}

// CreateRole stores a new role definition.
func (h *AccessHandler) CreateRole(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	if err := h.eval.CheckGlobal(c.Request.Context(), user, models.RightRoleCreate); err != nil {
		respondError(c, err)
		return
	}

	var role models.UserRole
	if err := c.ShouldBindJSON(&role); err != nil {
		respondValidation(c, err)
		return
	}
	if role.Role == "" {
		respondValidation(c, apperrors.Validation("role name required"))
		return
	}

	created, err := h.roleDB.CreateRole(c.Request.Context(), role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

// DeleteRole removes a role and strips it from all memberships.
func (h *AccessHandler) DeleteRole(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	name, ok := requiredQuery(c, "role_name")
	if !ok {
		return
	}
	if err := h.eval.CheckGlobal(c.Request.Context(), user, models.RightRoleDelete); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, h.roleDB.DeleteRole(c.Request.Context(), name))
}

// ListRoles returns every role definition.
func (h *AccessHandler) ListRoles(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	if err := h.eval.CheckGlobal(c.Request.Context(), user, models.RightRoleRead); err != nil {
		respondError(c, err)
		return
	}

	roles, err := h.roleDB.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// CreateGroup stores a group and makes the caller its admin. Any
// authenticated user may create groups (they become publication scopes
// under the creator's control).
func (h *AccessHandler) CreateGroup(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}

	var group models.Group
	if err := c.ShouldBindJSON(&group); err != nil {
		respondValidation(c, err)
		return
	}
	if group.Name == "" {
		respondValidation(c, apperrors.Validation("group name required"))
		return
	}
	if group.Name == models.GlobalGroup {
		respondError(c, apperrors.Conflict("Group already exists"))
		return
	}

	created, err := h.groupDB.CreateGroup(c.Request.Context(), group, user.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

// DeleteGroup removes a group. Reserved scopes (global and personal
// groups) cannot be deleted.
func (h *AccessHandler) DeleteGroup(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	name, ok := requiredQuery(c, "group_name")
	if !ok {
		return
	}
	if name == models.GlobalGroup {
		respondError(c, apperrors.Forbidden("reserved group cannot be deleted"))
		return
	}
	if _, err := h.userDB.GetUser(c.Request.Context(), name); err == nil {
		respondError(c, apperrors.Forbidden("personal group cannot be deleted"))
		return
	}
	if err := h.eval.CheckScope(c.Request.Context(), user, models.RightGroupDelete, name); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, h.groupDB.DeleteGroup(c.Request.Context(), name))
}

// ListGroups returns the groups visible to the caller: memberships plus
// global, or everything for a global admin.
func (h *AccessHandler) ListGroups(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	groups, err := h.groupDB.ListGroupsVisibleTo(c.Request.Context(), user, access.IsGlobalAdmin(user))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// ReadGroup returns a group with its members. Requires GROUP_READ within
// that group; the rights check runs before existence so outsiders cannot
// probe group names.
func (h *AccessHandler) ReadGroup(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	name, ok := requiredQuery(c, "group_name")
	if !ok {
		return
	}
	if err := h.eval.CheckScope(c.Request.Context(), user, models.RightGroupRead, name); err != nil {
		respondError(c, err)
		return
	}

	group, err := h.groupDB.ReadGroup(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// AddMembers sets users' role lists within a group (replace semantics).
func (h *AccessHandler) AddMembers(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}

	var req models.GroupMembershipQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if err := h.eval.CheckScope(c.Request.Context(), user, models.RightGroupUpdate, req.GroupName); err != nil {
		respondError(c, err)
		return
	}

	if err := h.groupDB.AddMembers(c.Request.Context(), req.GroupName, req.Members); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// RemoveMembers drops users' memberships in a group (tolerant).
func (h *AccessHandler) RemoveMembers(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}

	var req models.GroupRemoveMembersQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if err := h.eval.CheckScope(c.Request.Context(), user, models.RightGroupUpdate, req.GroupName); err != nil {
		respondError(c, err)
		return
	}

	if err := h.groupDB.RemoveMembers(c.Request.Context(), req.GroupName, req.Members); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
