// Package handlers provides the HTTP handlers for the BenchVault API.
//
// Handlers orchestrate but do not decide: they bind the request, ask the
// rights evaluator for an authorization verdict, call into the stores,
// and serialize the result. Errors leave every layer typed and are
// converted to status codes only here, as {"detail": "<message>"} bodies.
package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/auth"
	"github.com/benchvault/benchvault/internal/logger"
	"github.com/benchvault/benchvault/internal/models"
)

// respondError maps a typed error to its HTTP status and detail body.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	if appErr.Kind == apperrors.KindStorage {
		logger.HTTP().Error().Err(appErr).Str("path", c.Request.URL.Path).Msg("storage failure")
	}
	c.JSON(appErr.Status(), appErr.Response())
}

// respondValidation reports a malformed request body.
func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, apperrors.Validation(err.Error()).Response())
}

// respondDeleted finishes an idempotent delete: NotFound counts as
// success, every other error propagates.
func respondDeleted(c *gin.Context, err error) {
	if err != nil && !apperrors.IsNotFound(err) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// caller returns the authenticated user or aborts with 401. The auth
// middleware populates it on every protected route, so a miss here means
// a wiring error rather than a user mistake.
func caller(c *gin.Context) (*models.User, bool) {
	user, ok := auth.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apperrors.Unauthorized("not authenticated").Response())
		return nil, false
	}
	return user, true
}

// bindFilter reads an optional filter tree from the request body. Empty
// bodies, null and {} all mean "no filter".
func bindFilter(c *gin.Context) (*models.Filter, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondValidation(c, err)
		return nil, false
	}
	filter, err := models.ParseFilter(bytes.TrimSpace(body))
	if err != nil {
		respondValidation(c, err)
		return nil, false
	}
	return filter, true
}

// checkDelete authorizes a resource deletion. The owner path always
// applies (right held in the personal group); non-owners must hold the
// right in every current publication scope; a global admin passes
// unconditionally.
func checkDelete(ctx context.Context, eval *access.Evaluator, user *models.User, right models.Right, createdBy string, publishedIn []string) error {
	if access.IsGlobalAdmin(user) {
		return nil
	}
	if createdBy == user.Username {
		return eval.CheckScope(ctx, user, right, user.Username)
	}
	if len(publishedIn) == 0 {
		return apperrors.Forbidden("missing right " + right.String())
	}
	for _, group := range publishedIn {
		if err := eval.CheckScope(ctx, user, right, group); err != nil {
			return err
		}
	}
	return nil
}

// requiredQuery fetches a query parameter, responding 422 when absent.
func requiredQuery(c *gin.Context, name string) (string, bool) {
	value := c.Query(name)
	if value == "" {
		c.JSON(http.StatusUnprocessableEntity,
			apperrors.Validation("missing query parameter "+name).Response())
		return "", false
	}
	return value, true
}
