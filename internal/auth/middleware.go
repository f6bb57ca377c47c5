package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/logger"
	"github.com/benchvault/benchvault/internal/models"
)

// CallerKey is the gin context key under which the authenticated caller's
// user row (including memberships) is stored.
const CallerKey = "caller"

// UserLoader resolves a username to its stored user row. Implemented by
// the identity store; declared here so the middleware does not depend on
// the db package.
type UserLoader interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
}

// BearerToken extracts the token from an Authorization header. Any scheme
// other than Bearer is rejected.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.Unauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.Unauthorized("authorization scheme must be Bearer")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Middleware validates the access token on every request and loads the
// caller's user row into the context. Refresh tokens are rejected here;
// only the refresh endpoint accepts them (it does its own validation).
func Middleware(jwt *JWTManager, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		claims, err := jwt.ValidateToken(token, TokenTypeAccess)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.Subject)
		if err != nil {
			// A valid token for a deleted user is still unauthorized.
			logger.Security().Warn().
				Str("username", claims.Subject).
				Msg("token subject no longer exists")
			abortUnauthorized(c, apperrors.Unauthorized("unknown user"))
			return
		}

		c.Set(CallerKey, user)
		c.Next()
	}
}

// Caller returns the authenticated user stored by Middleware.
func Caller(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CallerKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func abortUnauthorized(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, appErr.Response())
}
