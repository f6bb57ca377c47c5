// Package auth provides authentication for the BenchVault API: JWT
// issuing and validation (HMAC-SHA256), bcrypt password hashing, and the
// gin middleware that resolves the Authorization header into a caller.
//
// Two token types are issued on login:
//   - access: short-lived (default 15 minutes), accepted by every
//     authenticated endpoint except the refresh endpoint
//   - refresh: long-lived (default 7 days), accepted only by the refresh
//     endpoint, which trades it for a new access token
//
// Validation rejects a wrong token type, a wrong signature, a non-HMAC
// signing method, and an expired exp. Password changes do not invalidate
// outstanding tokens; that limitation is documented in the project README.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/benchvault/benchvault/internal/apperrors"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTConfig holds JWT settings.
//
// SECURITY: SecretKey must be cryptographically random and at least 256
// bits. Load it from the environment, never from source.
type JWTConfig struct {
	SecretKey  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims are the signed token contents: the standard registered claims
// plus the token type discriminator. The subject is the username.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates tokens.
type JWTManager struct {
	config *JWTConfig
}

// NewJWTManager creates a JWT manager, applying defaults for unset fields.
func NewJWTManager(config *JWTConfig) *JWTManager {
	if config.AccessTTL == 0 {
		config.AccessTTL = 15 * time.Minute
	}
	if config.RefreshTTL == 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "benchvault-api"
	}
	return &JWTManager{config: config}
}

// GenerateToken signs a token of the given type for a username.
func (m *JWTManager) GenerateToken(username, tokenType string) (string, error) {
	now := time.Now()
	ttl := m.config.AccessTTL
	if tokenType == TokenTypeRefresh {
		ttl = m.config.RefreshTTL
	}

	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GenerateTokenPair issues the login response: one access token and one
// refresh token for the username.
func (m *JWTManager) GenerateTokenPair(username string) (access, refresh string, err error) {
	if access, err = m.GenerateToken(username, TokenTypeAccess); err != nil {
		return "", "", err
	}
	if refresh, err = m.GenerateToken(username, TokenTypeRefresh); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ValidateToken verifies signature, expiry and token type, returning the
// claims. All failures map to Unauthorized.
func (m *JWTManager) ValidateToken(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify the signing method to prevent algorithm substitution:
		// reject "none" and asymmetric algorithms outright.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}
	if claims.TokenType != wantType {
		return nil, apperrors.Unauthorized("wrong token type")
	}
	if claims.Subject == "" {
		return nil, apperrors.Unauthorized("token subject missing")
	}
	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}
