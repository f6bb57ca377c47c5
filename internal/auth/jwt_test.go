package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager(&JWTConfig{
		SecretKey:  "test-secret-key-at-least-32-bytes!!",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
}

func TestGenerateTokenPair_Validates(t *testing.T) {
	manager := newTestManager()

	access, refresh, err := manager.GenerateTokenPair("alice")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := manager.ValidateToken(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	claims, err = manager.ValidateToken(refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestValidateToken_TypeDiscipline(t *testing.T) {
	manager := newTestManager()
	access, refresh, err := manager.GenerateTokenPair("alice")
	require.NoError(t, err)

	// A refresh token is not an access token and vice versa.
	_, err = manager.ValidateToken(refresh, TokenTypeAccess)
	assert.Error(t, err)
	_, err = manager.ValidateToken(access, TokenTypeRefresh)
	assert.Error(t, err)
}

func TestValidateToken_WrongSignature(t *testing.T) {
	manager := newTestManager()
	other := NewJWTManager(&JWTConfig{SecretKey: "a-completely-different-secret-key!!!"})

	token, err := other.GenerateToken("alice", TokenTypeAccess)
	require.NoError(t, err)

	_, err = manager.ValidateToken(token, TokenTypeAccess)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	manager := NewJWTManager(&JWTConfig{
		SecretKey: "test-secret-key-at-least-32-bytes!!",
		AccessTTL: -time.Minute,
	})

	token, err := manager.GenerateToken("alice", TokenTypeAccess)
	require.NoError(t, err)

	_, err = manager.ValidateToken(token, TokenTypeAccess)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	manager := newTestManager()
	_, err := manager.ValidateToken("not.a.token", TokenTypeAccess)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	// Scheme is case-insensitive.
	token, err = BearerToken("bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	for _, header := range []string{"", "abc123", "Basic abc123", "API-Token abc"} {
		_, err := BearerToken(header)
		assert.Error(t, err, "header %q", header)
	}
}

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("test1234")
	require.NoError(t, err)
	assert.NotEqual(t, "test1234", hash)

	assert.True(t, VerifyPassword(hash, "test1234"))
	assert.False(t, VerifyPassword(hash, "test12345"))
	assert.False(t, VerifyPassword("", "test1234"))
}

func TestHashPassword_Salted(t *testing.T) {
	first, err := HashPassword("test1234")
	require.NoError(t, err)
	second, err := HashPassword("test1234")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
