package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telemed-api/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:    "user-1",
		Name:  "Pat",
		Email: "pat@example.test",
		Role:  model.RolePatient,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	token, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "pat@example.test", claims.Email)
	assert.Equal(t, model.RolePatient, claims.Role)
	assert.Equal(t, "Pat", claims.Name)
}

func TestRefreshTokenUsesSeparateSecret(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	refresh, err := svc.GenerateRefreshToken(testUser())
	require.NoError(t, err)

	// A refresh token is not an access token.
	_, err = svc.ValidateToken(refresh)
	assert.Error(t, err)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", -time.Minute, time.Hour)

	token, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTamperedTokenRejected(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", time.Hour, time.Hour)
	other := NewJWTService("different-secret", "refresh-secret", time.Hour, time.Hour)

	token, err := other.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
