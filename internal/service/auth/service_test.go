package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/user"
	"github.com/jwalitptl/telemed-api/internal/store/memory"
	pkgauth "github.com/jwalitptl/telemed-api/pkg/auth"
	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
	"github.com/jwalitptl/telemed-api/pkg/security"
)

func newTestService() *Service {
	users := user.NewService(memory.New(), security.NewBcryptHasher(4))
	jwt := pkgauth.NewJWTService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	return NewService(users, security.NewBcryptHasher(4), jwt)
}

func register(t *testing.T, svc *Service) *model.TokenResponse {
	t.Helper()
	tokens, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Pat",
		Email:    "pat@example.test",
		Password: "secret123",
		Role:     "patient",
	})
	require.NoError(t, err)
	return tokens
}

func TestRegisterIssuesTokens(t *testing.T) {
	svc := newTestService()
	tokens := register(t, svc)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	require.NotNil(t, tokens.User)
	assert.Empty(t, tokens.User.PasswordHash, "hash must never leave the service")

	claims, err := svc.ValidateToken(context.Background(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, claims.UserID)
	assert.Equal(t, model.RolePatient, claims.Role)
}

func TestLogin(t *testing.T) {
	svc := newTestService()
	register(t, svc)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, "pat@example.test", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)

	// Wrong password and unknown email fail identically.
	_, err = svc.Login(ctx, "pat@example.test", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
	assert.Equal(t, "invalid credentials", apperrors.Message(err))

	_, err = svc.Login(ctx, "nobody@example.test", "secret123")
	require.Error(t, err)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
	assert.Equal(t, "invalid credentials", apperrors.Message(err))
}

func TestRefresh(t *testing.T) {
	svc := newTestService()
	tokens := register(t, svc)
	ctx := context.Background()

	refreshed, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, tokens.User.ID, refreshed.User.ID)

	// An access token is not accepted as a refresh token.
	_, err = svc.Refresh(ctx, tokens.AccessToken)
	require.Error(t, err)
	assert.Equal(t, 401, apperrors.HTTPStatus(err))
}
