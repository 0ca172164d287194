package auth

import (
	"context"
	"errors"

	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/user"
	pkgauth "github.com/jwalitptl/telemed-api/pkg/auth"
	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
	"github.com/jwalitptl/telemed-api/pkg/security"
)

type Service struct {
	users  *user.Service
	hasher security.PasswordHasher
	jwt    pkgauth.JWTService
}

func NewService(users *user.Service, hasher security.PasswordHasher, jwt pkgauth.JWTService) *Service {
	return &Service{users: users, hasher: hasher, jwt: jwt}
}

// Register creates the user and logs them straight in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	u, err := s.users.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.tokens(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrNotFound {
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}
	return s.tokens(u)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	u, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.tokens(u)
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token")
	}
	return claims, nil
}

func (s *Service) tokens(u *model.User) (*model.TokenResponse, error) {
	access, err := s.jwt.GenerateAccessToken(u)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(u)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         u.Redacted(),
	}, nil
}
