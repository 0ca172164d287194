package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/store"
	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
	"github.com/jwalitptl/telemed-api/pkg/security"
)

const (
	usersPath = "users"

	rosterCacheKey = "doctors"
	rosterCacheTTL = 30 * time.Second
)

type Service struct {
	store  store.Directory
	hasher security.PasswordHasher
	roster *cache.Cache
}

func NewService(dir store.Directory, hasher security.PasswordHasher) *Service {
	return &Service{
		store:  dir,
		hasher: hasher,
		roster: cache.New(rosterCacheTTL, 5*time.Minute),
	}
}

// Register creates a user. Specialty is required for doctors and rejected
// for patients; email must be unique across the directory.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	role := model.Role(req.Role)
	if !role.Valid() {
		return nil, apperrors.Validation("role must be patient or doctor")
	}
	if role == model.RoleDoctor && req.Specialty == "" {
		return nil, apperrors.Validation("specialty is required for doctors")
	}
	if role == model.RolePatient && req.Specialty != "" {
		return nil, apperrors.Validation("specialty is only valid for doctors")
	}

	existing, err := s.GetByEmail(ctx, req.Email)
	if err != nil && apperrors.HTTPStatus(err) != 404 {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("email already registered")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Phone:        req.Phone,
		Specialty:    req.Specialty,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.Set(ctx, store.Join(usersPath, user.ID), user); err != nil {
		return nil, wrapStore(err)
	}

	if role == model.RoleDoctor {
		s.roster.Delete(rosterCacheKey)
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.store.Get(ctx, store.Join(usersPath, id), &user)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, wrapStore(err)
	}
	user.ID = id
	return &user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

// ListDoctors returns the doctor roster ordered by id ascending. The order
// is part of the matcher contract: the first available doctor wins, so
// selection must not depend on store iteration order. Cached briefly since
// every booking enumerates it.
func (s *Service) ListDoctors(ctx context.Context) ([]*model.User, error) {
	if cached, ok := s.roster.Get(rosterCacheKey); ok {
		return cached.([]*model.User), nil
	}

	users, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	doctors := make([]*model.User, 0)
	for _, u := range users {
		if u.Role == model.RoleDoctor {
			doctors = append(doctors, u)
		}
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].ID < doctors[j].ID })

	s.roster.Set(rosterCacheKey, doctors, cache.DefaultExpiration)
	return doctors, nil
}

func (s *Service) list(ctx context.Context) ([]*model.User, error) {
	raw, err := s.store.GetAll(ctx, usersPath)
	if err != nil {
		return nil, wrapStore(err)
	}
	users := make([]*model.User, 0, len(raw))
	for id, doc := range raw {
		var u model.User
		if err := json.Unmarshal(doc, &u); err != nil {
			return nil, fmt.Errorf("corrupt user %s: %w", id, err)
		}
		u.ID = id
		users = append(users, &u)
	}
	return users, nil
}

func wrapStore(err error) error {
	return apperrors.StoreUnavailable(err)
}
