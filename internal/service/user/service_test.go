package user

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/store/memory"
	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
	"github.com/jwalitptl/telemed-api/pkg/security"
)

func newTestService() *Service {
	return NewService(memory.New(), security.NewBcryptHasher(4))
}

func TestRegisterPatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, &model.RegisterRequest{
		Name:     "Pat",
		Email:    "pat@example.test",
		Password: "secret123",
		Role:     "patient",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, model.RolePatient, u.Role)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
}

func TestRegisterSpecialtyRules(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// Doctors must declare a specialty.
	_, err := svc.Register(ctx, &model.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@clinic.test",
		Password: "secret123",
		Role:     "doctor",
	})
	require.Error(t, err)
	assert.Equal(t, 422, apperrors.HTTPStatus(err))

	// Patients must not.
	_, err = svc.Register(ctx, &model.RegisterRequest{
		Name:      "Pat",
		Email:     "pat@example.test",
		Password:  "secret123",
		Role:      "patient",
		Specialty: "Cardiology",
	})
	require.Error(t, err)
	assert.Equal(t, 422, apperrors.HTTPStatus(err))

	_, err = svc.Register(ctx, &model.RegisterRequest{
		Name:      "Alice",
		Email:     "alice@clinic.test",
		Password:  "secret123",
		Role:      "doctor",
		Specialty: "Cardiology",
	})
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	req := &model.RegisterRequest{
		Name:     "Pat",
		Email:    "pat@example.test",
		Password: "secret123",
		Role:     "patient",
	}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	require.Error(t, err)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestGetByEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, &model.RegisterRequest{
		Name:     "Pat",
		Email:    "pat@example.test",
		Password: "secret123",
		Role:     "patient",
	})
	require.NoError(t, err)

	got, err := svc.GetByEmail(ctx, "pat@example.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.GetByEmail(ctx, "nobody@example.test")
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestListDoctorsSortedAndCacheInvalidated(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := svc.Register(ctx, &model.RegisterRequest{
			Name:      name,
			Email:     name + "@clinic.test",
			Password:  "secret123",
			Role:      "doctor",
			Specialty: "General Practice",
		})
		require.NoError(t, err)
	}
	_, err := svc.Register(ctx, &model.RegisterRequest{
		Name:     "Pat",
		Email:    "pat@example.test",
		Password: "secret123",
		Role:     "patient",
	})
	require.NoError(t, err)

	doctors, err := svc.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 3)
	assert.True(t, sort.SliceIsSorted(doctors, func(i, j int) bool {
		return doctors[i].ID < doctors[j].ID
	}))

	// Registering a doctor invalidates the cached roster immediately.
	_, err = svc.Register(ctx, &model.RegisterRequest{
		Name:      "Dave",
		Email:     "dave@clinic.test",
		Password:  "secret123",
		Role:      "doctor",
		Specialty: "Dermatology",
	})
	require.NoError(t, err)

	doctors, err = svc.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Len(t, doctors, 4)
}
