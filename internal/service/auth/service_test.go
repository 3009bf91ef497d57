package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	"github.com/jwalitptl/care-api/pkg/auth"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/security"
)

func newTestService() *Service {
	return NewService(
		memory.NewUserRepository(),
		auth.NewJWTService(auth.Config{Secret: "secret", AccessTTL: time.Minute, RefreshTTL: time.Hour}),
		auth.NewMemoryRevocationStore(),
		security.NewBcryptHasher(bcrypt.MinCost),
		LockoutPolicy{MaxAttempts: 3, Duration: 15 * time.Minute},
		metrics.New("test", nil),
	)
}

func register(t *testing.T, s *Service) *model.User {
	t.Helper()
	u, err := s.Register(context.Background(), &model.RegisterRequest{
		Email:     " Nurse@Example.com ",
		Password:  "correct horse",
		FirstName: "Zeynep",
		LastName:  "Kaya",
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	s := newTestService()
	u := register(t, s)

	assert.Equal(t, "nurse@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.ElementsMatch(t, model.DefaultPermissions, u.PermissionCodes)
	assert.False(t, u.HasPermission(model.PermAccessAdmin))

	_, err := s.Register(context.Background(), &model.RegisterRequest{Email: "nurse@example.com", Password: "another one"})
	assert.ErrorIs(t, err, &apperrors.AppError{Kind: apperrors.KindDuplicate, Code: apperrors.CodeDuplicateEmail})

	_, err = s.Register(context.Background(), &model.RegisterRequest{Email: "x@example.com", Password: "short"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	u := register(t, s)

	tokens, err := s.Login(ctx, "NURSE@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Access)
	assert.NotEmpty(t, tokens.Refresh)
	assert.Equal(t, u.ID, tokens.User.ID)

	got, claims, err := s.Authenticate(ctx, tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, model.TokenTypeAccess, claims.TokenType)

	_, _, err = s.Authenticate(ctx, tokens.Refresh)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = s.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockout(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	register(t, s)

	for i := 0; i < 3; i++ {
		_, err := s.Login(ctx, "nurse@example.com", "wrong password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := s.Login(ctx, "nurse@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrAccountLocked)

	s.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err = s.Login(ctx, "nurse@example.com", "correct horse")
	assert.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	register(t, s)

	tokens, err := s.Login(ctx, "nurse@example.com", "correct horse")
	require.NoError(t, err)

	fresh, err := s.Refresh(ctx, tokens.Refresh)
	require.NoError(t, err)
	_, _, err = s.Authenticate(ctx, fresh.Access)
	assert.NoError(t, err)

	_, err = s.Refresh(ctx, tokens.Access)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	register(t, s)

	tokens, err := s.Login(ctx, "nurse@example.com", "correct horse")
	require.NoError(t, err)
	_, claims, err := s.Authenticate(ctx, tokens.Access)
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, claims))

	_, _, err = s.Authenticate(ctx, tokens.Access)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = s.Refresh(ctx, tokens.Refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLogoutLeavesOtherSessionsAlone(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	register(t, s)

	first, err := s.Login(ctx, "nurse@example.com", "correct horse")
	require.NoError(t, err)
	second, err := s.Login(ctx, "nurse@example.com", "correct horse")
	require.NoError(t, err)

	_, claims, err := s.Authenticate(ctx, first.Access)
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx, claims))

	_, err = s.Refresh(ctx, second.Refresh)
	assert.NoError(t, err)
}
