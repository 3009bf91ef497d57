package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/internal/model"
)

func testService() *jwtService {
	return NewJWTService(Config{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}).(*jwtService)
}

func testUser() *model.User {
	return &model.User{Base: model.Base{ID: uuid.New()}, Email: "nurse@example.com"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := testService()
	user := testUser()

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, model.TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	svc := NewJWTService(Config{Secret: "shared", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	user := testUser()

	refresh, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	access, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestTokenPairSharesID(t *testing.T) {
	svc := testService()
	user := testUser()

	access, refresh, err := svc.GenerateTokenPair(user)
	require.NoError(t, err)

	accessClaims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	refreshClaims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, accessClaims.ID, refreshClaims.ID)

	other, _, err := svc.GenerateTokenPair(user)
	require.NoError(t, err)
	otherClaims, err := svc.ValidateToken(other)
	require.NoError(t, err)
	assert.NotEqual(t, accessClaims.ID, otherClaims.ID)
}

func TestExpiredAndForeignTokensRejected(t *testing.T) {
	svc := testService()
	user := testUser()

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService(Config{Secret: "someone-else", AccessTTL: time.Minute})
	foreign, err := other.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = testService().ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRevocationStore()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	require.NoError(t, store.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))

	revoked, _ = store.IsRevoked(ctx, "jti-1")
	assert.True(t, revoked)
	revoked, _ = store.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)
}
