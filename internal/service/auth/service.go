package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/service"
	"github.com/jwalitptl/care-api/pkg/auth"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/security"
)

var (
	ErrInvalidCredentials = &apperrors.AppError{Kind: apperrors.KindUnauthorized, Message: "invalid credentials"}
	ErrAccountLocked      = &apperrors.AppError{Kind: apperrors.KindUnauthorized, Code: apperrors.CodeAccountLocked, Message: "account is locked, please try again later"}
	ErrAccountInactive    = &apperrors.AppError{Kind: apperrors.KindForbidden, Message: "account is disabled"}
	ErrTokenRevoked       = &apperrors.AppError{Kind: apperrors.KindUnauthorized, Message: "token has been revoked"}
)

type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	revoked  auth.RevocationStore
	hasher   security.PasswordHasher
	lockout  LockoutPolicy
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, revoked auth.RevocationStore,
	hasher security.PasswordHasher, lockout LockoutPolicy, m *metrics.Metrics) *Service {
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		revoked:  revoked,
		hasher:   hasher,
		lockout:  lockout,
		metrics:  m,
		now:      time.Now,
	}
}

// Register creates an active account with the default permissions.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	email := normalizeEmail(req.Email)

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.Duplicate(apperrors.CodeDuplicateEmail, "email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("failed to look up user: %w", err))
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest(err.Error(), err)
		}
		return nil, apperrors.Internal(err)
	}

	now := s.now().UTC()
	user := &model.User{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Email:           email,
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		PasswordHash:    hash,
		IsActive:        true,
		PermissionCodes: append([]string(nil), model.DefaultPermissions...),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, service.FromRepository(err, "user", apperrors.CodeDuplicateEmail)
	}

	log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return user, nil
}

// Login checks credentials and issues a token pair. Repeated failures
// lock the account for the configured duration.
func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.countLogin("unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to look up user: %w", err))
	}

	now := s.now().UTC()
	if user.IsLocked(now) {
		s.countLogin("locked")
		return nil, ErrAccountLocked
	}
	if !user.IsActive {
		s.countLogin("inactive")
		return nil, ErrAccountInactive
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		user.LoginAttempts++
		if s.lockout.MaxAttempts > 0 && user.LoginAttempts >= s.lockout.MaxAttempts {
			until := now.Add(s.lockout.Duration)
			user.LockedUntil = &until
			user.LoginAttempts = 0
			log.Warn().Str("user_id", user.ID.String()).Time("locked_until", until).Msg("account locked after failed logins")
		}
		user.UpdatedAt = now
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to update login attempts: %w", err))
		}
		s.countLogin("bad_password")
		return nil, ErrInvalidCredentials
	}

	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if s.hasher.NeedsRehash(user.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			user.PasswordHash = hash
		}
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to update login timestamp: %w", err))
	}

	s.countLogin("success")
	return s.generateTokens(user)
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.generateTokens(user)
}

// Authenticate resolves an access token to its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*model.User, *model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(accessToken)
	if err != nil {
		return nil, nil, apperrors.Unauthorized(err)
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, nil, err
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// Logout revokes the token id behind claims. The refresh token issued
// with the same pair carries that id too, so the id stays revoked until
// the refresh token would have expired.
func (s *Service) Logout(ctx context.Context, claims *model.TokenClaims) error {
	if claims == nil || claims.ID == "" {
		return apperrors.Unauthorized(errors.New("token has no id"))
	}
	issued := s.now()
	if claims.IssuedAt != nil {
		issued = claims.IssuedAt.Time
	}
	until := issued.Add(s.jwtSvc.RefreshTTL())
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.After(until) {
		until = claims.ExpiresAt.Time
	}
	if err := s.revoked.Revoke(ctx, claims.ID, until); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) checkRevoked(ctx context.Context, claims *model.TokenClaims) error {
	if claims.ID == "" {
		return nil
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func (s *Service) activeUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(err)
		}
		return nil, apperrors.Internal(err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	access, refresh, err := s.jwtSvc.GenerateTokenPair(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{Access: access, Refresh: refresh, User: user}, nil
}

func (s *Service) countLogin(outcome string) {
	s.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
