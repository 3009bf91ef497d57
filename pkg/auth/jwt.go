package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

type JWTService interface {
	GenerateAccessToken(user *model.User) (string, error)
	GenerateRefreshToken(user *model.User) (string, error)
	GenerateTokenPair(user *model.User) (access, refresh string, err error)
	ValidateToken(token string) (*model.TokenClaims, error)
	ValidateRefreshToken(token string) (*model.TokenClaims, error)
	RefreshTTL() time.Duration
}

type Config struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type jwtService struct {
	cfg Config
	now func() time.Time
}

// NewJWTService signs tokens with HS256. Access and refresh tokens use
// separate secrets when RefreshSecret is set.
func NewJWTService(cfg Config) JWTService {
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.Secret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "care-api"
	}
	return &jwtService{cfg: cfg, now: time.Now}
}

func (s *jwtService) GenerateAccessToken(user *model.User) (string, error) {
	return s.sign(user, uuid.NewString(), model.TokenTypeAccess, s.cfg.AccessTTL, s.cfg.Secret)
}

func (s *jwtService) GenerateRefreshToken(user *model.User) (string, error) {
	return s.sign(user, uuid.NewString(), model.TokenTypeRefresh, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
}

// GenerateTokenPair issues an access and a refresh token that share one
// token id, so revoking that id ends both.
func (s *jwtService) GenerateTokenPair(user *model.User) (string, string, error) {
	id := uuid.NewString()
	access, err := s.sign(user, id, model.TokenTypeAccess, s.cfg.AccessTTL, s.cfg.Secret)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.sign(user, id, model.TokenTypeRefresh, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *jwtService) RefreshTTL() time.Duration {
	return s.cfg.RefreshTTL
}

func (s *jwtService) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.parse(token, model.TokenTypeAccess, s.cfg.Secret)
}

func (s *jwtService) ValidateRefreshToken(token string) (*model.TokenClaims, error) {
	return s.parse(token, model.TokenTypeRefresh, s.cfg.RefreshSecret)
}

func (s *jwtService) sign(user *model.User, id, tokenType string, ttl time.Duration, secret string) (string, error) {
	now := s.now()
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   user.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *jwtService) parse(token, tokenType, secret string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	return claims, nil
}
