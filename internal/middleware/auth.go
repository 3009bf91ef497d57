package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-api/internal/model"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/httputil"
)

const (
	ContextUser   = "user"
	ContextClaims = "claims"
)

// Authenticator resolves a bearer token to its account.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, *model.TokenClaims, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate verifies the bearer token and stores the user and claims in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		user, claims, err := m.auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequirePermission rejects callers that do not hold code. It must run
// after Authenticate.
func RequirePermission(code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("no authenticated user")))
			return
		}
		if !user.HasPermission(code) {
			httputil.RespondWithError(c, apperrors.Forbidden("permission denied: "+code))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside Authenticate.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

func CurrentClaims(c *gin.Context) *model.TokenClaims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*model.TokenClaims)
	return claims
}
