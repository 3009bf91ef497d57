package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/service/auth"
	"github.com/jwalitptl/care-api/pkg/httputil"
)

type Handler struct {
	svc          *auth.Service
	authenticate gin.HandlerFunc
}

// NewHandler wires the auth routes. authenticate guards the routes that
// act on the caller's own token.
func NewHandler(svc *auth.Service, authenticate gin.HandlerFunc) *Handler {
	return &Handler{svc: svc, authenticate: authenticate}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
		auth.POST("/verify", h.authenticate, h.Verify)
		auth.POST("/logout", h.authenticate, h.Logout)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	user, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, tokens)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req model.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	tokens, err := h.svc.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, tokens)
}

// Verify returns the profile behind the presented token.
func (h *Handler) Verify(c *gin.Context) {
	httputil.RespondWithSuccess(c, middleware.CurrentUser(c))
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.CurrentClaims(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"message": "logged out successfully"})
}
