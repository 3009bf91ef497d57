package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/service/admin"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/httputil"
)

type Handler struct {
	svc *admin.Service
}

func NewHandler(svc *admin.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequirePermission(model.PermAccessAdmin))
	{
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.PUT("/users/:id", h.UpdateUser)
		admin.GET("/permissions", h.ListPermissions)
		admin.GET("/patients", h.ListPatients)
		admin.GET("/patients/:patient_id/access", h.GetPatientAccess)
		admin.PUT("/patients/:patient_id/access", h.SetPatientAccess)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid user ID", err))
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid user ID", err))
		return
	}

	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	user, err := h.svc.UpdateUser(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) ListPermissions(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.svc.Permissions())
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.svc.ListPatients(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}

func (h *Handler) GetPatientAccess(c *gin.Context) {
	access, err := h.svc.PatientAccess(c.Request.Context(), middleware.CurrentUser(c), c.Param("patient_id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, access)
}

func (h *Handler) SetPatientAccess(c *gin.Context) {
	var req model.UpdatePatientAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	access, err := h.svc.SetPatientAccess(c.Request.Context(), middleware.CurrentUser(c), c.Param("patient_id"), req.UserIDs)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, access)
}
