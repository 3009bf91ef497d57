package file

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/service/file"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/httputil"
)

type Handler struct {
	svc *file.Service
}

func NewHandler(svc *file.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.POST("", middleware.RequirePermission(model.PermAddFile), h.UploadFile)
		files.GET("", middleware.RequirePermission(model.PermViewFiles), h.ListFiles)
		files.GET("/:id", middleware.RequirePermission(model.PermViewFiles), h.GetFile)
		files.PUT("/:id", middleware.RequirePermission(model.PermEditFile), h.UpdateFile)
		files.DELETE("/:id", middleware.RequirePermission(model.PermDeleteFile), h.DeleteFile)
	}
}

func (h *Handler) UploadFile(c *gin.Context) {
	var req model.UploadFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	f, err := h.svc.Upload(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, f)
}

func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), c.Query("patient_id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, files)
}

func (h *Handler) GetFile(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	f, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, f)
}

func (h *Handler) UpdateFile(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	var req model.UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	f, err := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, f)
}

func (h *Handler) DeleteFile(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func fileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid file ID", err))
		return uuid.Nil, false
	}
	return id, true
}
