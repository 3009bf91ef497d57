package medicine

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/service/medicine"
	"github.com/jwalitptl/care-api/pkg/httputil"
)

type Handler struct {
	svc *medicine.Service
}

func NewHandler(svc *medicine.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medicines := r.Group("/medicines")
	{
		medicines.POST("", middleware.RequirePermission(model.PermEditPatientMedicines), h.CreateMedicine)
		medicines.GET("", middleware.RequirePermission(model.PermViewDrugs), h.ListMedicines)
	}
}

// CreateMedicine answers 201 for a new catalog entry and 200 when the
// entry already existed.
func (h *Handler) CreateMedicine(c *gin.Context) {
	var req model.CreateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	m, created, err := h.svc.Ensure(c.Request.Context(), req.MedicineData.Name, req.MedicineData.Category)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if created {
		httputil.RespondCreated(c, m)
		return
	}
	httputil.RespondWithSuccess(c, m)
}

func (h *Handler) ListMedicines(c *gin.Context) {
	medicines, err := h.svc.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, medicines)
}
