package patient

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/service/patient"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/httputil"
)

// Request types accepted by PUT and DELETE /patients.
const (
	TypeAddScheduledMedicine    = "add_scheduled_medicine"
	TypeUpdateScheduledMedicine = "update_scheduled_medicine"
	TypeAddGivenMedicine        = "add_given_medicine"
	TypeAddPreparedMedicine     = "add_prepared_medicine"
	TypeUpdatePatient           = "update_patient"
	TypeAddSignedHC             = "add_signed_hc"
	TypeUpdateSignedHC          = "update_signed_hc"
	TypeAddNote                 = "add_note"
	TypeAddVitals               = "add_vitals"

	TypeDeleteMedicines = "delete_medicines"
	TypeDeletePatient   = "delete_patient"
	TypeDeleteNote      = "delete_note"
	TypeDeleteSignedHC  = "delete_signed_hc"
)

// permissions maps each request type to the code the caller must hold.
var permissions = map[string]string{
	TypeAddScheduledMedicine:    model.PermEditPatientMedicines,
	TypeUpdateScheduledMedicine: model.PermEditPatientMedicines,
	TypeAddGivenMedicine:        model.PermEditPatientMedicines,
	TypeAddPreparedMedicine:     model.PermEditPatientMedicines,
	TypeDeleteMedicines:         model.PermEditPatientMedicines,
	TypeUpdatePatient:           model.PermEditPatient,
	TypeDeletePatient:           model.PermEditPatient,
	TypeAddSignedHC:             model.PermEditPatientHC,
	TypeUpdateSignedHC:          model.PermEditPatientHC,
	TypeDeleteSignedHC:          model.PermEditPatientHC,
	TypeAddNote:                 model.PermEditPatientNotes,
	TypeDeleteNote:              model.PermEditPatientNotes,
	TypeAddVitals:               model.PermEditPatientVitals,
}

type Handler struct {
	svc *patient.Service
}

func NewHandler(svc *patient.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", middleware.RequirePermission(model.PermAddPatient), h.CreatePatient)
		patients.GET("", middleware.RequirePermission(model.PermViewPatients), h.GetPatients)
		patients.PUT("", h.UpdatePatient)
		patients.DELETE("", h.DeletePatient)
	}
}

type createRequest struct {
	PersonalInfo *model.PersonalInfo `json:"patient_personal_info" binding:"required"`
}

// updateRequest is the union of every PUT /patients body. Which fields
// are read depends on Type.
type updateRequest struct {
	Type          string              `json:"type" binding:"required"`
	PatientID     string              `json:"patient_id" binding:"required"`
	MedicineID    string              `json:"medicine_id"`
	MedicineData  json.RawMessage     `json:"medicine_data"`
	Period        model.Period        `json:"period"`
	TodayDate     string              `json:"today_date"`
	PreparedDates []string            `json:"prepared_dates"`
	PersonalInfo  *model.PersonalInfo `json:"patient_personal_info"`
	SignedHCType  string              `json:"signed_hc_type"`
	SignedHCID    string              `json:"signed_hc_id"`
	SignedHCData  model.JSONMap       `json:"signed_hc_data"`
	NoteTitle     string              `json:"note_title"`
	NoteData      string              `json:"note_data"`
	VitalType     model.VitalType     `json:"vital_type"`
	Value         *float64            `json:"value"`
}

// deleteRequest is read from a JSON body or from the query string.
type deleteRequest struct {
	Type        string        `json:"type" form:"type" binding:"required"`
	PatientID   string        `json:"patient_id" form:"patient_id" binding:"required"`
	MedicineIDs []string      `json:"medicine_ids" form:"medicine_ids"`
	NoteID      string        `json:"note_id" form:"note_id"`
	SignedHCID  string        `json:"signed_hc_id" form:"signed_hc_id"`
	ExitInfo    model.JSONMap `json:"exit_info" form:"-"`
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	record, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), *req.PersonalInfo)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, record)
}

// GetPatients lists visible records, or returns one when patient_id is given.
func (h *Handler) GetPatients(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if patientID := c.Query("patient_id"); patientID != "" {
		if !user.HasPermission(model.PermViewPatientDetail) {
			httputil.RespondWithError(c, apperrors.Forbidden("permission denied: "+model.PermViewPatientDetail))
			return
		}
		record, err := h.svc.Get(c.Request.Context(), user, patientID)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, record)
		return
	}

	records, err := h.svc.List(c.Request.Context(), user)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, records)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	user := middleware.CurrentUser(c)
	if err := authorize(user, req.Type); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	var (
		data interface{}
		err  error
	)

	switch req.Type {
	case TypeAddScheduledMedicine:
		var def model.ScheduleDefinition
		if err := decodeMedicineData(req.MedicineData, &def); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		entry, err := h.svc.AssignMedicine(ctx, user, req.PatientID, def)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondCreated(c, entry)
		return

	case TypeUpdateScheduledMedicine:
		var u model.ScheduleUpdate
		if err := decodeMedicineData(req.MedicineData, &u); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		data, err = h.svc.UpdateSchedule(ctx, user, req.PatientID, req.MedicineID, u)

	case TypeAddGivenMedicine:
		data, err = h.svc.RecordGiven(ctx, user, req.PatientID, req.MedicineID, req.Period, req.TodayDate)

	case TypeAddPreparedMedicine:
		dates := req.PreparedDates
		if len(dates) == 0 && req.TodayDate != "" {
			dates = []string{req.TodayDate}
		}
		data, err = h.svc.RecordPrepared(ctx, user, req.PatientID, req.MedicineID, dates)

	case TypeUpdatePatient:
		if req.PersonalInfo == nil {
			httputil.RespondWithError(c, apperrors.Validation("patient_personal_info is required"))
			return
		}
		data, err = h.svc.UpdatePersonalInfo(ctx, user, req.PatientID, *req.PersonalInfo)

	case TypeAddSignedHC:
		data, err = h.svc.AddSignedHC(ctx, user, req.PatientID, req.SignedHCType, req.SignedHCData, req.TodayDate)

	case TypeUpdateSignedHC:
		data, err = h.svc.UpdateSignedHC(ctx, user, req.PatientID, req.SignedHCType, req.SignedHCID, req.SignedHCData, req.TodayDate)

	case TypeAddNote:
		data, err = h.svc.AddNote(ctx, user, req.PatientID, req.NoteTitle, req.NoteData, req.TodayDate)

	case TypeAddVitals:
		if req.Value == nil {
			httputil.RespondWithError(c, apperrors.Validation("value is required"))
			return
		}
		data, err = h.svc.AddVital(ctx, user, req.PatientID, req.VitalType, *req.Value, req.TodayDate)

	default:
		httputil.RespondWithError(c, apperrors.Validation("unsupported update type %q", req.Type))
		return
	}

	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, data)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBind(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	user := middleware.CurrentUser(c)
	if err := authorize(user, req.Type); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	switch req.Type {
	case TypeDeleteMedicines:
		removed, err := h.svc.DeleteMedicines(ctx, user, req.PatientID, req.MedicineIDs)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, gin.H{"deleted": removed})

	case TypeDeletePatient:
		record, err := h.svc.Retire(ctx, user, req.PatientID, req.ExitInfo)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, gin.H{"patient_id": record.PatientID, "status": record.Status})

	case TypeDeleteNote:
		if err := h.svc.DeleteNote(ctx, user, req.PatientID, req.NoteID); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)

	case TypeDeleteSignedHC:
		if err := h.svc.DeleteSignedHC(ctx, user, req.PatientID, req.SignedHCID); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)

	default:
		httputil.RespondWithError(c, apperrors.Validation("unsupported delete type %q", req.Type))
	}
}

func authorize(user *model.User, reqType string) error {
	code, ok := permissions[reqType]
	if !ok {
		return apperrors.Validation("unsupported request type %q", reqType)
	}
	if !user.HasPermission(code) {
		return apperrors.Forbidden("permission denied: " + code)
	}
	return nil
}

func decodeMedicineData(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return apperrors.Validation("medicine_data is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return apperrors.BadRequest("medicine_data is not valid JSON", err)
		}
		return apperrors.BadRequest("invalid medicine_data: "+err.Error(), err)
	}
	return nil
}
