package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/service"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

// Operation names. They label metrics and become the outbox event type
// "patient.<op>".
const (
	OpCreate          = "create"
	OpUpdate          = "update_patient"
	OpAssignMedicine  = "add_scheduled_medicine"
	OpUpdateSchedule  = "update_scheduled_medicine"
	OpRecordGiven     = "add_given_medicine"
	OpRecordPrepared  = "add_prepared_medicine"
	OpDeleteMedicines = "delete_medicines"
	OpRetire          = "delete_patient"
	OpAddSignedHC     = "add_signed_hc"
	OpUpdateSignedHC  = "update_signed_hc"
	OpDeleteSignedHC  = "delete_signed_hc"
	OpAddNote         = "add_note"
	OpDeleteNote      = "delete_note"
	OpAddVitals       = "add_vitals"
	OpSetAccess       = "set_access"
)

// Catalog records medicines referenced by schedules.
type Catalog interface {
	Ensure(ctx context.Context, name, category string) (*model.Medicine, bool, error)
}

// Service applies operations to patient records. Each mutation loads the
// whole record, changes it in memory and writes it back together with an
// outbox event. Concurrent writers are not coordinated: the last one wins.
type Service struct {
	repo    repository.PatientRepository
	catalog Catalog
	metrics *metrics.Metrics
}

func NewService(repo repository.PatientRepository, catalog Catalog, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		metrics: m,
	}
}

// Create stores a new record owned by actor.
func (s *Service) Create(ctx context.Context, actor *model.User, info model.PersonalInfo) (*model.PatientRecord, error) {
	record, err := model.NewPatientRecord(actor.ID, info)
	if err != nil {
		s.observe(OpCreate, err)
		return nil, err
	}
	event, err := model.NewPatientEvent(record, OpCreate, actor.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Create(ctx, record, event); err != nil {
		err = service.FromRepository(err, fmt.Sprintf("patient %s", record.PatientID), apperrors.CodeDuplicatePatient)
		s.observe(OpCreate, err)
		return nil, err
	}

	s.observe(OpCreate, nil)
	log.Debug().Str("patient_id", record.PatientID).Str("op", OpCreate).Msg("patient created")
	return record, nil
}

// Get returns the record if actor may see it.
func (s *Service) Get(ctx context.Context, actor *model.User, patientID string) (*model.PatientRecord, error) {
	return s.load(ctx, actor, patientID)
}

// List returns the active records actor may see. Staff see every record.
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.PatientRecord, error) {
	filter := model.PatientFilter{Status: model.PatientStatusActive}
	if !actor.IsStaff {
		id := actor.ID
		filter.VisibleTo = &id
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list patients: %w", err))
	}
	return records, nil
}

// ListAll returns every record regardless of status or ownership.
func (s *Service) ListAll(ctx context.Context) ([]*model.PatientRecord, error) {
	records, err := s.repo.List(ctx, model.PatientFilter{})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list patients: %w", err))
	}
	return records, nil
}

func (s *Service) UpdatePersonalInfo(ctx context.Context, actor *model.User, patientID string, info model.PersonalInfo) (*model.PatientRecord, error) {
	return s.mutate(ctx, actor, patientID, OpUpdate, func(r *model.PatientRecord) error {
		return r.UpdatePersonalInfo(info)
	})
}

// AssignMedicine adds a schedule entry and records the medicine in the
// catalog. A catalog failure does not undo the assignment.
func (s *Service) AssignMedicine(ctx context.Context, actor *model.User, patientID string, def model.ScheduleDefinition) (*model.ScheduleEntry, error) {
	var entry *model.ScheduleEntry
	_, err := s.mutate(ctx, actor, patientID, OpAssignMedicine, func(r *model.PatientRecord) error {
		var err error
		entry, err = r.AssignMedicine(def)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.catalog != nil {
		if _, _, err := s.catalog.Ensure(ctx, entry.Data.Name, entry.Data.Category); err != nil {
			log.Warn().Err(err).Str("patient_id", patientID).Str("medicine", entry.Data.Name).Msg("failed to record medicine in catalog")
		}
	}
	return entry, nil
}

func (s *Service) UpdateSchedule(ctx context.Context, actor *model.User, patientID, scheduleID string, u model.ScheduleUpdate) (*model.ScheduleEntry, error) {
	var entry *model.ScheduleEntry
	_, err := s.mutate(ctx, actor, patientID, OpUpdateSchedule, func(r *model.PatientRecord) error {
		var err error
		entry, err = r.UpdateSchedule(scheduleID, u)
		return err
	})
	return entry, err
}

func (s *Service) RecordGiven(ctx context.Context, actor *model.User, patientID, scheduleID string, period model.Period, timestamp string) (*model.ScheduleEntry, error) {
	var entry *model.ScheduleEntry
	_, err := s.mutate(ctx, actor, patientID, OpRecordGiven, func(r *model.PatientRecord) error {
		var err error
		entry, err = r.RecordGiven(scheduleID, period, timestamp)
		return err
	})
	if err == nil {
		s.metrics.AdministrationRecords.WithLabelValues("given").Inc()
	}
	return entry, err
}

func (s *Service) RecordPrepared(ctx context.Context, actor *model.User, patientID, scheduleID string, timestamps []string) (*model.ScheduleEntry, error) {
	var entry *model.ScheduleEntry
	_, err := s.mutate(ctx, actor, patientID, OpRecordPrepared, func(r *model.PatientRecord) error {
		var err error
		entry, err = r.RecordPrepared(scheduleID, timestamps)
		return err
	})
	if err == nil {
		s.metrics.AdministrationRecords.WithLabelValues("prepared").Add(float64(len(timestamps)))
	}
	return entry, err
}

// DeleteMedicines removes the listed schedules and returns the ids that existed.
func (s *Service) DeleteMedicines(ctx context.Context, actor *model.User, patientID string, scheduleIDs []string) ([]string, error) {
	var removed []string
	_, err := s.mutate(ctx, actor, patientID, OpDeleteMedicines, func(r *model.PatientRecord) error {
		var err error
		removed, err = r.DeleteMedicines(scheduleIDs)
		return err
	})
	return removed, err
}

// Retire anonymizes the record and returns it under its new patient id.
func (s *Service) Retire(ctx context.Context, actor *model.User, patientID string, exitInfo model.JSONMap) (*model.PatientRecord, error) {
	return s.mutate(ctx, actor, patientID, OpRetire, func(r *model.PatientRecord) error {
		return r.Retire(exitInfo)
	})
}

func (s *Service) AddSignedHC(ctx context.Context, actor *model.User, patientID, formType string, data model.JSONMap, timestamp string) (*model.SignedHC, error) {
	var entry *model.SignedHC
	_, err := s.mutate(ctx, actor, patientID, OpAddSignedHC, func(r *model.PatientRecord) error {
		var err error
		entry, err = r.AddSignedHC(formType, data, timestamp, actor.Email)
		return err
	})
	return entry, err
}

func (s *Service) UpdateSignedHC(ctx context.Context, actor *model.User, patientID, formType, id string, data model.JSONMap, timestamp string) (*model.SignedHC, error) {
	var entry *model.SignedHC
	_, err := s.mutate(ctx, actor, patientID, OpUpdateSignedHC, func(r *model.PatientRecord) error {
		var err error
		entry, err = r.UpdateSignedHC(formType, id, data, timestamp, actor.Email)
		return err
	})
	return entry, err
}

func (s *Service) DeleteSignedHC(ctx context.Context, actor *model.User, patientID, id string) error {
	_, err := s.mutate(ctx, actor, patientID, OpDeleteSignedHC, func(r *model.PatientRecord) error {
		return r.DeleteSignedHC(id)
	})
	return err
}

func (s *Service) AddNote(ctx context.Context, actor *model.User, patientID, title, body, timestamp string) (*model.Note, error) {
	var note *model.Note
	_, err := s.mutate(ctx, actor, patientID, OpAddNote, func(r *model.PatientRecord) error {
		var err error
		note, err = r.AddNote(title, body, timestamp, actor.Email)
		return err
	})
	return note, err
}

func (s *Service) DeleteNote(ctx context.Context, actor *model.User, patientID, noteID string) error {
	_, err := s.mutate(ctx, actor, patientID, OpDeleteNote, func(r *model.PatientRecord) error {
		return r.DeleteNote(noteID)
	})
	return err
}

func (s *Service) AddVital(ctx context.Context, actor *model.User, patientID string, vt model.VitalType, value float64, timestamp string) (*model.VitalReading, error) {
	var reading *model.VitalReading
	_, err := s.mutate(ctx, actor, patientID, OpAddVitals, func(r *model.PatientRecord) error {
		var err error
		reading, err = r.AddVital(vt, value, timestamp)
		return err
	})
	return reading, err
}

// Access returns the sharing list of a record. Only staff may call it.
func (s *Service) Access(ctx context.Context, actor *model.User, patientID string) (*model.PatientAccess, error) {
	if !actor.HasPermission(model.PermAccessAdmin) {
		return nil, apperrors.Forbidden("admin access required")
	}
	r, err := s.load(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}
	return &model.PatientAccess{PatientID: r.PatientID, OwnerID: r.OwnerID, AllowedUsers: r.AllowedUsers}, nil
}

// SetAccess replaces the sharing list of a record. Only staff may call it.
func (s *Service) SetAccess(ctx context.Context, actor *model.User, patientID string, userIDs []uuid.UUID) (*model.PatientAccess, error) {
	if !actor.HasPermission(model.PermAccessAdmin) {
		return nil, apperrors.Forbidden("admin access required")
	}
	r, err := s.mutate(ctx, actor, patientID, OpSetAccess, func(r *model.PatientRecord) error {
		if r.IsRetired() {
			return apperrors.Validation("patient record is retired").WithCode(apperrors.CodeRecordRetired)
		}
		r.SetAllowedUsers(userIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.PatientAccess{PatientID: r.PatientID, OwnerID: r.OwnerID, AllowedUsers: r.AllowedUsers}, nil
}

func (s *Service) load(ctx context.Context, actor *model.User, patientID string) (*model.PatientRecord, error) {
	if patientID == "" {
		return nil, apperrors.Validation("patient_id is required")
	}
	r, err := s.repo.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, service.FromRepository(err, fmt.Sprintf("patient %s", patientID), apperrors.CodeDuplicatePatient)
	}
	if !actor.IsStaff && !r.CanAccess(actor.ID) {
		return nil, apperrors.Forbidden("you do not have access to this patient")
	}
	return r, nil
}

// mutate runs one load, change, save cycle for op.
func (s *Service) mutate(ctx context.Context, actor *model.User, patientID, op string, fn func(*model.PatientRecord) error) (*model.PatientRecord, error) {
	r, err := s.load(ctx, actor, patientID)
	if err != nil {
		s.observe(op, err)
		return nil, err
	}
	if err := fn(r); err != nil {
		s.observe(op, err)
		return nil, err
	}

	event, err := model.NewPatientEvent(r, op, actor.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.Update(ctx, r, event); err != nil {
		err = service.FromRepository(err, fmt.Sprintf("patient %s", patientID), apperrors.CodeDuplicatePatient)
		s.observe(op, err)
		return nil, err
	}

	s.observe(op, nil)
	log.Debug().Str("patient_id", r.PatientID).Str("op", op).Str("actor_id", actor.ID.String()).Msg("patient updated")
	return r, nil
}

func (s *Service) observe(op string, err error) {
	status := "success"
	if err != nil {
		status = string(apperrors.From(err).Kind)
	}
	s.metrics.PatientMutations.WithLabelValues(op, status).Inc()
}
