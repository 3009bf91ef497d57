package patient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	"github.com/jwalitptl/care-api/internal/service/medicine"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

const ts = "Tue Apr 23 2024 01:53:24 GMT+0300 (GMT+03:00)"

type fixture struct {
	svc     *Service
	outbox  *memory.OutboxRepository
	catalog *medicine.Service
	owner   *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	outbox := memory.NewOutboxRepository()
	catalog := medicine.NewService(memory.NewMedicineRepository(), time.Minute)
	return &fixture{
		svc:     NewService(memory.NewPatientRepository(outbox), catalog, metrics.New("test", nil)),
		outbox:  outbox,
		catalog: catalog,
		owner:   newUser(false),
	}
}

func newUser(staff bool) *model.User {
	return &model.User{
		Base:            model.Base{ID: uuid.New()},
		Email:           uuid.NewString() + "@example.com",
		IsStaff:         staff,
		IsActive:        true,
		PermissionCodes: model.DefaultPermissions,
	}
}

func (f *fixture) createPatient(t *testing.T, citizenID string) *model.PatientRecord {
	t.Helper()
	r, err := f.svc.Create(context.Background(), f.owner, model.PersonalInfo{
		Identity: model.IdentitySection{FirstName: "Ayşe", LastName: "Yılmaz", CitizenID: citizenID},
	})
	require.NoError(t, err)
	return r
}

func aspirin() model.ScheduleDefinition {
	return model.ScheduleDefinition{
		Name:     "Aspirin",
		Category: "Analgesic",
		Periods:  model.PeriodSet{Morning: true, Evening: true},
		Days: map[model.Period][]string{
			model.PeriodMorning: {"Monday"},
			model.PeriodEvening: {"Monday", "Thursday"},
		},
	}
}

func eventTypes(f *fixture) []string {
	var out []string
	for _, e := range f.outbox.Events() {
		out = append(out, e.EventType)
	}
	return out
}

func TestCreateRejectsDuplicatePatient(t *testing.T) {
	f := newFixture(t)
	f.createPatient(t, "12345678901")

	_, err := f.svc.Create(context.Background(), f.owner, model.PersonalInfo{
		Identity: model.IdentitySection{CitizenID: "12345678901"},
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindDuplicate, appErr.Kind)
	assert.Equal(t, apperrors.CodeDuplicatePatient, appErr.Code)
}

func TestScheduleLifecyclePersistsAndEmitsEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")

	entry, err := f.svc.AssignMedicine(ctx, f.owner, p.PatientID, aspirin())
	require.NoError(t, err)

	_, err = f.svc.RecordGiven(ctx, f.owner, p.PatientID, entry.ID, model.PeriodEvening, ts)
	require.NoError(t, err)
	_, err = f.svc.RecordPrepared(ctx, f.owner, p.PatientID, entry.ID, []string{ts})
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, f.owner, p.PatientID)
	require.NoError(t, err)
	got, ok := stored.Medicines.Get(entry.ID)
	require.True(t, ok)
	assert.True(t, got.Data.GivenDates[model.PeriodEvening]["23-04-24"].Given)
	assert.Equal(t, ts, got.Data.GivenDates[model.PeriodEvening]["23-04-24"].Timestamp)
	assert.True(t, got.Data.PreparedDates["23-04-24"])

	assert.Equal(t, []string{
		"patient.create",
		"patient.add_scheduled_medicine",
		"patient.add_given_medicine",
		"patient.add_prepared_medicine",
	}, eventTypes(f))

	var payload model.PatientEvent
	require.NoError(t, json.Unmarshal(f.outbox.Events()[1].Payload, &payload))
	assert.Equal(t, p.PatientID, payload.PatientID)
	assert.Equal(t, f.owner.ID, payload.ActorID)
}

func TestAssignMedicineRecordsCatalogEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")

	_, err := f.svc.AssignMedicine(ctx, f.owner, p.PatientID, aspirin())
	require.NoError(t, err)

	m, err := f.catalog.Get(ctx, model.MedicineID("Aspirin", "Analgesic"))
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", m.Data.Name)
}

func TestDuplicateAssignmentLeavesRecordUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")

	_, err := f.svc.AssignMedicine(ctx, f.owner, p.PatientID, aspirin())
	require.NoError(t, err)
	before := len(f.outbox.Events())

	_, err = f.svc.AssignMedicine(ctx, f.owner, p.PatientID, aspirin())
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSchedule)
	assert.Len(t, f.outbox.Events(), before)

	stored, err := f.svc.Get(ctx, f.owner, p.PatientID)
	require.NoError(t, err)
	assert.Len(t, stored.Medicines, 1)
}

func TestFailedMutationDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")
	entry, err := f.svc.AssignMedicine(ctx, f.owner, p.PatientID, aspirin())
	require.NoError(t, err)

	_, err = f.svc.RecordPrepared(ctx, f.owner, p.PatientID, entry.ID, []string{ts, "yesterday"})
	assert.ErrorIs(t, err, apperrors.ErrMalformedTimestamp)

	stored, err := f.svc.Get(ctx, f.owner, p.PatientID)
	require.NoError(t, err)
	assert.Empty(t, stored.Medicines[entry.ID].Data.PreparedDates)
}

func TestAccessControl(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")
	stranger := newUser(false)
	staff := newUser(true)

	_, err := f.svc.Get(ctx, stranger, p.PatientID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.svc.AssignMedicine(ctx, stranger, p.PatientID, aspirin())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	list, err := f.svc.List(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.SetAccess(ctx, f.owner, p.PatientID, []uuid.UUID{stranger.ID})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	access, err := f.svc.SetAccess(ctx, staff, p.PatientID, []uuid.UUID{stranger.ID, stranger.ID, f.owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stranger.ID}, access.AllowedUsers)

	_, err = f.svc.Get(ctx, stranger, p.PatientID)
	assert.NoError(t, err)
	list, err = f.svc.List(ctx, stranger)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetUnknownPatient(t *testing.T) {
	_, err := newFixture(t).svc.Get(context.Background(), newUser(true), "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRetireHidesRecordFromOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")
	entry, err := f.svc.AssignMedicine(ctx, f.owner, p.PatientID, aspirin())
	require.NoError(t, err)

	retired, err := f.svc.Retire(ctx, f.owner, p.PatientID, model.JSONMap{"reason": "discharged"})
	require.NoError(t, err)
	assert.NotEqual(t, p.PatientID, retired.PatientID)
	assert.Equal(t, model.PatientStatusRetired, retired.Status)

	_, err = f.svc.Get(ctx, f.owner, p.PatientID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := f.svc.List(ctx, f.owner)
	require.NoError(t, err)
	assert.Empty(t, list)

	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	_, ok := all[0].Medicines.Get(entry.ID)
	assert.True(t, ok)

	// the citizen id is free again
	f.createPatient(t, "12345678901")
}

func TestDeleteMedicines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")
	entry, err := f.svc.AssignMedicine(ctx, f.owner, p.PatientID, aspirin())
	require.NoError(t, err)

	removed, err := f.svc.DeleteMedicines(ctx, f.owner, p.PatientID, []string{entry.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{entry.ID}, removed)

	stored, err := f.svc.Get(ctx, f.owner, p.PatientID)
	require.NoError(t, err)
	assert.Empty(t, stored.Medicines)
}

func TestClinicalEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createPatient(t, "12345678901")

	note, err := f.svc.AddNote(ctx, f.owner, p.PatientID, "Visit", "Stable", ts)
	require.NoError(t, err)
	assert.Equal(t, f.owner.Email, note.CreatedBy)

	hc, err := f.svc.AddSignedHC(ctx, f.owner, p.PatientID, "daily", model.JSONMap{"pulse": "72"}, ts)
	require.NoError(t, err)

	_, err = f.svc.AddVital(ctx, f.owner, p.PatientID, model.VitalHeartBeat, 72, ts)
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, f.owner, p.PatientID)
	require.NoError(t, err)
	assert.Contains(t, stored.Notes, note.ID)
	assert.Len(t, stored.SignedHC["23-04-24"]["daily"], 1)
	assert.Len(t, stored.Vitals[model.VitalHeartBeat], 1)

	require.NoError(t, f.svc.DeleteNote(ctx, f.owner, p.PatientID, note.ID))
	require.NoError(t, f.svc.DeleteSignedHC(ctx, f.owner, p.PatientID, hc.ID))
	assert.ErrorIs(t, f.svc.DeleteNote(ctx, f.owner, p.PatientID, note.ID), apperrors.ErrNotFound)
}
