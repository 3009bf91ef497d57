package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/hashid"
	"github.com/jwalitptl/care-api/pkg/jsdate"
)

// CurrentSchemaVersion is the document shape written by this service.
const CurrentSchemaVersion = 5

// PatientStatus is the lifecycle state of a record. Retired is terminal.
type PatientStatus string

const (
	PatientStatusActive  PatientStatus = "active"
	PatientStatusRetired PatientStatus = "retired"
)

// PatientRecord is the aggregate root for everything stored about a patient.
type PatientRecord struct {
	Base
	SchemaVersion int            `json:"schema_version" db:"schema_version"`
	PatientID     string         `json:"patient_id" db:"patient_id"`
	OwnerID       *uuid.UUID     `json:"user" db:"owner_id"`
	AllowedUsers  []uuid.UUID    `json:"allowed_users"`
	Status        PatientStatus  `json:"status" db:"status"`
	PersonalInfo  PersonalInfo   `json:"patient_personal_info"`
	Medicines     ScheduleMap    `json:"patient_medicines"`
	SignedHC      SignedHCLedger `json:"patient_signed_hc"`
	Vitals        Vitals         `json:"patient_vitals"`
	Notes         NoteMap        `json:"patient_notes"`
	ExitInfo      JSONMap        `json:"exit_info,omitempty"`
	RetiredAt     *time.Time     `json:"retired_at,omitempty" db:"retired_at"`
}

// PatientFilter narrows patient listings.
type PatientFilter struct {
	// VisibleTo limits results to records owned by or shared with the user.
	VisibleTo *uuid.UUID
	Status    PatientStatus
}

// NewPatientRecord creates an active record owned by ownerID. The patient
// id is taken from section 1's citizen id.
func NewPatientRecord(ownerID uuid.UUID, info PersonalInfo) (*PatientRecord, error) {
	patientID := info.CitizenID()
	if patientID == "" {
		return nil, apperrors.Validation("patient_personal_info.section_1.citizenID is required")
	}
	info.Identity.CitizenID = patientID
	info.Identity.PatientID = patientID

	now := time.Now().UTC()
	owner := ownerID
	r := &PatientRecord{
		Base: Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		SchemaVersion: CurrentSchemaVersion,
		PatientID:     patientID,
		OwnerID:       &owner,
		Status:        PatientStatusActive,
		PersonalInfo:  info,
	}
	r.ensureCollections()
	return r, nil
}

// Validate checks the record at the storage boundary. Records written
// before schema versioning (version 0) are upgraded in place.
func (r *PatientRecord) Validate() error {
	switch {
	case r.SchemaVersion == 0:
		r.SchemaVersion = CurrentSchemaVersion
	case r.SchemaVersion > CurrentSchemaVersion:
		return apperrors.Validation("unsupported patient schema version %d", r.SchemaVersion)
	}
	if strings.TrimSpace(r.PatientID) == "" {
		return apperrors.Validation("patient_id is required")
	}
	switch r.Status {
	case PatientStatusActive, PatientStatusRetired:
	case "":
		r.Status = PatientStatusActive
	default:
		return apperrors.Validation("unknown patient status %q", r.Status)
	}
	r.ensureCollections()
	for id, e := range r.Medicines {
		if e == nil || e.ID != id {
			return apperrors.Validation("medicine %s is stored under the wrong key", id)
		}
		if err := e.Data.AdministrationLedger.normalize(); err != nil {
			return err
		}
	}
	return nil
}

func (r *PatientRecord) ensureCollections() {
	if r.Medicines == nil {
		r.Medicines = ScheduleMap{}
	}
	if r.SignedHC == nil {
		r.SignedHC = SignedHCLedger{}
	}
	if r.Vitals == nil {
		r.Vitals = NewVitals()
	}
	if r.Notes == nil {
		r.Notes = NoteMap{}
	}
	if r.AllowedUsers == nil {
		r.AllowedUsers = []uuid.UUID{}
	}
}

func (r *PatientRecord) IsRetired() bool {
	return r.Status == PatientStatusRetired
}

// IsOwnedBy reports whether userID owns the record.
func (r *PatientRecord) IsOwnedBy(userID uuid.UUID) bool {
	return r.OwnerID != nil && *r.OwnerID == userID
}

// CanAccess reports whether userID owns the record or it is shared with them.
func (r *PatientRecord) CanAccess(userID uuid.UUID) bool {
	if r.IsOwnedBy(userID) {
		return true
	}
	for _, id := range r.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// SetAllowedUsers replaces the sharing list. The owner and duplicates are dropped.
func (r *PatientRecord) SetAllowedUsers(ids []uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] || r.IsOwnedBy(id) {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	r.AllowedUsers = out
	r.touch()
}

func (r *PatientRecord) touch() {
	r.UpdatedAt = time.Now().UTC()
}

func (r *PatientRecord) mutable() error {
	if r.IsRetired() {
		return apperrors.Validation("patient record is retired").WithCode(apperrors.CodeRecordRetired)
	}
	return nil
}

func (r *PatientRecord) schedule(id string) (*ScheduleEntry, error) {
	e, ok := r.Medicines.Get(id)
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("medicine %s", id), nil)
	}
	return e, nil
}

// AssignMedicine adds a schedule entry derived from def. Assigning a
// definition that derives an existing id fails as a duplicate.
func (r *PatientRecord) AssignMedicine(def ScheduleDefinition) (*ScheduleEntry, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	if err := def.Normalize(); err != nil {
		return nil, err
	}

	canon, err := hashid.Canonical(def)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	id := hashid.Derive(r.PatientID, canon)
	if _, exists := r.Medicines.Get(id); exists {
		return nil, apperrors.Duplicate(apperrors.CodeDuplicateSchedule,
			fmt.Sprintf("medicine %s is already scheduled for this patient", def.Name))
	}

	entry := &ScheduleEntry{
		ID: id,
		Data: ScheduleData{
			ScheduleDefinition:   def,
			AdministrationLedger: NewAdministrationLedger(),
		},
	}
	r.Medicines[id] = entry
	r.touch()
	return entry, nil
}

// UpdateSchedule merges u into an existing entry. The entry keeps its id.
func (r *PatientRecord) UpdateSchedule(id string, u ScheduleUpdate) (*ScheduleEntry, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	existing, err := r.schedule(id)
	if err != nil {
		return nil, err
	}
	updated, err := existing.apply(u)
	if err != nil {
		return nil, err
	}
	r.Medicines[id] = updated
	r.touch()
	return updated, nil
}

// RecordGiven marks the dose for period as given on the timestamp's date.
func (r *PatientRecord) RecordGiven(id string, period Period, timestamp string) (*ScheduleEntry, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, apperrors.Validation("unknown period %q", period)
	}
	entry, err := r.schedule(id)
	if err != nil {
		return nil, err
	}
	date, err := jsdate.DateOf(timestamp)
	if err != nil {
		return nil, apperrors.MalformedTimestamp(timestamp, err)
	}

	entry.Data.MarkGiven(period, date, timestamp)
	r.touch()
	return entry, nil
}

// RecordPrepared marks each timestamp's date as prepared. Nothing is
// recorded unless every timestamp parses.
func (r *PatientRecord) RecordPrepared(id string, timestamps []string) (*ScheduleEntry, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, apperrors.Validation("prepared_dates must not be empty")
	}
	entry, err := r.schedule(id)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(timestamps))
	for _, ts := range timestamps {
		date, err := jsdate.DateOf(ts)
		if err != nil {
			return nil, apperrors.MalformedTimestamp(ts, err)
		}
		dates = append(dates, date)
	}
	for _, d := range dates {
		entry.Data.MarkPrepared(d)
	}
	r.touch()
	return entry, nil
}

// DeleteMedicines removes the given schedule entries and returns the ids
// that were present. Unknown ids are ignored.
func (r *PatientRecord) DeleteMedicines(ids []string) ([]string, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.Medicines.Get(id); !ok {
			continue
		}
		delete(r.Medicines, id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		r.touch()
	}
	return removed, nil
}

// Retire anonymizes the record: identity and contact sections are cleared,
// ownership and sharing are dropped and the patient id is replaced with a
// random one. Clinical history stays in place.
func (r *PatientRecord) Retire(exitInfo JSONMap) error {
	if err := r.mutable(); err != nil {
		return err
	}
	now := time.Now().UTC()

	r.PersonalInfo.Identity = IdentitySection{}
	r.PersonalInfo.Contact = ContactSection{}
	r.OwnerID = nil
	r.AllowedUsers = []uuid.UUID{}
	r.PatientID = uuid.NewString()
	r.Status = PatientStatusRetired
	r.RetiredAt = &now
	if exitInfo != nil {
		r.ExitInfo = exitInfo
	}
	r.touch()
	return nil
}

// UpdatePersonalInfo replaces the intake sections. The citizen id cannot change.
func (r *PatientRecord) UpdatePersonalInfo(info PersonalInfo) error {
	if err := r.mutable(); err != nil {
		return err
	}
	if cid := info.CitizenID(); cid != "" && cid != r.PatientID {
		return apperrors.Validation("section_1.citizenID cannot change from %s", r.PatientID)
	}
	info.Identity.CitizenID = r.PatientID
	info.Identity.PatientID = r.PatientID
	r.PersonalInfo = info
	r.touch()
	return nil
}

// AddSignedHC stores the first submission of formType for the timestamp's date.
func (r *PatientRecord) AddSignedHC(formType string, data JSONMap, timestamp, actor string) (*SignedHC, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	date, err := r.signedHCDate(formType, data, timestamp)
	if err != nil {
		return nil, err
	}
	if _, exists := r.SignedHC[date][formType]; exists {
		return nil, apperrors.Duplicate(apperrors.CodeDuplicateSignedHC,
			fmt.Sprintf("%s form already signed on %s", formType, date))
	}

	id, err := r.signedHCID(data)
	if err != nil {
		return nil, err
	}
	entry := SignedHC{ID: id, Data: data, CreatedBy: actor, InsertTS: timestamp}
	if r.SignedHC[date] == nil {
		r.SignedHC[date] = map[string][]SignedHC{}
	}
	r.SignedHC[date][formType] = []SignedHC{entry}
	r.touch()
	return &entry, nil
}

// UpdateSignedHC appends a revision to an existing (date, formType) list.
func (r *PatientRecord) UpdateSignedHC(formType, id string, data JSONMap, timestamp, actor string) (*SignedHC, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	date, err := r.signedHCDate(formType, data, timestamp)
	if err != nil {
		return nil, err
	}
	list, exists := r.SignedHC[date][formType]
	if !exists {
		return nil, apperrors.NotFound(fmt.Sprintf("%s form on %s", formType, date), nil)
	}

	if id == "" {
		if id, err = r.signedHCID(data); err != nil {
			return nil, err
		}
	}
	entry := SignedHC{ID: id, Data: data, CreatedBy: actor, InsertTS: timestamp}
	r.SignedHC[date][formType] = append(list, entry)
	r.touch()
	return &entry, nil
}

// DeleteSignedHC removes every submission with id.
func (r *PatientRecord) DeleteSignedHC(id string) error {
	if err := r.mutable(); err != nil {
		return err
	}
	removed := 0
	for date, byType := range r.SignedHC {
		for formType, list := range byType {
			kept := list[:0]
			for _, e := range list {
				if e.ID == id {
					removed++
					continue
				}
				kept = append(kept, e)
			}
			if len(kept) == 0 {
				delete(byType, formType)
			} else {
				byType[formType] = kept
			}
		}
		if len(byType) == 0 {
			delete(r.SignedHC, date)
		}
	}
	if removed == 0 {
		return apperrors.NotFound(fmt.Sprintf("signed health check %s", id), nil)
	}
	r.touch()
	return nil
}

func (r *PatientRecord) signedHCDate(formType string, data JSONMap, timestamp string) (string, error) {
	if strings.TrimSpace(formType) == "" {
		return "", apperrors.Validation("signed_hc_type is required")
	}
	if len(data) == 0 {
		return "", apperrors.Validation("signed_hc_data is required")
	}
	date, err := jsdate.DateOf(timestamp)
	if err != nil {
		return "", apperrors.MalformedTimestamp(timestamp, err)
	}
	return date, nil
}

func (r *PatientRecord) signedHCID(data JSONMap) (string, error) {
	canon, err := hashid.Canonical(data)
	if err != nil {
		return "", apperrors.BadRequest("signed_hc_data is not serializable", err)
	}
	return hashid.Derive(r.PatientID, canon), nil
}

// AddNote stores a note. Re-adding identical content at the same
// timestamp yields the same id and overwrites.
func (r *PatientRecord) AddNote(title, body, timestamp, actor string) (*Note, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.Validation("note_title is required")
	}
	t, err := jsdate.Parse(timestamp)
	if err != nil {
		return nil, apperrors.MalformedTimestamp(timestamp, err)
	}

	note := &Note{
		ID:        hashid.Derive(r.PatientID, title, body, timestamp),
		Title:     title,
		Body:      body,
		Date:      t.Format(jsdate.NoteStamp),
		CreatedBy: actor,
		Timestamp: timestamp,
	}
	r.Notes[note.ID] = note
	r.touch()
	return note, nil
}

func (r *PatientRecord) DeleteNote(id string) error {
	if err := r.mutable(); err != nil {
		return err
	}
	if _, ok := r.Notes[id]; !ok {
		return apperrors.NotFound(fmt.Sprintf("note %s", id), nil)
	}
	delete(r.Notes, id)
	r.touch()
	return nil
}

// AddVital appends a reading to the series for vt.
func (r *PatientRecord) AddVital(vt VitalType, value float64, timestamp string) (*VitalReading, error) {
	if err := r.mutable(); err != nil {
		return nil, err
	}
	if !vt.Valid() {
		return nil, apperrors.Validation("unknown vital_type %q", vt)
	}
	date, err := jsdate.DateOf(timestamp)
	if err != nil {
		return nil, apperrors.MalformedTimestamp(timestamp, err)
	}

	reading := VitalReading{Value: value, Date: date, Timestamp: timestamp}
	r.Vitals[vt] = append(r.Vitals[vt], reading)
	r.touch()
	return &reading, nil
}
