package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

// patientRow is the storage shape: scalar columns plus JSONB documents.
type patientRow struct {
	ID            uuid.UUID  `db:"id"`
	PatientID     string     `db:"patient_id"`
	OwnerID       *uuid.UUID `db:"owner_id"`
	AllowedUsers  string     `db:"allowed_users"`
	Status        string     `db:"status"`
	SchemaVersion int        `db:"schema_version"`
	PersonalInfo  string     `db:"personal_info"`
	Medicines     string     `db:"medicines"`
	SignedHC      string     `db:"signed_hc"`
	Vitals        string     `db:"vitals"`
	Notes         string     `db:"notes"`
	ExitInfo      *string    `db:"exit_info"`
	RetiredAt     *time.Time `db:"retired_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type jsonColumn struct {
	raw  string
	dst  interface{}
	name string
}

const patientColumns = `
	id, patient_id, owner_id, allowed_users, status, schema_version,
	personal_info, medicines, signed_hc, vitals, notes, exit_info,
	retired_at, created_at, updated_at
`

func (r *patientRepository) Create(ctx context.Context, record *model.PatientRecord, event *model.OutboxEvent) error {
	row, err := toPatientRow(record)
	if err != nil {
		return err
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO patients (` + patientColumns + `) VALUES (
			:id, :patient_id, :owner_id, :allowed_users, :status, :schema_version,
			:personal_info, :medicines, :signed_hc, :vitals, :notes, :exit_info,
			:retired_at, :created_at, :updated_at
		)`
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return translate(err)
		}
		return r.insertOutboxEvent(ctx, tx, event)
	})
}

func (r *patientRepository) GetByPatientID(ctx context.Context, patientID string) (*model.PatientRecord, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE patient_id = $1`

	var row patientRow
	if err := r.GetDB().GetContext(ctx, &row, query, patientID); err != nil {
		return nil, notFoundOr(err, "patient")
	}
	return fromPatientRow(&row)
}

// Update overwrites the whole document. The row is matched on its
// internal id because retirement changes patient_id.
func (r *patientRepository) Update(ctx context.Context, record *model.PatientRecord, event *model.OutboxEvent) error {
	row, err := toPatientRow(record)
	if err != nil {
		return err
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE patients SET
				patient_id = :patient_id,
				owner_id = :owner_id,
				allowed_users = :allowed_users,
				status = :status,
				schema_version = :schema_version,
				personal_info = :personal_info,
				medicines = :medicines,
				signed_hc = :signed_hc,
				vitals = :vitals,
				notes = :notes,
				exit_info = :exit_info,
				retired_at = :retired_at,
				updated_at = :updated_at
			WHERE id = :id
		`
		result, err := tx.NamedExecContext(ctx, query, row)
		if err != nil {
			return translate(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("patient %s: %w", record.PatientID, repository.ErrNotFound)
		}
		return r.insertOutboxEvent(ctx, tx, event)
	})
}

func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.PatientRecord, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.VisibleTo != nil {
		args = append(args, *filter.VisibleTo)
		query += fmt.Sprintf(" AND (owner_id = $%d OR allowed_users @> jsonb_build_array($%d::text))", len(args), len(args))
	}
	query += " ORDER BY created_at DESC"

	var rows []patientRow
	if err := r.GetDB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	records := make([]*model.PatientRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromPatientRow(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func toPatientRow(rec *model.PatientRecord) (*patientRow, error) {
	row := &patientRow{
		ID:            rec.ID,
		PatientID:     rec.PatientID,
		OwnerID:       rec.OwnerID,
		Status:        string(rec.Status),
		SchemaVersion: rec.SchemaVersion,
		RetiredAt:     rec.RetiredAt,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}

	fields := []struct {
		dst  *string
		src  interface{}
		name string
	}{
		{&row.AllowedUsers, rec.AllowedUsers, "allowed_users"},
		{&row.PersonalInfo, rec.PersonalInfo, "personal_info"},
		{&row.Medicines, rec.Medicines, "medicines"},
		{&row.SignedHC, rec.SignedHC, "signed_hc"},
		{&row.Vitals, rec.Vitals, "vitals"},
		{&row.Notes, rec.Notes, "notes"},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", f.name, err)
		}
		*f.dst = string(data)
	}

	if rec.ExitInfo != nil {
		data, err := json.Marshal(rec.ExitInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal exit_info: %w", err)
		}
		exit := string(data)
		row.ExitInfo = &exit
	}
	return row, nil
}

func fromPatientRow(row *patientRow) (*model.PatientRecord, error) {
	rec := &model.PatientRecord{
		Base: model.Base{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		},
		SchemaVersion: row.SchemaVersion,
		PatientID:     row.PatientID,
		OwnerID:       row.OwnerID,
		Status:        model.PatientStatus(row.Status),
		RetiredAt:     row.RetiredAt,
	}

	columns := []jsonColumn{
		{row.AllowedUsers, &rec.AllowedUsers, "allowed_users"},
		{row.PersonalInfo, &rec.PersonalInfo, "personal_info"},
		{row.Medicines, &rec.Medicines, "medicines"},
		{row.SignedHC, &rec.SignedHC, "signed_hc"},
		{row.Vitals, &rec.Vitals, "vitals"},
		{row.Notes, &rec.Notes, "notes"},
	}
	if row.ExitInfo != nil {
		columns = append(columns, jsonColumn{*row.ExitInfo, &rec.ExitInfo, "exit_info"})
	}
	for _, c := range columns {
		if c.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s of patient %s: %w", c.name, row.PatientID, err)
		}
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("patient %s: %w", row.PatientID, err)
	}
	return rec, nil
}
