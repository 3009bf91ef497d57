package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		permission_codes JSONB NOT NULL DEFAULT '[]',
		login_attempts INT NOT NULL DEFAULT 0,
		locked_until TIMESTAMPTZ,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id UUID PRIMARY KEY,
		patient_id TEXT NOT NULL UNIQUE,
		owner_id UUID REFERENCES users(id) ON DELETE SET NULL,
		allowed_users JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'active',
		schema_version INT NOT NULL,
		personal_info JSONB NOT NULL DEFAULT '{}',
		medicines JSONB NOT NULL DEFAULT '{}',
		signed_hc JSONB NOT NULL DEFAULT '{}',
		vitals JSONB NOT NULL DEFAULT '{}',
		notes JSONB NOT NULL DEFAULT '{}',
		exit_info JSONB,
		retired_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_owner ON patients (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_allowed_users ON patients USING GIN (allowed_users)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		patient_id TEXT NOT NULL,
		patient_firstname TEXT NOT NULL DEFAULT '',
		patient_lastname TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL,
		file_category TEXT NOT NULL DEFAULT '',
		file_size BIGINT NOT NULL,
		file_type TEXT NOT NULL,
		uploaded_by TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL,
		file_data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_owner_patient ON files (owner_id, patient_id)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		retry_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_status_created ON outbox_events (status, created_at)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
