package model

import (
	"time"

	"github.com/google/uuid"
)

// Permission codes granted to accounts.
const (
	PermViewDashboard        = "view_dashboard"
	PermViewPatients         = "view_patients"
	PermViewDrugs            = "view_drugs"
	PermViewFiles            = "view_files"
	PermEditPatient          = "edit_patient"
	PermEditPatientMedicines = "edit_patient_medicines"
	PermEditPatientNotes     = "edit_patient_notes"
	PermEditPatientHC        = "edit_patient_hc"
	PermEditPatientVitals    = "edit_patient_vitals"
	PermExportMedications    = "export_medications"
	PermAddPatient           = "add_patient"
	PermAddFile              = "add_file"
	PermEditFile             = "edit_file"
	PermDeleteFile           = "delete_file"
	PermViewPatientDetail    = "view_patient_detail"
	PermAccessAdmin          = "access_admin"
)

// DefaultPermissions are granted to every new account.
var DefaultPermissions = []string{
	PermViewDashboard,
	PermViewPatients,
	PermViewDrugs,
	PermViewFiles,
	PermEditPatient,
	PermEditPatientMedicines,
	PermEditPatientNotes,
	PermEditPatientHC,
	PermEditPatientVitals,
	PermExportMedications,
	PermAddPatient,
	PermAddFile,
	PermEditFile,
	PermDeleteFile,
	PermViewPatientDetail,
}

// AllPermissions lists every known code, staff-only ones included.
var AllPermissions = append(append([]string{}, DefaultPermissions...), PermAccessAdmin)

// IsKnownPermission reports whether code is a defined permission.
func IsKnownPermission(code string) bool {
	for _, p := range AllPermissions {
		if p == code {
			return true
		}
	}
	return false
}

// User represents a caregiver account
type User struct {
	Base
	Email           string     `json:"email" db:"email"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	IsStaff         bool       `json:"is_staff" db:"is_staff"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	PermissionCodes []string   `json:"permission_codes" db:"-"`
	LoginAttempts   int        `json:"-" db:"login_attempts"`
	LockedUntil     *time.Time `json:"-" db:"locked_until"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// HasPermission reports whether the user holds code. Staff hold every code.
func (u *User) HasPermission(code string) bool {
	if u.IsStaff {
		return true
	}
	for _, p := range u.PermissionCodes {
		if p == code {
			return true
		}
	}
	return false
}

// IsLocked reports whether login is blocked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// UpdateUserRequest represents admin changes to an account
type UpdateUserRequest struct {
	PermissionCodes []string `json:"permission_codes"`
	IsStaff         *bool    `json:"is_staff"`
	IsActive        *bool    `json:"is_active"`
}

// PatientAccess lists who may see a patient record.
type PatientAccess struct {
	PatientID    string      `json:"patient_id"`
	OwnerID      *uuid.UUID  `json:"user"`
	AllowedUsers []uuid.UUID `json:"allowed_users"`
}

type UpdatePatientAccessRequest struct {
	UserIDs []uuid.UUID `json:"user_ids"`
}
