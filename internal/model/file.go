package model

import (
	"time"

	"github.com/google/uuid"
)

// File is an uploaded patient document. Its content is kept as base64.
type File struct {
	ID               uuid.UUID `json:"file_id" db:"id"`
	OwnerID          uuid.UUID `json:"user" db:"owner_id"`
	PatientID        string    `json:"patient_id" db:"patient_id"`
	PatientFirstName string    `json:"patient_firstname" db:"patient_firstname"`
	PatientLastName  string    `json:"patient_lastname" db:"patient_lastname"`
	Name             string    `json:"file_name" db:"file_name"`
	Category         string    `json:"file_category" db:"file_category"`
	Size             int64     `json:"file_size" db:"file_size"`
	Type             string    `json:"file_type" db:"file_type"`
	UploadedBy       string    `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt       time.Time `json:"uploaded_date" db:"uploaded_at"`
	Data             string    `json:"file_data,omitempty" db:"file_data"`
}

type FileFilter struct {
	OwnerID   uuid.UUID
	PatientID string
}

type UploadFileRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
	Name      string `json:"file_name" binding:"required"`
	Category  string `json:"file_category"`
	Data      string `json:"file_data" binding:"required"`
}

type UpdateFileRequest struct {
	Name     *string `json:"file_name"`
	Category *string `json:"file_category"`
}
