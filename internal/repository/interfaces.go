package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	// PatientRepository stores whole patient documents. Writes carry the
	// outbox event describing the change so both land together.
	PatientRepository interface {
		Create(ctx context.Context, record *model.PatientRecord, event *model.OutboxEvent) error
		GetByPatientID(ctx context.Context, patientID string) (*model.PatientRecord, error)
		Update(ctx context.Context, record *model.PatientRecord, event *model.OutboxEvent) error
		List(ctx context.Context, filter model.PatientFilter) ([]*model.PatientRecord, error)
	}

	MedicineRepository interface {
		Create(ctx context.Context, medicine *model.Medicine) error
		Get(ctx context.Context, id string) (*model.Medicine, error)
		List(ctx context.Context) ([]*model.Medicine, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		List(ctx context.Context) ([]*model.User, error)
	}

	// FileRepository lists files without their content; Get returns it.
	FileRepository interface {
		Create(ctx context.Context, file *model.File) error
		Get(ctx context.Context, id uuid.UUID) (*model.File, error)
		Update(ctx context.Context, file *model.File) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.FileFilter) ([]*model.File, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit, maxRetries int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
