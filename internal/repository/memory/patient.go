package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

type patientRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*model.PatientRecord
	outbox  repository.OutboxRepository
}

// NewPatientRepository stores patients in memory and appends their events to outbox.
func NewPatientRepository(outbox repository.OutboxRepository) repository.PatientRepository {
	return &patientRepository{
		records: make(map[uuid.UUID]*model.PatientRecord),
		outbox:  outbox,
	}
}

func (r *patientRepository) Create(ctx context.Context, record *model.PatientRecord, event *model.OutboxEvent) error {
	stored, err := clone(record)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.PatientID == record.PatientID {
			return fmt.Errorf("patient %s: %w", record.PatientID, repository.ErrDuplicate)
		}
	}
	if _, ok := r.records[record.ID]; ok {
		return fmt.Errorf("patient row %s: %w", record.ID, repository.ErrDuplicate)
	}
	r.records[record.ID] = stored
	return r.emit(ctx, event)
}

func (r *patientRepository) GetByPatientID(ctx context.Context, patientID string) (*model.PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.PatientID == patientID {
			out, err := clone(rec)
			if err != nil {
				return nil, err
			}
			if err := out.Validate(); err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("patient %s: %w", patientID, repository.ErrNotFound)
}

func (r *patientRepository) Update(ctx context.Context, record *model.PatientRecord, event *model.OutboxEvent) error {
	stored, err := clone(record)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.ID]; !ok {
		return fmt.Errorf("patient %s: %w", record.PatientID, repository.ErrNotFound)
	}
	for id, existing := range r.records {
		if id != record.ID && existing.PatientID == record.PatientID {
			return fmt.Errorf("patient %s: %w", record.PatientID, repository.ErrDuplicate)
		}
	}
	r.records[record.ID] = stored
	return r.emit(ctx, event)
}

func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.PatientRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.VisibleTo != nil && !rec.CanAccess(*filter.VisibleTo) {
			continue
		}
		c, err := clone(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *patientRepository) emit(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || r.outbox == nil {
		return nil
	}
	return r.outbox.Create(ctx, event)
}
