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

type fileRepository struct {
	mu    sync.RWMutex
	files map[uuid.UUID]model.File
}

func NewFileRepository() repository.FileRepository {
	return &fileRepository{files: make(map[uuid.UUID]model.File)}
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[file.ID]; ok {
		return fmt.Errorf("file %s: %w", file.ID, repository.ErrDuplicate)
	}
	r.files[file.ID] = *file
	return nil
}

func (r *fileRepository) Get(ctx context.Context, id uuid.UUID) (*model.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, repository.ErrNotFound)
	}
	return &f, nil
}

func (r *fileRepository) Update(ctx context.Context, file *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[file.ID]
	if !ok {
		return fmt.Errorf("file %s: %w", file.ID, repository.ErrNotFound)
	}
	f.Name = file.Name
	f.Category = file.Category
	r.files[file.ID] = f
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return fmt.Errorf("file %s: %w", id, repository.ErrNotFound)
	}
	delete(r.files, id)
	return nil
}

func (r *fileRepository) List(ctx context.Context, filter model.FileFilter) ([]*model.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.File, 0)
	for _, f := range r.files {
		if f.OwnerID != filter.OwnerID {
			continue
		}
		if filter.PatientID != "" && f.PatientID != filter.PatientID {
			continue
		}
		f.Data = ""
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}
