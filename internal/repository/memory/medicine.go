package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

type medicineRepository struct {
	mu        sync.RWMutex
	medicines map[string]model.Medicine
}

func NewMedicineRepository() repository.MedicineRepository {
	return &medicineRepository{medicines: make(map[string]model.Medicine)}
}

func (r *medicineRepository) Create(ctx context.Context, medicine *model.Medicine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.medicines[medicine.ID]; ok {
		return fmt.Errorf("medicine %s: %w", medicine.ID, repository.ErrDuplicate)
	}
	r.medicines[medicine.ID] = *medicine
	return nil
}

func (r *medicineRepository) Get(ctx context.Context, id string) (*model.Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.medicines[id]
	if !ok {
		return nil, fmt.Errorf("medicine %s: %w", id, repository.ErrNotFound)
	}
	return &m, nil
}

func (r *medicineRepository) List(ctx context.Context) ([]*model.Medicine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Medicine, 0, len(r.medicines))
	for _, m := range r.medicines {
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Data.Category != out[j].Data.Category {
			return out[i].Data.Category < out[j].Data.Category
		}
		return out[i].Data.Name < out[j].Data.Name
	})
	return out, nil
}
