package medicine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/service"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

const listCacheKey = "medicines:all"

// Service manages the shared medicine catalog. Listings are cached and
// the cache is dropped whenever an entry is created.
type Service struct {
	repo  repository.MedicineRepository
	cache *cache.Cache
}

func NewService(repo repository.MedicineRepository, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Ensure returns the catalog entry for name and category, creating it on
// first reference. created reports whether a new entry was stored.
func (s *Service) Ensure(ctx context.Context, name, category string) (*model.Medicine, bool, error) {
	m := model.NewMedicine(name, category)
	if m.Data.Name == "" || m.Data.Category == "" {
		return nil, false, apperrors.Validation("medicine_name and medicine_category are required")
	}

	existing, err := s.repo.Get(ctx, m.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.Internal(fmt.Errorf("failed to look up medicine: %w", err))
	}

	if err := s.repo.Create(ctx, m); err != nil {
		// Lost a race with another writer; the entry now exists.
		if errors.Is(err, repository.ErrDuplicate) {
			existing, getErr := s.repo.Get(ctx, m.ID)
			if getErr != nil {
				return nil, false, service.FromRepository(getErr, "medicine", "")
			}
			return existing, false, nil
		}
		return nil, false, apperrors.Internal(fmt.Errorf("failed to create medicine: %w", err))
	}

	s.cache.Delete(listCacheKey)
	log.Debug().Str("medicine_id", m.ID).Str("name", m.Data.Name).Msg("medicine added to catalog")
	return m, true, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Medicine, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.FromRepository(err, "medicine", "")
	}
	return m, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Medicine, error) {
	if cached, ok := s.cache.Get(listCacheKey); ok {
		return cached.([]*model.Medicine), nil
	}

	medicines, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list medicines: %w", err))
	}
	s.cache.SetDefault(listCacheKey, medicines)
	return medicines, nil
}
