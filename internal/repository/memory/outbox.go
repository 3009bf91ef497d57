package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

// OutboxRepository keeps events in memory. Events exposes them to tests.
type OutboxRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID]*model.OutboxEvent
	order  map[uuid.UUID]uint64
	seq    uint64
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		events: make(map[uuid.UUID]*model.OutboxEvent),
		order:  make(map[uuid.UUID]uint64),
	}
}

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	cp := *event
	r.mu.Lock()
	r.seq++
	r.events[cp.ID] = &cp
	r.order[cp.ID] = r.seq
	r.mu.Unlock()
	return nil
}

func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit, maxRetries int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.OutboxEvent, 0)
	for _, e := range r.events {
		retryable := e.Status == model.OutboxStatusFailed && e.RetryCount < maxRetries
		if e.Status == model.OutboxStatusPending || retryable {
			cp := *e
			out = append(out, &cp)
		}
	}
	r.sortByInsertion(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return fmt.Errorf("outbox event %s: %w", id, repository.ErrNotFound)
	}
	now := time.Now().UTC()
	e.Status = status
	e.ErrorMessage = errMsg
	e.UpdatedAt = now
	switch status {
	case model.OutboxStatusFailed:
		e.RetryCount++
	case model.OutboxStatusProcessed:
		e.ProcessedAt = &now
	}
	return nil
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.events, id)
			delete(r.order, id)
			n++
		}
	}
	return n, nil
}

// Events returns a snapshot of every stored event, oldest first.
func (r *OutboxRepository) Events() []model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	ptrs := make([]*model.OutboxEvent, 0, len(r.events))
	for _, e := range r.events {
		ptrs = append(ptrs, e)
	}
	r.sortByInsertion(ptrs)

	out := make([]model.OutboxEvent, 0, len(ptrs))
	for _, e := range ptrs {
		out = append(out, *e)
	}
	return out
}

func (r *OutboxRepository) sortByInsertion(events []*model.OutboxEvent) {
	sort.Slice(events, func(i, j int) bool {
		return r.order[events[i].ID] < r.order[events[j].ID]
	})
}
