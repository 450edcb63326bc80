// Package memory keeps execution records in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"http-primer/internal/domain"
)

type executionRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.ExecutionRecord
}

// NewExecutionRepository creates an in-memory domain.ExecutionRepository.
func NewExecutionRepository() domain.ExecutionRepository {
	return &executionRepository{records: make(map[string]*domain.ExecutionRecord)}
}

func (r *executionRepository) Save(_ context.Context, record *domain.ExecutionRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	cp := *record
	cp.Args = append([]string(nil), record.Args...)

	r.mu.Lock()
	r.records[record.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *executionRepository) Get(_ context.Context, id string) (*domain.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	cp := *record
	return &cp, nil
}

// List returns records newest first; ties on queued time are ordered by position, then ID.
func (r *executionRepository) List(_ context.Context, page, pageSize int) ([]*domain.ExecutionRecord, error) {
	r.mu.RLock()
	all := make([]*domain.ExecutionRecord, 0, len(r.records))
	for _, record := range r.records {
		cp := *record
		all = append(all, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].QueuedAt.Equal(all[j].QueuedAt) {
			return all[i].QueuedAt.After(all[j].QueuedAt)
		}
		if all[i].Position != all[j].Position {
			return all[i].Position < all[j].Position
		}
		return all[i].ID < all[j].ID
	})

	start := (page - 1) * pageSize
	if page < 1 || pageSize <= 0 || start >= len(all) {
		return []*domain.ExecutionRecord{}, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], nil
}

func (r *executionRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, record := range r.records {
		if record.Status.Finished() && record.EndTime.Before(cutoff) {
			delete(r.records, id)
			deleted++
		}
	}
	return deleted, nil
}
