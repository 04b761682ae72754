package repository

import (
	"context"
	"sync"

	"github.com/studylog/core/internal/ports"
)

// MemorySelectionRepository keeps selections in process memory. Selections
// are lost on restart.
type MemorySelectionRepository struct {
	mu         sync.RWMutex
	selections map[string]string
}

// NewMemorySelectionRepository creates an empty in-memory selection store
func NewMemorySelectionRepository() ports.SelectionRepository {
	return &MemorySelectionRepository{selections: make(map[string]string)}
}

// Get returns the database a session selected
func (r *MemorySelectionRepository) Get(ctx context.Context, sessionID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	collection, ok := r.selections[sessionID]
	return collection, ok, nil
}

// Set records a session's selection
func (r *MemorySelectionRepository) Set(ctx context.Context, sessionID, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections[sessionID] = collection
	return nil
}

// Reassign moves every session on from to to and reports how many moved
func (r *MemorySelectionRepository) Reassign(ctx context.Context, from, to string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var moved int64
	for sid, collection := range r.selections {
		if collection == from {
			r.selections[sid] = to
			moved++
		}
	}
	return moved, nil
}

// Ping always succeeds for the in-memory store
func (r *MemorySelectionRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (r *MemorySelectionRepository) Close() error {
	return nil
}
