package store

import (
	"context"
	"sync"

	"github.com/pixelgate/pixelgate/internal/domain"
)

// MemoryUsageStore keeps usage records in memory. It backs
// deployments without a database and the tests.
type MemoryUsageStore struct {
	mu      sync.Mutex
	records []domain.TransformUsage
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

func (s *MemoryUsageStore) RecordUsage(_ context.Context, usage domain.TransformUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, usage)
	return nil
}

// Records returns a copy of everything recorded so far.
func (s *MemoryUsageStore) Records() []domain.TransformUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TransformUsage, len(s.records))
	copy(out, s.records)
	return out
}
