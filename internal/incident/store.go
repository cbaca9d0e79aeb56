package incident

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrStorage wraps storage-layer faults. A failed append is fatal to that
// write: the caller must keep the record and retry, never drop it.
var ErrStorage = errors.New("incident storage fault")

// Store is the append-only incident log contract.
// Records are ordered by resolution time and never mutated after Append.
type Store interface {
	// Append writes one immutable record.
	Append(ctx context.Context, r Record) error
	// Query returns records matching the filter, ordered by resolution time.
	Query(ctx context.Context, f Filter) ([]Record, error)
}

// MemoryStore is an in-memory Store used in tests and ephemeral setups.
type MemoryStore struct {
	// mu guards records.
	mu sync.RWMutex
	// records holds appended records in arrival order.
	records []Record
}

// NewMemoryStore creates an empty in-memory incident log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append writes one immutable record.
func (s *MemoryStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)

	return nil
}

// Query returns matching records ordered by resolution time ascending.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Record
	for _, r := range s.records {
		if f.matches(r) {
			result = append(result, r)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ResolvedAt.Before(result[j].ResolvedAt)
	})

	return result, nil
}
