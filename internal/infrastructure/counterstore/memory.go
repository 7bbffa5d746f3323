package counterstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/sequence"
)

// MemoryStore keeps counters in process memory. Counters do not survive a
// restart and are not shared between processes.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ sequence.AdminStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]int64)}
}

// FindAndIncrement implements sequence.Store.
func (s *MemoryStore) FindAndIncrement(ctx context.Context, counterID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[counterID] == math.MaxInt64 {
		return 0, apperror.NewStorageInvariantViolation(counterID, "counter is exhausted")
	}
	s.counters[counterID]++
	return s.counters[counterID], nil
}

// Get implements sequence.Inspector.
func (s *MemoryStore) Get(ctx context.Context, counterID string) (sequence.Record, error) {
	if err := ctx.Err(); err != nil {
		return sequence.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.counters[counterID]
	if !ok {
		return sequence.Record{}, apperror.NewNotFound("counter", counterID)
	}
	return sequence.Record{CounterID: counterID, SequenceValue: v}, nil
}

// List implements sequence.Inspector.
func (s *MemoryStore) List(ctx context.Context, prefix string, limit int) ([]sequence.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	s.mu.Lock()
	ids := make([]string, 0, len(s.counters))
	for id := range s.counters {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	records := make([]sequence.Record, len(ids))
	for i, id := range ids {
		records[i] = sequence.Record{CounterID: id, SequenceValue: s.counters[id]}
	}
	s.mu.Unlock()

	return records, nil
}

// Raise implements sequence.Inspector.
func (s *MemoryStore) Raise(ctx context.Context, counterID string, value int64) (int64, error) {
	if err := checkRaise(counterID, value); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if value > s.counters[counterID] {
		s.counters[counterID] = value
	}
	return s.counters[counterID], nil
}

// Ping implements sequence.AdminStore.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return sequence.DefaultListLimit
	}
	return limit
}

func checkRaise(counterID string, value int64) error {
	if counterID == "" {
		return apperror.NewValidation("counter id is required")
	}
	if value < 0 {
		return apperror.NewValidation("counter value must not be negative").
			WithDetail("counter_id", counterID).
			WithDetail("value", value)
	}
	return nil
}
