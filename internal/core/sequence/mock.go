package sequence

import (
	"context"
	"sync"
)

// MockStore is a test implementation of Store.
// Use in unit tests to avoid database dependencies.
type MockStore struct {
	FindAndIncrementFunc func(ctx context.Context, counterID string) (int64, error)

	mu     sync.Mutex
	values map[string]int64
	calls  []string
}

// FindAndIncrement implements Store.
func (m *MockStore) FindAndIncrement(ctx context.Context, counterID string) (int64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, counterID)
	m.mu.Unlock()

	if m.FindAndIncrementFunc != nil {
		return m.FindAndIncrementFunc(ctx, counterID)
	}

	// Default: predictable per-counter sequence starting at 1
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	m.values[counterID]++
	return m.values[counterID], nil
}

// Calls returns the counter ids passed to FindAndIncrement, in order.
func (m *MockStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Ensure compile-time interface compliance.
var _ Store = (*MockStore)(nil)
