package repositories

import (
	"context"
	"sync"
)

// MockCartStore is an in-memory implementation of CartStore.
type MockCartStore struct {
	carts map[string]CartRecord
	mu    sync.RWMutex
}

// NewMockCartStore creates a new instance of MockCartStore.
func NewMockCartStore() *MockCartStore {
	return &MockCartStore{
		carts: make(map[string]CartRecord),
	}
}

// Load returns the stored cart record, or an empty one.
func (s *MockCartStore) Load(_ context.Context, userID string) (*CartRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.carts[userID]
	if !ok {
		return &CartRecord{}, nil
	}
	// Copy the slice so callers cannot mutate stored state.
	out := CartRecord{Coupon: record.Coupon}
	out.Items = append(out.Items, record.Items...)
	return &out, nil
}

// Save stores the cart record.
func (s *MockCartStore) Save(_ context.Context, userID string, record *CartRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := CartRecord{Coupon: record.Coupon}
	stored.Items = append(stored.Items, record.Items...)
	s.carts[userID] = stored
	return nil
}

// Delete removes the cart record.
func (s *MockCartStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, userID)
	return nil
}
