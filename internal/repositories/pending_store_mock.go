package repositories

import (
	"context"
	"sync"
	"time"

	"flipacademy/internal/models"
)

// MockPendingStore is an in-memory implementation of PendingPaymentStore.
// Expiry is checked lazily on Load, mirroring the Redis TTL behaviour.
type MockPendingStore struct {
	records    map[string]pendingEntry
	signals    map[string]string
	references map[string]string
	mu         sync.Mutex

	// Now is swappable so tests can age records without sleeping.
	Now func() time.Time
}

type pendingEntry struct {
	record    models.PendingPayment
	expiresAt time.Time
}

// NewMockPendingStore creates a new instance of MockPendingStore.
func NewMockPendingStore() *MockPendingStore {
	return &MockPendingStore{
		records:    make(map[string]pendingEntry),
		signals:    make(map[string]string),
		references: make(map[string]string),
		Now:        time.Now,
	}
}

// Load returns the stored record if present and unexpired.
func (s *MockPendingStore) Load(_ context.Context, userID string) (*models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && s.Now().After(entry.expiresAt) {
		delete(s.records, userID)
		return nil, nil
	}
	if entry.record.Version != models.PendingPaymentVersion {
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

// Save stores the record with a TTL.
func (s *MockPendingStore) Save(_ context.Context, userID string, record *models.PendingPayment, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Version = models.PendingPaymentVersion
	entry := pendingEntry{record: *record}
	if ttl > 0 {
		entry.expiresAt = s.Now().Add(ttl)
	}
	s.records[userID] = entry
	if record.ExternalReference != "" {
		s.references[record.ExternalReference] = userID
	}
	return nil
}

// Delete removes the record.
func (s *MockPendingStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

// SignalSuccess writes the success-signal key.
func (s *MockPendingStore) SignalSuccess(_ context.Context, userID string, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals[userID] = paymentID
	return nil
}

// ConsumeSignal reads and clears the success signal.
func (s *MockPendingStore) ConsumeSignal(_ context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paymentID, ok := s.signals[userID]
	if !ok {
		return "", false, nil
	}
	delete(s.signals, userID)
	return paymentID, true, nil
}

// ResolveReference looks up the user indexed under an external reference.
func (s *MockPendingStore) ResolveReference(_ context.Context, externalReference string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.references[externalReference], nil
}
