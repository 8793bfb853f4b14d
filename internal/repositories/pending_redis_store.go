package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flipacademy/internal/models"

	"github.com/redis/go-redis/v9"
)

// Fixed key namespaces. Resume-on-restart depends on these staying stable.
const (
	pendingKeyPrefix   = "pending_payment"
	signalKeyPrefix    = "payment_success_signal"
	referenceKeyPrefix = "payment_reference"
)

// RedisPendingStore is a Redis implementation of PendingPaymentStore. The
// record TTL doubles as the freshness window: a record that outlives it is
// simply gone on the next load.
type RedisPendingStore struct {
	client *redis.Client
}

// NewRedisPendingStore creates a new RedisPendingStore.
func NewRedisPendingStore(client *redis.Client) *RedisPendingStore {
	return &RedisPendingStore{client: client}
}

func pendingKey(userID string) string {
	return fmt.Sprintf("%s:%s", pendingKeyPrefix, userID)
}

func signalKey(userID string) string {
	return fmt.Sprintf("%s:%s", signalKeyPrefix, userID)
}

func referenceKey(externalReference string) string {
	return fmt.Sprintf("%s:%s", referenceKeyPrefix, externalReference)
}

// Load reads the pending payment record. Missing or unparseable records and
// records from an older schema version yield (nil, nil).
func (s *RedisPendingStore) Load(ctx context.Context, userID string) (*models.PendingPayment, error) {
	raw, err := s.client.Get(ctx, pendingKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending payment for user %s: %w", userID, err)
	}

	var record models.PendingPayment
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, nil
	}
	if record.Version != models.PendingPaymentVersion {
		return nil, nil
	}
	return &record, nil
}

// Save writes the record as one blob with the given TTL. Records carrying an
// external reference also index it, so a provider webhook can find the user;
// the index shares the record's TTL and expires with it.
func (s *RedisPendingStore) Save(ctx context.Context, userID string, record *models.PendingPayment, ttl time.Duration) error {
	record.Version = models.PendingPaymentVersion
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal pending payment for user %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, pendingKey(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save pending payment for user %s: %w", userID, err)
	}
	if record.ExternalReference != "" {
		if err := s.client.Set(ctx, referenceKey(record.ExternalReference), userID, ttl).Err(); err != nil {
			return fmt.Errorf("failed to index payment reference for user %s: %w", userID, err)
		}
	}
	return nil
}

// Delete removes the pending payment record.
func (s *RedisPendingStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, pendingKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending payment for user %s: %w", userID, err)
	}
	return nil
}

// SignalSuccess writes the success-signal key for the user's waiting session.
// A short TTL keeps an unconsumed signal from lingering forever.
func (s *RedisPendingStore) SignalSuccess(ctx context.Context, userID string, paymentID string) error {
	if err := s.client.Set(ctx, signalKey(userID), paymentID, 10*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to write success signal for user %s: %w", userID, err)
	}
	return nil
}

// ConsumeSignal atomically reads and clears the success signal.
func (s *RedisPendingStore) ConsumeSignal(ctx context.Context, userID string) (string, bool, error) {
	paymentID, err := s.client.GetDel(ctx, signalKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to consume success signal for user %s: %w", userID, err)
	}
	return paymentID, true, nil
}

// ResolveReference looks up the user indexed under an external reference.
func (s *RedisPendingStore) ResolveReference(ctx context.Context, externalReference string) (string, error) {
	userID, err := s.client.Get(ctx, referenceKey(externalReference)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve payment reference %s: %w", externalReference, err)
	}
	return userID, nil
}
