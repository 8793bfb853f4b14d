package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// cartKeyPrefix is the fixed cart storage namespace. The name is load-bearing:
// carts written under it survive restarts and are reloaded at session start.
const cartKeyPrefix = "flip_cart"

// RedisCartStore is a Redis implementation of CartStore.
type RedisCartStore struct {
	client *redis.Client
}

// NewRedisCartStore creates a new RedisCartStore.
func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	return &RedisCartStore{client: client}
}

func cartKey(userID string) string {
	return fmt.Sprintf("%s:%s", cartKeyPrefix, userID)
}

// Load reads the cart record for a user. A missing key yields an empty cart.
func (s *RedisCartStore) Load(ctx context.Context, userID string) (*CartRecord, error) {
	raw, err := s.client.Get(ctx, cartKey(userID)).Result()
	if err == redis.Nil {
		return &CartRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart for user %s: %w", userID, err)
	}

	var record CartRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// A corrupt blob should not brick the cart forever.
		return &CartRecord{}, nil
	}
	return &record, nil
}

// Save writes the cart record synchronously.
func (s *RedisCartStore) Save(ctx context.Context, userID string, record *CartRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal cart for user %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, cartKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cart for user %s: %w", userID, err)
	}
	return nil
}

// Delete removes the cart record entirely.
func (s *RedisCartStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart for user %s: %w", userID, err)
	}
	return nil
}
