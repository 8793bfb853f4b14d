package repositories

import (
	"context"

	"flipacademy/internal/models"
)

// CartRecord is the durable cart blob: the item collection plus the optional
// active coupon reference.
type CartRecord struct {
	Items  []models.CartItem `json:"items"`
	Coupon *models.Coupon    `json:"coupon,omitempty"`
}

// CartStore defines durable storage for per-user carts. Every cart mutation
// is persisted synchronously; the cart is reloaded at session start.
type CartStore interface {
	Load(ctx context.Context, userID string) (*CartRecord, error)
	Save(ctx context.Context, userID string, record *CartRecord) error
	Delete(ctx context.Context, userID string) error
}
