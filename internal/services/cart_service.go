package services

import (
	"context"
	"fmt"
	"strings"

	"flipacademy/internal/models"
	"flipacademy/internal/repositories"
)

// CartService handles cart mutations and derived totals. All mutations
// persist the cart synchronously; derived values are recomputed on every
// read, never stored.
type CartService struct {
	store   repositories.CartStore
	coupons []models.Coupon
}

// NewCartService creates a new CartService over a durable cart store and the
// static coupon list.
func NewCartService(store repositories.CartStore, coupons []models.Coupon) *CartService {
	return &CartService{
		store:   store,
		coupons: coupons,
	}
}

// Add appends an item to the cart. Adding an id already present is a no-op.
// The returned flag tells the UI whether to open the cart drawer.
func (s *CartService) Add(ctx context.Context, userID string, item models.CartItem) (bool, error) {
	record, err := s.store.Load(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, existing := range record.Items {
		if existing.ID == item.ID {
			return false, nil
		}
	}

	record.Items = append(record.Items, item)
	if err := s.store.Save(ctx, userID, record); err != nil {
		return false, fmt.Errorf("failed to persist cart: %w", err)
	}
	return true, nil
}

// Remove filters out the matching item id.
func (s *CartService) Remove(ctx context.Context, userID string, itemID string) error {
	record, err := s.store.Load(ctx, userID)
	if err != nil {
		return err
	}

	filtered := record.Items[:0]
	for _, item := range record.Items {
		if item.ID != itemID {
			filtered = append(filtered, item)
		}
	}
	record.Items = filtered
	return s.store.Save(ctx, userID, record)
}

// Clear empties the cart and drops the active coupon.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

// ApplyCoupon matches a code case-insensitively against the static list,
// replacing any active coupon. Returns false for unknown codes.
func (s *CartService) ApplyCoupon(ctx context.Context, userID string, code string) (bool, error) {
	var match *models.Coupon
	for i := range s.coupons {
		if strings.EqualFold(s.coupons[i].Code, code) {
			match = &s.coupons[i]
			break
		}
	}
	if match == nil {
		return false, nil
	}

	record, err := s.store.Load(ctx, userID)
	if err != nil {
		return false, err
	}
	coupon := *match
	record.Coupon = &coupon
	if err := s.store.Save(ctx, userID, record); err != nil {
		return false, fmt.Errorf("failed to persist coupon: %w", err)
	}
	return true, nil
}

// RemoveCoupon clears the active coupon.
func (s *CartService) RemoveCoupon(ctx context.Context, userID string) error {
	record, err := s.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	record.Coupon = nil
	return s.store.Save(ctx, userID, record)
}

// Summary recomputes the derived cart values.
func (s *CartService) Summary(ctx context.Context, userID string) (*models.CartSummary, error) {
	record, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.CartSummary{
		Items:              record.Items,
		ActiveCoupon:       record.Coupon,
		BaseTotal:          Round2(BaseTotal(record.Items)),
		Discount:           ComputeDiscount(record.Items, record.Coupon),
		TotalAfterDiscount: TotalAfterDiscount(record.Items, record.Coupon),
	}, nil
}

// CheckoutItems builds the discounted line items for the payment gateway.
func (s *CartService) CheckoutItems(ctx context.Context, userID string) ([]models.CheckoutItem, error) {
	record, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return CheckoutItems(record.Items, record.Coupon), nil
}

// PurchaseList converts the cart contents into entitlement references.
func (s *CartService) PurchaseList(ctx context.Context, userID string) ([]models.PurchaseItem, error) {
	record, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]models.PurchaseItem, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, models.PurchaseItem{ID: item.ID, Type: item.Type})
	}
	return items, nil
}
