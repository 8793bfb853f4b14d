package services

import (
	"context"
	"fmt"
	"log"

	"flipacademy/internal/models"
	"flipacademy/internal/repositories"
)

// EntitlementService owns the durable grants of access: the append-only
// owned-course and owned-resource sets on the user profile, and the order
// ledger for payment methods that need manual reconciliation.
type EntitlementService struct {
	userRepo  repositories.UserRepository
	orderRepo repositories.OrderRepository
	cart      *CartService
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(userRepo repositories.UserRepository, orderRepo repositories.OrderRepository, cart *CartService) *EntitlementService {
	return &EntitlementService{
		userRepo:  userRepo,
		orderRepo: orderRepo,
		cart:      cart,
	}
}

// PurchaseItems appends the purchased ids into the user's entitlement sets
// without duplication and persists the profile. For cart-based purchases the
// cart and its coupon are cleared afterwards; direct single-item purchases
// leave the cart alone.
//
// The caller (the payment orchestrator) guarantees at-most-once invocation
// per payment event; the dedup here additionally makes a replay harmless.
func (s *EntitlementService) PurchaseItems(ctx context.Context, userID string, items []models.PurchaseItem, clearCart bool) error {
	if len(items) == 0 {
		return fmt.Errorf("no items to purchase")
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}

	added := 0
	for _, item := range items {
		switch item.Type {
		case models.ItemCourse:
			if !user.HasCourse(item.ID) {
				user.EnrolledCourses = append(user.EnrolledCourses, item.ID)
				added++
			}
		case models.ItemResource:
			if !user.HasResource(item.ID) {
				user.OwnedResources = append(user.OwnedResources, item.ID)
				added++
			}
		default:
			return fmt.Errorf("unknown item type %q", item.Type)
		}
	}

	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to persist entitlements: %w", err)
	}
	log.Printf("Granted %d new entitlement(s) to user %s", added, userID)

	if clearCart {
		if err := s.cart.Clear(ctx, userID); err != nil {
			// Entitlements are already committed; a stale cart is recoverable.
			log.Printf("Warning: failed to clear cart for user %s after purchase: %v", userID, err)
		}
	}
	return nil
}

// CreateOrder writes an order row for the bank-transfer path. The order
// starts pending; reconciliation against the proof of payment happens
// out-of-band and flips it to approved via the order repository.
func (s *EntitlementService) CreateOrder(userID string, items []models.OrderItem, total float64, method, status string, dni, address, zipCode string) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("an order needs at least one item")
	}

	order := &models.Order{
		UserID:  userID,
		Items:   items,
		Total:   Round2(total),
		Method:  method,
		Status:  status,
		DNI:     dni,
		Address: address,
		ZipCode: zipCode,
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Printf("Created %s order %s for user %s (total %.2f)", method, order.ID, userID, order.Total)
	return order, nil
}

// GetOrders lists a user's orders, newest first.
func (s *EntitlementService) GetOrders(userID string) ([]models.Order, error) {
	return s.orderRepo.GetByUser(userID)
}

// GetOrder fetches one order, enforcing ownership.
func (s *EntitlementService) GetOrder(userID, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order with ID %s not found", orderID)
	}
	return order, nil
}

// ApproveOrder marks a reconciled bank-transfer order approved and grants
// its items. Driven by the back office once the proof of payment checks out.
func (s *EntitlementService) ApproveOrder(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderApproved {
		return nil
	}

	if err := s.orderRepo.UpdateStatus(orderID, models.OrderApproved); err != nil {
		return fmt.Errorf("failed to approve order: %w", err)
	}

	items := make([]models.PurchaseItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.PurchaseItem{ID: item.ItemID, Type: item.Type})
	}
	return s.PurchaseItems(ctx, order.UserID, items, false)
}
