package repositories

import "flipacademy/internal/models"

// OrderRepository defines the interface for order data access. Only
// bank-transfer purchases create order rows; widget payments grant
// entitlements directly.
type OrderRepository interface {
	GetByUser(userID string) ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	Create(order *models.Order) error
	UpdateStatus(id string, status string) error
}
