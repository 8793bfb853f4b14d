package models

import "gorm.io/gorm"

// Payment methods accepted at checkout.
const (
	MethodTransfer    = "transferencia"
	MethodMercadoPago = "mercadopago"
	MethodTest        = "prueba"
)

// Order statuses. Bank-transfer orders start pending and are reconciled
// out-of-band against the proof of payment.
const (
	OrderPending  = "pending"
	OrderApproved = "approved"
	OrderRejected = "rejected"
)

// OrderItem is a purchased line captured at order-creation time.
type OrderItem struct {
	ItemID string   `json:"item_id"`
	Title  string   `json:"title"`
	Price  float64  `json:"price"` // price at the time of order
	Type   ItemType `json:"type"`
}

// Order represents a purchase that needs manual reconciliation (bank
// transfer). Widget payments write entitlements directly and create no order
// row.
type Order struct {
	ID     string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID string      `json:"user_id" gorm:"index;type:varchar(36)"`
	Items  []OrderItem `json:"items" gorm:"serializer:json"`
	Total  float64     `json:"total"`
	Method string      `json:"method" gorm:"type:varchar(32)"`
	Status string      `json:"status" gorm:"type:varchar(16)"`

	// Billing extras captured for the invoice / certificate.
	DNI     string `json:"dni" gorm:"type:varchar(32)"`
	Address string `json:"address" gorm:"type:varchar(255)"`
	ZipCode string `json:"zip_code" gorm:"type:varchar(16)"`

	gorm.Model
}
