package models

// ItemType tells the entitlement service which owned-content set an item
// belongs to.
type ItemType string

const (
	ItemCourse   ItemType = "course"
	ItemResource ItemType = "resource"
)

// CartItem is a single line in a user's cart. Carts are insertion-ordered
// and unique by item id; duplicates are rejected.
type CartItem struct {
	ID    string   `json:"id" validate:"required"`
	Title string   `json:"title" validate:"required"`
	Price float64  `json:"price" validate:"gte=0"`
	Image string   `json:"image"`
	Type  ItemType `json:"type" validate:"required,oneof=course resource"`
}

// CouponType selects between percentage and fixed-amount discounts.
type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

// Coupon is an immutable discount definition sourced from a static list.
// When TargetID is set the discount applies only to matching cart lines.
type Coupon struct {
	Code     string     `json:"code"`
	Discount float64    `json:"discount"` // percentage when type==percent, amount when type==fixed
	Type     CouponType `json:"type"`
	TargetID string     `json:"target_id,omitempty"`
}

// PurchaseItem is the minimal reference the entitlement commit needs.
type PurchaseItem struct {
	ID   string   `json:"id" validate:"required"`
	Type ItemType `json:"type" validate:"required,oneof=course resource"`
}

// CheckoutItem is a line item sent to the payment gateway. Prices carry any
// coupon discount already redistributed (see services.CheckoutItems).
type CheckoutItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartSummary holds the derived cart values, recomputed on every read.
type CartSummary struct {
	Items              []CartItem `json:"items"`
	ActiveCoupon       *Coupon    `json:"active_coupon,omitempty"`
	BaseTotal          float64    `json:"base_total"`
	Discount           float64    `json:"discount"`
	TotalAfterDiscount float64    `json:"total_after_discount"`
}
