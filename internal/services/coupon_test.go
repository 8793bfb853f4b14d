package services_test

import (
	"testing"

	"flipacademy/internal/models"
	"flipacademy/internal/services"

	"github.com/stretchr/testify/assert"
)

func cartLines() []models.CartItem {
	return []models.CartItem{
		{ID: "course-marketing", Title: "Marketing", Price: 120.00, Type: models.ItemCourse},
		{ID: "res-brand-kit", Title: "Brand Kit", Price: 80.00, Type: models.ItemResource},
	}
}

func TestComputeDiscount_GlobalPercent(t *testing.T) {
	coupon := &models.Coupon{Code: "WELCOME10", Discount: 10, Type: models.CouponPercent}

	discount := services.ComputeDiscount(cartLines(), coupon)
	assert.Equal(t, 20.00, discount)
	assert.Equal(t, 180.00, services.TotalAfterDiscount(cartLines(), coupon))
}

func TestComputeDiscount_TargetedFixed(t *testing.T) {
	coupon := &models.Coupon{Code: "CURSO50", Discount: 50, Type: models.CouponFixed, TargetID: "course-marketing"}

	discount := services.ComputeDiscount(cartLines(), coupon)
	assert.Equal(t, 50.00, discount)
	assert.Equal(t, 150.00, services.TotalAfterDiscount(cartLines(), coupon))
}

func TestComputeDiscount_TargetedCouponWithNoMatchingLine(t *testing.T) {
	coupon := &models.Coupon{Code: "HALFOFF", Discount: 50, Type: models.CouponPercent, TargetID: "course-operations"}

	assert.Equal(t, 0.00, services.ComputeDiscount(cartLines(), coupon))
	assert.Equal(t, 200.00, services.TotalAfterDiscount(cartLines(), coupon))
}

func TestComputeDiscount_FixedNeverExceedsBase(t *testing.T) {
	items := []models.CartItem{
		{ID: "res-proposal-template", Title: "Proposal", Price: 3.00, Type: models.ItemResource},
	}
	coupon := &models.Coupon{Code: "RESOURCE5", Discount: 5, Type: models.CouponFixed}

	assert.Equal(t, 3.00, services.ComputeDiscount(items, coupon))
	assert.Equal(t, 0.00, services.TotalAfterDiscount(items, coupon))
}

func TestComputeDiscount_NilCoupon(t *testing.T) {
	assert.Equal(t, 0.00, services.ComputeDiscount(cartLines(), nil))
	assert.Equal(t, 200.00, services.TotalAfterDiscount(cartLines(), nil))
}

func TestCheckoutItems_GlobalPercentRedistribution(t *testing.T) {
	coupon := &models.Coupon{Code: "WELCOME10", Discount: 10, Type: models.CouponPercent}

	lines := services.CheckoutItems(cartLines(), coupon)
	assert.Len(t, lines, 2)
	assert.Equal(t, 108.00, lines[0].Price)
	assert.Equal(t, 72.00, lines[1].Price)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestCheckoutItems_TargetedFixedOnlyDiscountsMatchingLine(t *testing.T) {
	coupon := &models.Coupon{Code: "CURSO50", Discount: 50, Type: models.CouponFixed, TargetID: "course-marketing"}

	lines := services.CheckoutItems(cartLines(), coupon)
	assert.Equal(t, 70.00, lines[0].Price)
	assert.Equal(t, 80.00, lines[1].Price)
}

// The per-line rounding can drift a cent away from the charged total; the
// residual lands on the first line so the sum always matches.
func TestCheckoutItems_ResidualCentOnFirstLine(t *testing.T) {
	items := []models.CartItem{
		{ID: "a", Title: "A", Price: 10.00, Type: models.ItemCourse},
		{ID: "b", Title: "B", Price: 10.00, Type: models.ItemCourse},
		{ID: "c", Title: "C", Price: 10.00, Type: models.ItemCourse},
	}
	coupon := &models.Coupon{Code: "TENCENTS", Discount: 0.10, Type: models.CouponFixed}

	target := services.TotalAfterDiscount(items, coupon)
	assert.Equal(t, 29.90, target)

	lines := services.CheckoutItems(items, coupon)
	var sum float64
	for _, line := range lines {
		sum += line.Price
	}
	assert.Equal(t, target, services.Round2(sum))
	// Per-line rounding gives 9.97 each; the extra cent comes off line one.
	assert.Equal(t, 9.96, lines[0].Price)
	assert.Equal(t, 9.97, lines[1].Price)
	assert.Equal(t, 9.97, lines[2].Price)
}

func TestCheckoutItems_EmptyCart(t *testing.T) {
	assert.Nil(t, services.CheckoutItems(nil, nil))
}

func TestCheckoutItems_NoCouponKeepsPrices(t *testing.T) {
	lines := services.CheckoutItems(cartLines(), nil)
	assert.Equal(t, 120.00, lines[0].Price)
	assert.Equal(t, 80.00, lines[1].Price)
}
