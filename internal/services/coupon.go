package services

import (
	"math"

	"flipacademy/internal/models"
)

// DefaultCoupons is the static coupon list. At most one coupon is active on a
// cart at a time.
func DefaultCoupons() []models.Coupon {
	return []models.Coupon{
		{Code: "WELCOME10", Discount: 10, Type: models.CouponPercent},
		{Code: "CURSO50", Discount: 50, Type: models.CouponFixed, TargetID: "course-marketing"},
		{Code: "RESOURCE5", Discount: 5, Type: models.CouponFixed},
		{Code: "HALFOFF", Discount: 50, Type: models.CouponPercent, TargetID: "course-operations"},
	}
}

// Round2 rounds a money amount to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BaseTotal sums the cart line prices.
func BaseTotal(items []models.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price
	}
	return total
}

// ComputeDiscount returns the discount a coupon grants on a cart.
//
// A targeted coupon discounts only the lines matching its target id (which
// may match zero or several lines); a global coupon discounts the whole
// subtotal. Fixed amounts never exceed their base.
func ComputeDiscount(items []models.CartItem, coupon *models.Coupon) float64 {
	if coupon == nil {
		return 0
	}

	var base float64
	if coupon.TargetID != "" {
		for _, item := range items {
			if item.ID == coupon.TargetID {
				base += item.Price
			}
		}
	} else {
		base = BaseTotal(items)
	}

	switch coupon.Type {
	case models.CouponPercent:
		return Round2(base * coupon.Discount / 100)
	case models.CouponFixed:
		return Round2(math.Min(coupon.Discount, base))
	}
	return 0
}

// TotalAfterDiscount is the amount actually charged.
func TotalAfterDiscount(items []models.CartItem, coupon *models.Coupon) float64 {
	return math.Max(0, Round2(BaseTotal(items)-ComputeDiscount(items, coupon)))
}

// CheckoutItems builds the line items sent to the payment gateway, with the
// coupon discount redistributed per line. The 2-decimal line prices must sum
// to exactly TotalAfterDiscount: after rounding each line, any residual cent
// is absorbed by the first line. The cart is insertion-ordered and durable,
// so the first line is stable between renders.
func CheckoutItems(items []models.CartItem, coupon *models.Coupon) []models.CheckoutItem {
	if len(items) == 0 {
		return nil
	}

	subtotal := BaseTotal(items)
	target := TotalAfterDiscount(items, coupon)

	out := make([]models.CheckoutItem, 0, len(items))
	var sum float64
	for _, item := range items {
		price := item.Price
		if coupon != nil {
			switch {
			case coupon.TargetID != "" && item.ID == coupon.TargetID:
				price = discountLine(items, coupon, item)
			case coupon.TargetID == "" && coupon.Type == models.CouponPercent:
				price = item.Price * (1 - coupon.Discount/100)
			case coupon.TargetID == "" && coupon.Type == models.CouponFixed && subtotal > 0:
				// Proportional to the line's share of the subtotal.
				amount := math.Min(coupon.Discount, subtotal)
				price = item.Price - amount*(item.Price/subtotal)
			}
		}
		price = Round2(math.Max(0, price))
		sum += price
		out = append(out, models.CheckoutItem{
			ID:       item.ID,
			Title:    item.Title,
			Price:    price,
			Quantity: 1,
		})
	}

	// Residual-assignment rule: rounding must not change the total charged.
	if residual := Round2(target - Round2(sum)); residual != 0 {
		out[0].Price = Round2(out[0].Price + residual)
	}
	return out
}

// discountLine prices one line matched by a targeted coupon.
func discountLine(items []models.CartItem, coupon *models.Coupon, item models.CartItem) float64 {
	if coupon.Type == models.CouponPercent {
		return item.Price * (1 - coupon.Discount/100)
	}

	// Fixed targeted amount, spread over the matching lines by price share.
	var targetSum float64
	for _, it := range items {
		if it.ID == coupon.TargetID {
			targetSum += it.Price
		}
	}
	if targetSum == 0 {
		return item.Price
	}
	amount := math.Min(coupon.Discount, targetSum)
	return item.Price - amount*(item.Price/targetSum)
}
