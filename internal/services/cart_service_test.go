package services_test

import (
	"context"
	"testing"

	"flipacademy/internal/models"
	"flipacademy/internal/repositories"
	"flipacademy/internal/services"

	"github.com/stretchr/testify/assert"
)

func newCartService() *services.CartService {
	return services.NewCartService(repositories.NewMockCartStore(), services.DefaultCoupons())
}

func TestCartService_AddIsIdempotent(t *testing.T) {
	svc := newCartService()
	ctx := context.Background()
	item := models.CartItem{ID: "course-marketing", Title: "Marketing", Price: 120.00, Type: models.ItemCourse}

	opened, err := svc.Add(ctx, "user-1", item)
	assert.NoError(t, err)
	assert.True(t, opened)

	// Adding the same id again neither duplicates nor reopens the drawer.
	opened, err = svc.Add(ctx, "user-1", item)
	assert.NoError(t, err)
	assert.False(t, opened)

	summary, err := svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, summary.Items, 1)
	assert.Equal(t, 120.00, summary.BaseTotal)
}

func TestCartService_RemoveItem(t *testing.T) {
	svc := newCartService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", models.CartItem{ID: "a", Title: "A", Price: 10, Type: models.ItemCourse})
	assert.NoError(t, err)
	_, err = svc.Add(ctx, "user-1", models.CartItem{ID: "b", Title: "B", Price: 20, Type: models.ItemResource})
	assert.NoError(t, err)

	assert.NoError(t, svc.Remove(ctx, "user-1", "a"))

	summary, err := svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, summary.Items, 1)
	assert.Equal(t, "b", summary.Items[0].ID)
}

func TestCartService_ApplyCouponCaseInsensitive(t *testing.T) {
	svc := newCartService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", models.CartItem{ID: "a", Title: "A", Price: 100, Type: models.ItemCourse})
	assert.NoError(t, err)

	applied, err := svc.ApplyCoupon(ctx, "user-1", "welcome10")
	assert.NoError(t, err)
	assert.True(t, applied)

	summary, err := svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.NotNil(t, summary.ActiveCoupon)
	assert.Equal(t, "WELCOME10", summary.ActiveCoupon.Code)
	assert.Equal(t, 10.00, summary.Discount)
	assert.Equal(t, 90.00, summary.TotalAfterDiscount)
}

func TestCartService_ApplyUnknownCoupon(t *testing.T) {
	svc := newCartService()

	applied, err := svc.ApplyCoupon(context.Background(), "user-1", "NOPE")
	assert.NoError(t, err)
	assert.False(t, applied)
}

func TestCartService_SecondCouponReplacesFirst(t *testing.T) {
	svc := newCartService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", models.CartItem{ID: "course-marketing", Title: "Marketing", Price: 120, Type: models.ItemCourse})
	assert.NoError(t, err)

	_, err = svc.ApplyCoupon(ctx, "user-1", "WELCOME10")
	assert.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, "user-1", "CURSO50")
	assert.NoError(t, err)

	summary, err := svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, "CURSO50", summary.ActiveCoupon.Code)
	assert.Equal(t, 50.00, summary.Discount)
}

func TestCartService_ClearDropsCoupon(t *testing.T) {
	svc := newCartService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", models.CartItem{ID: "a", Title: "A", Price: 100, Type: models.ItemCourse})
	assert.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, "user-1", "WELCOME10")
	assert.NoError(t, err)

	assert.NoError(t, svc.Clear(ctx, "user-1"))

	summary, err := svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Empty(t, summary.Items)
	assert.Nil(t, summary.ActiveCoupon)
	assert.Equal(t, 0.00, summary.TotalAfterDiscount)
}

func TestCartService_RemoveCoupon(t *testing.T) {
	svc := newCartService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", models.CartItem{ID: "a", Title: "A", Price: 100, Type: models.ItemCourse})
	assert.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, "user-1", "WELCOME10")
	assert.NoError(t, err)

	assert.NoError(t, svc.RemoveCoupon(ctx, "user-1"))

	summary, err := svc.Summary(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, summary.Items, 1)
	assert.Nil(t, summary.ActiveCoupon)
	assert.Equal(t, 100.00, summary.TotalAfterDiscount)
}

func TestCartService_PurchaseList(t *testing.T) {
	svc := newCartService()
	ctx := context.Background()

	_, err := svc.Add(ctx, "user-1", models.CartItem{ID: "course-ads", Title: "Ads", Price: 95, Type: models.ItemCourse})
	assert.NoError(t, err)
	_, err = svc.Add(ctx, "user-1", models.CartItem{ID: "res-brand-kit", Title: "Brand Kit", Price: 25, Type: models.ItemResource})
	assert.NoError(t, err)

	items, err := svc.PurchaseList(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, []models.PurchaseItem{
		{ID: "course-ads", Type: models.ItemCourse},
		{ID: "res-brand-kit", Type: models.ItemResource},
	}, items)
}
