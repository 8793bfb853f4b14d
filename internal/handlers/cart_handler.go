package handlers

import (
	"fmt"
	"log"

	"flipacademy/internal/middleware"
	"flipacademy/internal/models"
	"flipacademy/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the shopping cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the cart routes with the Fiber app. All routes
// operate on the authenticated user's cart.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Delete("/items/:id", h.HandleRemoveItem)
	cartRoutes.Delete("/", h.HandleClearCart)
	cartRoutes.Post("/coupon", h.HandleApplyCoupon)
	cartRoutes.Delete("/coupon", h.HandleRemoveCoupon)
}

// HandleGetCart returns the cart with its derived totals.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	summary, err := h.service.Summary(c.Context(), userID)
	if err != nil {
		log.Printf("Error loading cart for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve cart",
			"error":   err.Error(),
		})
	}
	return c.JSON(summary)
}

// HandleAddItem adds an item to the cart. The response tells the client
// whether the cart drawer should open (it stays closed for duplicates).
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var item models.CartItem
	if err := c.BodyParser(&item); err != nil {
		log.Printf("Error parsing cart item body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(item); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	opened, err := h.service.Add(c.Context(), userID, item)
	if err != nil {
		log.Printf("Error adding item %s to cart for user %s: %v", item.ID, userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not add item to cart",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Item added to cart",
		"open_drawer": opened,
	})
}

// HandleRemoveItem removes one item by id.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	itemID := c.Params("id")

	if err := h.service.Remove(c.Context(), userID, itemID); err != nil {
		log.Printf("Error removing item %s from cart for user %s: %v", itemID, userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not remove item from cart",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Item removed from cart",
	})
}

// HandleClearCart empties the cart and drops the active coupon.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if err := h.service.Clear(c.Context(), userID); err != nil {
		log.Printf("Error clearing cart for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not clear cart",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Cart cleared",
	})
}

// CouponRequest carries the coupon code to apply.
type CouponRequest struct {
	Code string `json:"code" validate:"required"`
}

// HandleApplyCoupon applies a coupon code, replacing any active one.
func (h *CartHandler) HandleApplyCoupon(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req CouponRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing coupon body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Coupon code is required",
		})
	}

	applied, err := h.service.ApplyCoupon(c.Context(), userID, req.Code)
	if err != nil {
		log.Printf("Error applying coupon %s for user %s: %v", req.Code, userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not apply coupon",
			"error":   err.Error(),
		})
	}
	if !applied {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Invalid coupon code",
		})
	}

	summary, err := h.service.Summary(c.Context(), userID)
	if err != nil {
		log.Printf("Error loading cart after coupon for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve cart",
			"error":   err.Error(),
		})
	}
	return c.JSON(summary)
}

// HandleRemoveCoupon clears the active coupon.
func (h *CartHandler) HandleRemoveCoupon(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if err := h.service.RemoveCoupon(c.Context(), userID); err != nil {
		log.Printf("Error removing coupon for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not remove coupon",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Coupon removed",
	})
}
