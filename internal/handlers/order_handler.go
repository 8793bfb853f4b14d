package handlers

import (
	"fmt"
	"log"
	"strings"

	"flipacademy/internal/middleware"
	"flipacademy/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for the order ledger.
type OrderHandler struct {
	service *services.EntitlementService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.EntitlementService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
}

// HandleGetOrders retrieves the authenticated user's orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	orders, err := h.service.GetOrders(userID)
	if err != nil {
		log.Printf("Error getting orders for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves one of the user's orders by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	orderID := c.Params("id")

	order, err := h.service.GetOrder(userID, orderID)
	if err != nil {
		log.Printf("Error getting order %s for user %s: %v", orderID, userID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Order with ID %s not found", orderID),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}
	return c.JSON(order)
}
