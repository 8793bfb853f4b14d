package handlers

import (
	"fmt"
	"log"
	"strings"

	"flipacademy/internal/middleware"
	"flipacademy/internal/models"
	"flipacademy/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler exposes the payment flow: preference creation, card and
// wallet submissions, the confirmation loop endpoints and the bank-transfer
// path.
type CheckoutHandler struct {
	service           *services.CheckoutService
	validate          *validator.Validate
	baseURL           string
	enableTestPayment bool
}

// NewCheckoutHandler creates a new CheckoutHandler. baseURL is where the
// provider sends the payer back after a hosted checkout.
func NewCheckoutHandler(service *services.CheckoutService, baseURL string, enableTestPayment bool) *CheckoutHandler {
	return &CheckoutHandler{
		service:           service,
		validate:          validator.New(),
		baseURL:           baseURL,
		enableTestPayment: enableTestPayment,
	}
}

// RegisterRoutes registers the checkout routes with the Fiber app. All
// routes operate on the authenticated user's checkout session.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkoutRoutes := router.Group("/checkout")
	checkoutRoutes.Post("/preference", h.HandleCreatePreference)
	checkoutRoutes.Post("/payment", h.HandleSubmitCard)
	checkoutRoutes.Post("/wallet", h.HandleSubmitWallet)
	checkoutRoutes.Get("/status", h.HandleStatus)
	checkoutRoutes.Post("/wake", h.HandleWake)
	checkoutRoutes.Post("/cancel", h.HandleCancel)
	checkoutRoutes.Post("/resume", h.HandleResume)
	checkoutRoutes.Post("/callback", h.HandleCallback)
	checkoutRoutes.Post("/transfer", h.HandleBankTransfer)
	if h.enableTestPayment {
		checkoutRoutes.Post("/test", h.HandleTestPurchase)
	}
}

// PreferenceBody selects what is being bought: the cart by default, or a
// single course when course_id is set.
type PreferenceBody struct {
	CourseID string `json:"course_id"`
}

// HandleCreatePreference returns the payment preference for the session,
// creating it on first use. Re-entering the payment step returns the cached
// preference instead of creating another.
func (h *CheckoutHandler) HandleCreatePreference(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var body PreferenceBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
				"error":   err.Error(),
			})
		}
	}

	pref, err := h.service.Preference(c.Context(), userID, body.CourseID, h.baseURL)
	if err != nil {
		log.Printf("Error creating preference for user %s: %v", userID, err)
		if strings.Contains(err.Error(), "cart is empty") || strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Could not initialize payment",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not initialize payment",
			"error":   err.Error(),
		})
	}
	return c.JSON(pref)
}

// HandleSubmitCard processes widget-collected card data.
func (h *CheckoutHandler) HandleSubmitCard(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var form models.CardFormData
	if err := c.BodyParser(&form); err != nil {
		log.Printf("Error parsing card form body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(form); err != nil {
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

	outcome, err := h.service.SubmitCard(c.Context(), userID, form)
	if err != nil {
		log.Printf("Error processing card payment for user %s: %v", userID, err)
		if strings.Contains(err.Error(), "already in progress") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "A payment is already in progress",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not process payment",
			"error":   err.Error(),
		})
	}
	return c.JSON(outcome)
}

// HandleSubmitWallet starts a wallet/redirect payment and returns the popup
// parameters.
func (h *CheckoutHandler) HandleSubmitWallet(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	outcome, err := h.service.SubmitWallet(c.Context(), userID)
	if err != nil {
		log.Printf("Error starting wallet payment for user %s: %v", userID, err)
		if strings.Contains(err.Error(), "already in progress") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "A payment is already in progress",
			})
		}
		if strings.Contains(err.Error(), "no payment preference") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Could not start wallet payment",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not start wallet payment",
			"error":   err.Error(),
		})
	}
	return c.JSON(outcome)
}

// HandleStatus reports the current checkout state.
func (h *CheckoutHandler) HandleStatus(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	return c.JSON(h.service.Status(userID))
}

// HandleWake requests an immediate confirmation check, used when the user's
// tab regains visibility.
func (h *CheckoutHandler) HandleWake(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if err := h.service.Wake(c.Context(), userID); err != nil {
		log.Printf("Error on wake poll for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not check payment status",
			"error":   err.Error(),
		})
	}
	return c.JSON(h.service.Status(userID))
}

// HandleCancel abandons tracking of the in-flight payment.
func (h *CheckoutHandler) HandleCancel(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if err := h.service.Cancel(c.Context(), userID); err != nil {
		log.Printf("Error cancelling checkout for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not cancel checkout",
			"error":   err.Error(),
		})
	}
	return c.JSON(h.service.Status(userID))
}

// HandleResume restores a pending payment persisted by a previous session.
// Returns whether anything was resumed alongside the resulting state.
func (h *CheckoutHandler) HandleResume(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	resumed, err := h.service.Resume(c.Context(), userID)
	if err != nil {
		log.Printf("Error resuming checkout for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not resume checkout",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"resumed": resumed,
		"status":  h.service.Status(userID),
	})
}

// CallbackBody is what the return-URL page reports after a hosted checkout.
type CallbackBody struct {
	Status            string `json:"status" validate:"required"`
	PaymentID         string `json:"payment_id"`
	ExternalReference string `json:"external_reference"`
}

// HandleCallback processes the provider's return parameters relayed by the
// callback page. Approved payments commit and notify other sessions;
// anything else is a no-op.
func (h *CheckoutHandler) HandleCallback(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var body CallbackBody
	if err := c.BodyParser(&body); err != nil {
		log.Printf("Error parsing callback body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if body.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required",
		})
	}

	if err := h.service.HandleCallback(c.Context(), userID, body.Status, body.PaymentID, body.ExternalReference); err != nil {
		log.Printf("Error handling payment callback for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not finalize payment",
			"error":   err.Error(),
		})
	}
	return c.JSON(h.service.Status(userID))
}

// TransferBody is the bank-transfer submission: billing details plus the
// optional direct-purchase course.
type TransferBody struct {
	services.BillingInfo
	CourseID string `json:"course_id"`
}

// HandleBankTransfer creates a pending order for manual reconciliation.
func (h *CheckoutHandler) HandleBankTransfer(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var body TransferBody
	if err := c.BodyParser(&body); err != nil {
		log.Printf("Error parsing transfer body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(body.BillingInfo); err != nil {
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

	order, err := h.service.SubmitBankTransfer(c.Context(), userID, body.BillingInfo, body.CourseID)
	if err != nil {
		log.Printf("Error creating transfer order for user %s: %v", userID, err)
		if strings.Contains(err.Error(), "cart is empty") || strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Could not create order",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create order",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// TestPurchaseBody selects what the direct grant covers.
type TestPurchaseBody struct {
	CourseID string `json:"course_id"`
}

// HandleTestPurchase grants the selected items without a provider round
// trip. Only registered when test payments are enabled.
func (h *CheckoutHandler) HandleTestPurchase(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var body TestPurchaseBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
				"error":   err.Error(),
			})
		}
	}

	if err := h.service.SubmitTestPurchase(c.Context(), userID, body.CourseID); err != nil {
		log.Printf("Error on test purchase for user %s: %v", userID, err)
		if strings.Contains(err.Error(), "cart is empty") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Cart is empty",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not complete purchase",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Purchase completed",
	})
}
