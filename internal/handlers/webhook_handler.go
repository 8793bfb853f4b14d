package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"

	"flipacademy/internal/services"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives provider-initiated payment notifications. Unlike
// the rest of the checkout surface it is unauthenticated: the provider calls
// it directly, so the request is verified against the webhook secret instead
// of a bearer token.
type WebhookHandler struct {
	service *services.CheckoutService
	secret  string
}

// NewWebhookHandler creates a new WebhookHandler. An empty secret skips
// signature validation; set it in any environment the provider can reach.
func NewWebhookHandler(service *services.CheckoutService, secret string) *WebhookHandler {
	return &WebhookHandler{service: service, secret: secret}
}

// RegisterRoutes registers the webhook route with the Fiber app.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/webhooks/payments", h.HandlePaymentNotification)
}

// WebhookBody is the provider's notification payload. Current webhooks send
// type plus data.id; legacy IPN notifications send topic plus resource.
type WebhookBody struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Resource string `json:"resource"`
	Data     struct {
		ID interface{} `json:"id"`
	} `json:"data"`
}

// PaymentID normalizes the notification's payment id, which the provider
// sends as a string or a number depending on the notification version.
func (b WebhookBody) PaymentID() string {
	switch id := b.Data.ID.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	}
	return b.Resource
}

// HandlePaymentNotification validates the signature, then re-fetches the
// payment and funnels an approved status into the same commit path as every
// other approval source. Always answers 200 for valid requests so the
// provider stops retrying.
func (h *WebhookHandler) HandlePaymentNotification(c *fiber.Ctx) error {
	var body WebhookBody
	if err := c.BodyParser(&body); err != nil {
		log.Printf("Error parsing payment webhook body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	paymentID := body.PaymentID()
	if err := h.verifySignature(c, paymentID); err != nil {
		log.Printf("Rejected payment webhook: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid signature",
		})
	}

	if body.Type != "payment" && body.Topic != "payment" {
		// Test notifications and other topics are acknowledged and dropped.
		log.Printf("Ignoring webhook notification of type %q topic %q", body.Type, body.Topic)
		return c.JSON(fiber.Map{"status": "OK"})
	}
	if paymentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "No payment ID in notification",
		})
	}

	if err := h.service.HandleWebhook(c.Context(), paymentID); err != nil {
		log.Printf("Error handling payment webhook for payment %s: %v", paymentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not process notification",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "OK"})
}

// verifySignature checks the provider's x-signature header: an HMAC-SHA256 of
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" keyed with the webhook
// secret.
func (h *WebhookHandler) verifySignature(c *fiber.Ctx, paymentID string) error {
	if h.secret == "" {
		return nil
	}

	xSignature := c.Get("x-signature")
	xRequestID := c.Get("x-request-id")
	if xSignature == "" || xRequestID == "" {
		return fmt.Errorf("missing x-signature or x-request-id header")
	}

	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("malformed x-signature header")
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", paymentID, xRequestID, ts)
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return fmt.Errorf("signature mismatch for payment %s", paymentID)
	}
	return nil
}
