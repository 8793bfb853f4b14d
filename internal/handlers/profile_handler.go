package handlers

import (
	"fmt"
	"log"
	"strings"

	"flipacademy/internal/middleware"
	"flipacademy/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProfileHandler handles HTTP requests for the user profile: billing
// details, course progress and certificates.
type ProfileHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(authService *services.AuthService) *ProfileHandler {
	return &ProfileHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the profile routes with the Fiber app.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	profileRoutes := router.Group("/profile")
	profileRoutes.Get("/", h.HandleGetProfile)
	profileRoutes.Patch("/", h.HandleUpdateProfile)
	profileRoutes.Post("/courses/:courseId/modules/:index/complete", h.HandleCompleteModule)
	profileRoutes.Get("/certificates", h.HandleGetCertificates)
}

// HandleGetProfile returns the authenticated user's profile.
func (h *ProfileHandler) HandleGetProfile(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	user, err := h.authService.GetUser(userID)
	if err != nil {
		log.Printf("Error loading profile for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve profile",
			"error":   err.Error(),
		})
	}

	user.Password = ""
	return c.JSON(user)
}

// HandleUpdateProfile fills in billing fields. DNI and names are write-once.
func (h *ProfileHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var update services.ProfileUpdate
	if err := c.BodyParser(&update); err != nil {
		log.Printf("Error parsing profile update body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(update); err != nil {
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

	user, err := h.authService.UpdateProfile(userID, update)
	if err != nil {
		log.Printf("Error updating profile for user %s: %v", userID, err)
		if strings.Contains(err.Error(), "cannot be changed") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Profile update rejected",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update profile",
			"error":   err.Error(),
		})
	}

	user.Password = ""
	return c.JSON(user)
}

// HandleCompleteModule records course progress. Modules complete strictly in
// order; the last one triggers certificate issuance.
func (h *ProfileHandler) HandleCompleteModule(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	courseID := c.Params("courseId")

	index, err := c.ParamsInt("index")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Module index must be a number",
		})
	}

	user, err := h.authService.MarkModuleCompleted(userID, courseID, index)
	if err != nil {
		log.Printf("Error completing module %d of %s for user %s: %v", index, courseID, userID, err)
		switch {
		case strings.Contains(err.Error(), "not enrolled"):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Not enrolled in this course",
			})
		case strings.Contains(err.Error(), "locked"), strings.Contains(err.Error(), "has no module"):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Could not complete module",
				"error":   err.Error(),
			})
		case strings.Contains(err.Error(), "not found"):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Course not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not complete module",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":           "Module completed",
		"completed_modules": user.CompletedModules[courseID],
	})
}

// HandleGetCertificates lists the certificates issued to the user.
func (h *ProfileHandler) HandleGetCertificates(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	certs, err := h.authService.GetCertificates(userID)
	if err != nil {
		log.Printf("Error listing certificates for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve certificates",
			"error":   err.Error(),
		})
	}
	return c.JSON(certs)
}
