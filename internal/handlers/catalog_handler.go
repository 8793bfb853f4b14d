package handlers

import (
	"log"
	"strings"

	"flipacademy/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CatalogHandler handles HTTP requests for the course and resource catalog.
type CatalogHandler struct {
	service *services.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		service: service,
	}
}

// RegisterRoutes registers the catalog routes with the Fiber app.
func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/courses", h.HandleGetCourses)
	router.Get("/courses/:id", h.HandleGetCourseByID)
	router.Get("/resources", h.HandleGetResources)
	router.Get("/resources/:id", h.HandleGetResourceByID)
}

// HandleGetCourses retrieves all courses, optionally filtered by category,
// level and a title search term.
func (h *CatalogHandler) HandleGetCourses(c *fiber.Ctx) error {
	filter := services.CourseFilter{
		Category: c.Query("category"),
		Level:    c.Query("level"),
		Search:   c.Query("search"),
	}

	courses, err := h.service.GetCourses(filter)
	if err != nil {
		log.Printf("Error getting courses: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve courses",
			"error":   err.Error(),
		})
	}
	return c.JSON(courses)
}

// HandleGetCourseByID retrieves a single course with its modules.
func (h *CatalogHandler) HandleGetCourseByID(c *fiber.Ctx) error {
	courseID := c.Params("id")
	course, err := h.service.GetCourseByID(courseID)
	if err != nil {
		log.Printf("Error getting course %s: %v", courseID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Course not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve course",
			"error":   err.Error(),
		})
	}
	return c.JSON(course)
}

// HandleGetResources retrieves resources. ?free=true selects the free ones,
// ?free=false the paid ones.
func (h *CatalogHandler) HandleGetResources(c *fiber.Ctx) error {
	var free *bool
	switch c.Query("free") {
	case "true":
		v := true
		free = &v
	case "false":
		v := false
		free = &v
	}

	resources, err := h.service.GetResources(free)
	if err != nil {
		log.Printf("Error getting resources: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve resources",
			"error":   err.Error(),
		})
	}
	return c.JSON(resources)
}

// HandleGetResourceByID retrieves a single resource.
func (h *CatalogHandler) HandleGetResourceByID(c *fiber.Ctx) error {
	resourceID := c.Params("id")
	resource, err := h.service.GetResourceByID(resourceID)
	if err != nil {
		log.Printf("Error getting resource %s: %v", resourceID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Resource not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve resource",
			"error":   err.Error(),
		})
	}
	return c.JSON(resource)
}
