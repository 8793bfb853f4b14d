package services

import (
	"strings"

	"flipacademy/internal/models"
	"flipacademy/internal/repositories"
)

// CatalogService handles course and resource listings.
type CatalogService struct {
	repo repositories.CatalogRepository
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo repositories.CatalogRepository) *CatalogService {
	return &CatalogService{
		repo: repo,
	}
}

// CourseFilter narrows a course listing. Empty fields match everything.
type CourseFilter struct {
	Category string
	Level    string
	Search   string
}

// GetCourses retrieves courses matching the filter.
func (s *CatalogService) GetCourses(filter CourseFilter) ([]models.Course, error) {
	courses, err := s.repo.GetCourses()
	if err != nil {
		return nil, err
	}

	out := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		if filter.Category != "" && !strings.EqualFold(c.Category, filter.Category) {
			continue
		}
		if filter.Level != "" && !strings.EqualFold(c.Level, filter.Level) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// GetCourseByID retrieves a single course with its ordered modules.
func (s *CatalogService) GetCourseByID(id string) (*models.Course, error) {
	return s.repo.GetCourseByID(id)
}

// GetResources retrieves resources. free selects the zero-price ones, paid
// the rest; nil returns everything.
func (s *CatalogService) GetResources(free *bool) ([]models.Resource, error) {
	resources, err := s.repo.GetResources()
	if err != nil {
		return nil, err
	}
	if free == nil {
		return resources, nil
	}

	out := make([]models.Resource, 0, len(resources))
	for _, r := range resources {
		if (r.Price == 0) == *free {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetResourceByID retrieves a single resource.
func (s *CatalogService) GetResourceByID(id string) (*models.Resource, error) {
	return s.repo.GetResourceByID(id)
}
