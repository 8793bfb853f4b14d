package repositories

import (
	"fmt"
	"sync"

	"flipacademy/internal/models"
)

// CatalogRepository defines read access to the course and resource catalog.
// The catalog is static content shipped with the service, so there is no
// create/update surface.
type CatalogRepository interface {
	GetCourses() ([]models.Course, error)
	GetCourseByID(id string) (*models.Course, error)
	GetResources() ([]models.Resource, error)
	GetResourceByID(id string) (*models.Resource, error)
}

// StaticCatalogRepository is an in-memory implementation of CatalogRepository
// seeded at startup.
type StaticCatalogRepository struct {
	courses   map[string]models.Course
	resources map[string]models.Resource
	// insertion order preserved for stable listings
	courseOrder   []string
	resourceOrder []string
	mu            sync.RWMutex
}

// NewStaticCatalogRepository creates an empty catalog; call SeedCourses and
// SeedResources to populate it.
func NewStaticCatalogRepository() *StaticCatalogRepository {
	return &StaticCatalogRepository{
		courses:   make(map[string]models.Course),
		resources: make(map[string]models.Resource),
	}
}

// SeedCourses loads courses into the catalog, replacing any with the same id.
func (r *StaticCatalogRepository) SeedCourses(courses []models.Course) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range courses {
		if _, exists := r.courses[c.ID]; !exists {
			r.courseOrder = append(r.courseOrder, c.ID)
		}
		r.courses[c.ID] = c
	}
}

// SeedResources loads resources into the catalog.
func (r *StaticCatalogRepository) SeedResources(resources []models.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range resources {
		if _, exists := r.resources[res.ID]; !exists {
			r.resourceOrder = append(r.resourceOrder, res.ID)
		}
		r.resources[res.ID] = res
	}
}

// GetCourses returns all courses in seed order.
func (r *StaticCatalogRepository) GetCourses() ([]models.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	courses := make([]models.Course, 0, len(r.courseOrder))
	for _, id := range r.courseOrder {
		courses = append(courses, r.courses[id])
	}
	return courses, nil
}

// GetCourseByID returns a course by its ID.
func (r *StaticCatalogRepository) GetCourseByID(id string) (*models.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	course, ok := r.courses[id]
	if !ok {
		return nil, fmt.Errorf("course with ID %s not found", id)
	}
	return &course, nil
}

// GetResources returns all resources in seed order.
func (r *StaticCatalogRepository) GetResources() ([]models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resources := make([]models.Resource, 0, len(r.resourceOrder))
	for _, id := range r.resourceOrder {
		resources = append(resources, r.resources[id])
	}
	return resources, nil
}

// GetResourceByID returns a resource by its ID.
func (r *StaticCatalogRepository) GetResourceByID(id string) (*models.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resource, ok := r.resources[id]
	if !ok {
		return nil, fmt.Errorf("resource with ID %s not found", id)
	}
	return &resource, nil
}
