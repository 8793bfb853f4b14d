package models

import "gorm.io/gorm"

// User represents an account holder of the academy.
type User struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	FirstName string `json:"first_name" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Email     string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string `gorm:"type:varchar(255)" validate:"required,min=6"` // No json tag for security
	// DNI is write-once: required for certificates, locked after first save.
	DNI string `json:"dni" gorm:"type:varchar(32)" validate:"omitempty,max=32"`

	// Entitlements are append-only sets of owned content ids. They are only
	// ever grown, and only after a confirmed-approved payment signal.
	EnrolledCourses []string `json:"enrolled_courses" gorm:"serializer:json"`
	OwnedResources  []string `json:"owned_resources" gorm:"serializer:json"`

	// CompletedModules maps a course id to the ordered indexes of modules the
	// user has finished. Module n unlocks only when 0..n-1 are present.
	CompletedModules map[string][]int `json:"completed_modules" gorm:"serializer:json"`

	gorm.Model // CreatedAt, UpdatedAt, DeletedAt
}

// HasCourse reports whether the user is entitled to a course.
func (u *User) HasCourse(courseID string) bool {
	for _, id := range u.EnrolledCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// HasResource reports whether the user owns a downloadable resource.
func (u *User) HasResource(resourceID string) bool {
	for _, id := range u.OwnedResources {
		if id == resourceID {
			return true
		}
	}
	return false
}

// Certificate is issued when a user completes every module of a course.
// Rendering/export of the certificate artwork is out of scope; this is the
// verifiable record behind it.
type Certificate struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID   string `json:"user_id" gorm:"index;type:varchar(36)"`
	CourseID string `json:"course_id" gorm:"type:varchar(64)"`
	DNI      string `json:"dni" gorm:"type:varchar(32)"`
	gorm.Model
}
