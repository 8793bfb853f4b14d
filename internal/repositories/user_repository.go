package repositories

import "flipacademy/internal/models"

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	Update(user *models.User) error
}

// CertificateRepository defines the interface for certificate records.
type CertificateRepository interface {
	Create(cert *models.Certificate) error
	GetByID(id string) (*models.Certificate, error)
	GetByUser(userID string) ([]models.Certificate, error)
}
