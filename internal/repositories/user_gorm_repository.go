package repositories

import (
	"fmt"

	"flipacademy/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user with email %s not found", email)
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// Update persists all fields of an existing user, including the entitlement
// sets.
func (r *GORMUserRepository) Update(user *models.User) error {
	res := r.db.Save(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s not found for update", user.ID)
	}
	return nil
}

// GORMCertificateRepository is a GORM implementation of CertificateRepository.
type GORMCertificateRepository struct {
	db *gorm.DB
}

// NewGORMCertificateRepository creates a new instance of GORMCertificateRepository.
func NewGORMCertificateRepository(db *gorm.DB) *GORMCertificateRepository {
	return &GORMCertificateRepository{db: db}
}

// Create stores a new certificate record.
func (r *GORMCertificateRepository) Create(cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	if err := r.db.Create(cert).Error; err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

// GetByID retrieves a certificate by its ID, used for public verification.
func (r *GORMCertificateRepository) GetByID(id string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.First(&cert, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("certificate with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get certificate by ID %s: %w", id, err)
	}
	return &cert, nil
}

// GetByUser retrieves all certificates earned by a user.
func (r *GORMCertificateRepository) GetByUser(userID string) ([]models.Certificate, error) {
	var certs []models.Certificate
	if err := r.db.Find(&certs, "user_id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to get certificates for user %s: %w", userID, err)
	}
	return certs, nil
}
