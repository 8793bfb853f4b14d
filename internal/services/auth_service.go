package services

import (
	"fmt"
	"log"
	"time"

	"flipacademy/internal/models"
	"flipacademy/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication and the user profile, including the
// course-player progression that hangs off the profile.
type AuthService struct {
	userRepo   repositories.UserRepository
	certRepo   repositories.CertificateRepository
	catalog    repositories.CatalogRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, certRepo repositories.CertificateRepository, catalog repositories.CatalogRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		certRepo:   certRepo,
		catalog:    catalog,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour, // Token valid for 24 hours
	}
}

// RegisterUser registers a new user, hashes their password, and saves them.
func (s *AuthService) RegisterUser(user *models.User) error {
	if existingUser, err := s.userRepo.GetByEmail(user.Email); err == nil && existingUser != nil {
		return fmt.Errorf("email '%s' already registered", user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword) // Store the hashed password

	if err := s.userRepo.Create(user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		// Do not reveal whether the email exists
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.tokenDurat).Unix(), // Token expiration time
		"iat":     time.Now().Unix(),                   // Issued at time
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GetUser retrieves a user's profile.
func (s *AuthService) GetUser(id string) (*models.User, error) {
	return s.userRepo.GetByID(id)
}

// GetCertificates lists the certificates issued to a user.
func (s *AuthService) GetCertificates(userID string) ([]models.Certificate, error) {
	return s.certRepo.GetByUser(userID)
}

// ProfileUpdate carries the editable billing fields.
type ProfileUpdate struct {
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	DNI       string `json:"dni" validate:"omitempty,max=32"`
}

// UpdateProfile fills in profile fields. First name, last name and DNI are
// write-once: a value already on file cannot be changed (the DNI in
// particular is bound to issued certificates).
func (s *AuthService) UpdateProfile(userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if update.DNI != "" {
		if user.DNI != "" && user.DNI != update.DNI {
			return nil, fmt.Errorf("dni is already set and cannot be changed")
		}
		user.DNI = update.DNI
	}
	if update.FirstName != "" && user.FirstName == "" {
		user.FirstName = update.FirstName
	}
	if update.LastName != "" && user.LastName == "" {
		user.LastName = update.LastName
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// MarkModuleCompleted records progress in the course player. Modules unlock
// sequentially: completing module n requires modules 0..n-1 to be done.
// Completing an already-completed module is a no-op. Finishing the last
// module issues a certificate.
func (s *AuthService) MarkModuleCompleted(userID, courseID string, moduleIndex int) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.HasCourse(courseID) {
		return nil, fmt.Errorf("user is not enrolled in course %s", courseID)
	}

	course, err := s.catalog.GetCourseByID(courseID)
	if err != nil {
		return nil, err
	}
	if moduleIndex < 0 || moduleIndex >= len(course.Modules) {
		return nil, fmt.Errorf("course %s has no module %d", courseID, moduleIndex)
	}

	if user.CompletedModules == nil {
		user.CompletedModules = make(map[string][]int)
	}
	done := user.CompletedModules[courseID]

	for _, idx := range done {
		if idx == moduleIndex {
			return user, nil
		}
	}
	if moduleIndex != len(done) {
		return nil, fmt.Errorf("module %d is locked: complete module %d first", moduleIndex, len(done))
	}

	done = append(done, moduleIndex)
	user.CompletedModules[courseID] = done

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to save module progress: %w", err)
	}

	if len(done) == len(course.Modules) {
		cert := &models.Certificate{
			UserID:   user.ID,
			CourseID: courseID,
			DNI:      user.DNI,
		}
		if err := s.certRepo.Create(cert); err != nil {
			// The progression is saved; the certificate can be re-issued.
			log.Printf("Warning: failed to issue certificate for user %s, course %s: %v", userID, courseID, err)
		} else {
			log.Printf("Issued certificate %s for user %s, course %s", cert.ID, userID, courseID)
		}
	}

	return user, nil
}
