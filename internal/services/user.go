package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetup-backend/internal/models"
	"meetup-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles registration, login and session tokens
type UserService struct {
	userRepo     UserStore
	jwtSecret    string
	jwtTTL       time.Duration
	passwordCost int
	now          func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo UserStore, jwtSecret string, jwtTTL time.Duration) *UserService {
	return &UserService{
		userRepo:     userRepo,
		jwtSecret:    jwtSecret,
		jwtTTL:       jwtTTL,
		passwordCost: bcrypt.DefaultCost,
		now:          time.Now,
	}
}

// RegisterRequest represents a registration form
type RegisterRequest struct {
	Username      string `json:"username"`
	UserID        string `json:"user_id"`
	Password      string `json:"password"`
	Nationality   string `json:"nationality"`
	Gender        string `json:"gender"`
	Age           int    `json:"age"`
	ContactMethod string `json:"contact_method"`
}

func (r *RegisterRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Nationality = strings.TrimSpace(r.Nationality)
	r.Gender = strings.TrimSpace(r.Gender)
	r.ContactMethod = strings.TrimSpace(r.ContactMethod)
}

// Validate checks the form after trimming
func (r *RegisterRequest) Validate() error {
	switch {
	case r.Username == "":
		return invalidInput("username is required")
	case len(r.Username) < 3:
		return invalidInput("username must be at least 3 characters")
	case len(r.Username) > 30:
		return invalidInput("username must be at most 30 characters")
	case r.UserID == "":
		return invalidInput("user_id is required")
	case r.Password == "":
		return invalidInput("password is required")
	case len(r.Password) < 6:
		return invalidInput("password must be at least 6 characters")
	case r.Nationality == "":
		return invalidInput("nationality is required")
	case !models.Gender(r.Gender).Valid():
		return invalidInput("gender must be male or female")
	case r.Age < 1 || r.Age > 150:
		return invalidInput("age must be between 1 and 150")
	case r.ContactMethod == "":
		return invalidInput("contact_method is required")
	}
	return nil
}

// Register creates a new user with a bcrypt password hash
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if _, err := s.userRepo.GetByExternalID(ctx, req.UserID); err == nil {
		return nil, ErrUserIDTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check user_id: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:            uuid.New().String(),
		Username:      req.Username,
		UserID:        req.UserID,
		PasswordHash:  string(hash),
		Nationality:   req.Nationality,
		Gender:        models.Gender(req.Gender),
		Age:           req.Age,
		ContactMethod: req.ContactMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			if repository.ViolatedConstraint(err) == repository.UsersUserIDKey {
				return nil, ErrUserIDTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login checks credentials and returns the user with a fresh token
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", invalidInput("username and password are required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetPushToken stores or clears the APNs device token of a user
func (s *UserService) SetPushToken(ctx context.Context, userID string, token *string) error {
	if token != nil {
		t := strings.TrimSpace(*token)
		if t == "" {
			token = nil
		} else {
			token = &t
		}
	}
	if err := s.userRepo.UpdatePushToken(ctx, userID, token); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// TokenTTL returns how long issued tokens stay valid
func (s *UserService) TokenTTL() time.Duration {
	return s.jwtTTL
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.jwtTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}
