package services

import (
	"context"
	"log"
	"strings"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/infrastructure/persistence"
	"github.com/stagedoor/backend/pkg/auth"
	"github.com/stagedoor/backend/pkg/errors"
	"github.com/stagedoor/backend/pkg/utils"
)

// AuthService handles login and account registration.
type AuthService struct {
	users *persistence.UserRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(users *persistence.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// LoginResult carries the issued token and the session it encodes.
type LoginResult struct {
	Token string             `json:"token"`
	User  models.UserSession `json:"user"`
}

// Login verifies credentials and issues a JWT. Wrong email and wrong
// password return the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, nil, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, errors.NewUnauthorizedError("invalid email or password")
	}

	session := models.UserSession{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsStaff: user.IsStaff,
	}
	token, err := auth.GenerateToken(session)
	if err != nil {
		return nil, errors.NewInternalError("failed to issue token", err)
	}

	log.Printf("🔑 User %s logged in", user.ID)
	return &LoginResult{Token: token, User: session}, nil
}

// Register creates a non-staff account. Staff accounts are seeded or
// promoted out of band.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, errors.NewValidationError("name", "name is required")
	}
	if !auth.IsValidEmail(email) {
		return nil, errors.NewValidationError("email", "invalid email address")
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return nil, errors.NewValidationError("password", err.Error())
	}

	existing, err := s.users.FindByEmail(ctx, nil, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewConflictError("user", "email is already registered", "")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		ID:           utils.GenerateID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Insert(ctx, nil, user); err != nil {
		return nil, err
	}
	log.Printf("👤 Registered user %s", user.ID)
	return user, nil
}
