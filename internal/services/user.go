package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shaggydog-ai/shaggydog/internal/db/models"
	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
)

// ErrInvalidCredentials indicates a failed login attempt. Wrong username and
// wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid username or password")

// User provides business logic for registration and authentication
type User struct {
	repo *repos.UserRepository
}

// NewUserService creates a new user service instance
func NewUserService(repo *repos.UserRepository) *User {
	return &User{repo: repo}
}

// Register creates a new user with a bcrypt-hashed password
func (s *User) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < models.MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", models.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and issues a fresh API token
func (s *User) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, repos.ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.repo.SetToken(ctx, user.ID, token); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// GetByToken resolves an API token to its user
func (s *User) GetByToken(ctx context.Context, token string) (*models.User, error) {
	return s.repo.GetByToken(ctx, token)
}

// Delete removes a user and cascades to every job they own
func (s *User) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}
