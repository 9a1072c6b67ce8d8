package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shaggydog-ai/shaggydog/internal/db/models"
)

// UserRepository provides access to user-related database operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user in the database
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by their username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(&models.User{Username: username}).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByToken retrieves a user by their current API token
func (r *UserRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	var user models.User
	err := r.db.WithContext(ctx).Where(&models.User{Token: token}).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetToken stores the API token issued at login
func (r *UserRepository) SetToken(ctx context.Context, id uint, token string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("token", token).Error
}

// Delete removes a user and everything they own. The cascade is done in one
// transaction at the repository level so it behaves the same on every driver.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobIDs []uint
		if err := tx.Model(&models.Job{}).Where("owner_id = ?", id).Pluck("id", &jobIDs).Error; err != nil {
			return fmt.Errorf("failed to list owned jobs: %w", err)
		}
		if len(jobIDs) > 0 {
			if err := tx.Unscoped().Where("job_id IN ?", jobIDs).Delete(&models.StageImage{}).Error; err != nil {
				return fmt.Errorf("failed to delete stage images: %w", err)
			}
			if err := tx.Unscoped().Where("owner_id = ?", id).Delete(&models.Job{}).Error; err != nil {
				return fmt.Errorf("failed to delete jobs: %w", err)
			}
		}
		res := tx.Unscoped().Delete(&models.User{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}
