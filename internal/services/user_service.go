package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecohubkosova/ecohub/internal/models"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New(apperrors.ErrNotFound.Code, "User not found", http.StatusNotFound)
)

// Identity is the authenticated subject handed over by the authentication provider.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// UserService keeps the local user directory in step with the authentication provider.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Sync inserts or refreshes the user row for an authenticated identity.
func (s *UserService) Sync(ctx context.Context, identity Identity) (*models.User, error) {
	ctx = ensureContext(ctx)

	id := strings.TrimSpace(identity.UserID)
	email := normalizeEmail(identity.Email)
	if id == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	user := &models.User{
		ID:          id,
		Email:       email,
		DisplayName: strings.TrimSpace(identity.DisplayName),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("user service: sync user: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads the most recently synced user holding an email address, case-insensitively.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		Order("updated_at DESC").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user by email: %w", err)
	}
	return &user, nil
}
