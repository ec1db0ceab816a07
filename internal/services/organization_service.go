package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/models"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/logger"
)

// CreateOrganizationInput captures the attributes required to register an organization.
type CreateOrganizationInput struct {
	Name        string
	Description string
	Website     string
	City        string
}

// UpdateOrganizationInput represents mutable organization fields.
type UpdateOrganizationInput struct {
	Name        *string
	Description *string
	Website     *string
	City        *string
}

// ListOrganizationsOptions controls pagination for the directory listing.
type ListOrganizationsOptions struct {
	Page     int
	PageSize int
	Query    string
	City     string
}

// OrganizationService manages lifecycle operations for organizations.
type OrganizationService struct {
	db           *gorm.DB
	auditService *AuditService
	log          *zap.Logger
}

// NewOrganizationService constructs an OrganizationService instance.
func NewOrganizationService(db *gorm.DB, auditService *AuditService) (*OrganizationService, error) {
	if db == nil {
		return nil, errors.New("organization service: db is required")
	}
	return &OrganizationService{
		db:           db,
		auditService: auditService,
		log:          logger.WithModule("organization"),
	}, nil
}

// Create registers a new organization and makes the creator its first approved ADMIN.
func (s *OrganizationService) Create(ctx context.Context, creatorUserID string, input CreateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	creatorUserID = strings.TrimSpace(creatorUserID)
	if creatorUserID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("organization name is required")
	}

	org := &models.Organization{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Website:     strings.TrimSpace(input.Website),
		City:        strings.TrimSpace(input.City),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		founder := &models.Membership{
			OrganizationID: org.ID,
			UserID:         creatorUserID,
			Role:           models.RoleAdmin,
			Approved:       true,
		}
		if err := tx.Create(founder).Error; err != nil {
			return fmt.Errorf("create founding membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(s.log, "create_organization", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: org.ID,
		ActorID:        creatorUserID,
		Action:         AuditOrganizationCreate,
		Resource:       org.ID,
		Metadata:       map[string]any{"name": name},
	})

	return org, nil
}

// GetByID loads an organization.
func (s *OrganizationService) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, asServiceError(s.log, "get_organization", err)
	}
	return &org, nil
}

// List returns a page of organizations ordered by name.
func (s *OrganizationService) List(ctx context.Context, opts ListOrganizationsOptions) ([]models.Organization, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Organization{})
	if q := strings.ToLower(strings.TrimSpace(opts.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if city := strings.TrimSpace(opts.City); city != "" {
		query = query.Where("LOWER(city) = ?", strings.ToLower(city))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, asServiceError(s.log, "count_organizations", err)
	}

	var orgs []models.Organization
	if err := query.
		Order("name ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&orgs).Error; err != nil {
		return nil, 0, asServiceError(s.log, "list_organizations", err)
	}
	return orgs, total, nil
}

// Update modifies organization metadata. Only approved administrators may do so.
func (s *OrganizationService) Update(ctx context.Context, id, requesterUserID string, input UpdateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("organization name is required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Website != nil {
		updates["website"] = strings.TrimSpace(*input.Website)
	}
	if input.City != nil {
		updates["city"] = strings.TrimSpace(*input.City)
	}

	var org models.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&org, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrganizationNotFound
			}
			return fmt.Errorf("load organization: %w", err)
		}
		if err := requireApprovedAdmin(tx, id, requesterUserID); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&org).Updates(updates).Error; err != nil {
			return fmt.Errorf("update organization: %w", err)
		}
		return tx.First(&org, "id = ?", id).Error
	})
	if err != nil {
		return nil, asServiceError(s.log, "update_organization", err)
	}

	if len(updates) > 0 {
		recordAudit(s.auditService, ctx, AuditEntry{
			OrganizationID: org.ID,
			ActorID:        requesterUserID,
			Action:         AuditOrganizationUpdate,
			Resource:       org.ID,
			Metadata:       updates,
		})
	}

	return &org, nil
}
