package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/auditctx"
	"github.com/ecohubkosova/ecohub/internal/models"
)

// Audit actions written by the membership workflow.
const (
	AuditOrganizationCreate = "organization.create"
	AuditOrganizationUpdate = "organization.update"
	AuditMemberAdd          = "member.add"
	AuditMemberRequest      = "member.request"
	AuditMemberRoleChange   = "member.role_change"
	AuditMemberApproval     = "member.approval"
	AuditMemberRemove       = "member.remove"
	AuditInviteCreate       = "invitation.create"
	AuditInviteResend       = "invitation.resend"
	AuditInviteRevoke       = "invitation.revoke"
	AuditInviteAccept       = "invitation.accept"
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	OrganizationID string
	ActorID        string
	Action         string
	Resource       string
	Result         string
	Metadata       map[string]any
}

// AuditFilters encapsulates optional filters when querying audit logs.
type AuditFilters struct {
	ActorID  string
	Action   string
	Result   string
	Resource string
	Since    *time.Time
	Until    *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, now: utcNow}, nil
}

// Log stores an audit entry, marshalling metadata into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	log := models.AuditLog{
		OrganizationID: stringPtr(entry.OrganizationID),
		ActorID:        stringPtr(entry.ActorID),
		Action:         strings.TrimSpace(entry.Action),
		Resource:       strings.TrimSpace(entry.Resource),
		Result:         strings.TrimSpace(entry.Result),
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		if log.ActorID == nil {
			log.ActorID = stringPtr(actor.UserID)
		}
		log.IPAddress = actor.IPAddress
		log.UserAgent = actor.UserAgent
	}

	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		log.Metadata = datatypes.JSON(encoded)
	}

	return s.db.WithContext(ctx).Create(&log).Error
}

// List returns one organization's audit logs, newest first.
func (s *AuditService) List(ctx context.Context, organizationID string, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	var (
		results []models.AuditLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("organization_id = ?", organizationID)
	query = applyAuditFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan removes audit logs older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.ActorID != "" {
		query = query.Where("actor_id = ?", filters.ActorID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Result != "" {
		query = query.Where("result = ?", filters.Result)
	}
	if filters.Resource != "" {
		query = query.Where("resource = ?", filters.Resource)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}
