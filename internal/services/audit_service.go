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

	"github.com/mediadesk/mediadesk/internal/models"
)

// AuditEntry captures a single authorization mutation to persist.
type AuditEntry struct {
	ActionType    string
	PerformedByID *string
	TargetUserID  *string
	ResourceType  string
	ResourceID    *string
	Details       map[string]any
}

// AuditFilters encapsulates optional filters when querying the audit log.
type AuditFilters struct {
	ActionType    string
	PerformedByID string
	TargetUserID  string
	ResourceType  string
	ResourceID    string
	Since         *time.Time
	Until         *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService persists and retrieves the append-only permission audit log.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Record appends an audit entry, marshalling details into JSON form. Entries
// are never updated after creation.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.ActionType) == "" {
		return errors.New("audit service: action type is required")
	}

	var payload datatypes.JSON
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("audit service: marshal details: %w", err)
		}
		payload = datatypes.JSON(encoded)
	}

	record := models.PermissionAuditLog{
		ActionType:    strings.TrimSpace(entry.ActionType),
		PerformedByID: entry.PerformedByID,
		TargetUserID:  entry.TargetUserID,
		ResourceType:  strings.TrimSpace(entry.ResourceType),
		ResourceID:    entry.ResourceID,
		Details:       payload,
	}

	return s.db.WithContext(ctx).Create(&record).Error
}

// List returns paginated audit entries ordered by creation time descending.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.PermissionAuditLog, int64, error) {
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
		results []models.PermissionAuditLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.PermissionAuditLog{})
	query = applyAuditFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count entries: %w", err)
	}

	if err := query.
		Preload("PerformedBy").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list entries: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan removes audit entries older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.PermissionAuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup entries: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.ActionType != "" {
		query = query.Where("action_type = ?", filters.ActionType)
	}
	if filters.PerformedByID != "" {
		query = query.Where("performed_by_id = ?", filters.PerformedByID)
	}
	if filters.TargetUserID != "" {
		query = query.Where("target_user_id = ?", filters.TargetUserID)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}
