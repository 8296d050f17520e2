package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/internal/models"
	"github.com/mediadesk/mediadesk/pkg/metrics"
)

// GrantInput describes an explicit permission grant or denial.
type GrantInput struct {
	UserID       string
	ResourceType string
	Action       string
	Disposition  string
	ResourceID   *string
	ExpiresAt    *time.Time
	Reason       string
}

// RevokeInput identifies the explicit grant to deactivate.
type RevokeInput struct {
	UserID       string
	ResourceType string
	Action       string
	ResourceID   *string
}

// UserPermissionSnapshot aggregates everything granted to one user, intended
// for display surfaces rather than enforcement.
type UserPermissionSnapshot struct {
	UserID        string                       `json:"user_id"`
	Permissions   []models.Permission          `json:"permissions"`
	Roles         []models.UserRole            `json:"roles"`
	FolderAdmins  []models.FolderAdmin         `json:"folder_admins"`
	UIPermissions map[string]UIPermissionState `json:"ui_permissions,omitempty"`
}

// PermissionService owns the explicit allow/deny permission store.
type PermissionService struct {
	db    *gorm.DB
	audit *AuditService
	ui    *UIPermissionService
	now   func() time.Time
}

// PermissionServiceOption customises PermissionService behaviour.
type PermissionServiceOption func(*PermissionService)

// WithPermissionClock injects a custom clock primarily for testing.
func WithPermissionClock(clock func() time.Time) PermissionServiceOption {
	return func(s *PermissionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewPermissionService constructs a PermissionService. The UI permission
// service is optional; without it snapshots omit the UI map.
func NewPermissionService(db *gorm.DB, audit *AuditService, ui *UIPermissionService, opts ...PermissionServiceOption) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}

	service := &PermissionService{
		db:    db,
		audit: audit,
		ui:    ui,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Grant upserts an explicit permission row for the (user, resource type,
// resource id, action) tuple. Repeated grants refresh the existing row rather
// than inserting a second one.
func (s *PermissionService) Grant(ctx context.Context, actorID string, input GrantInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	normalised, err := s.normaliseGrant(input)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUserExists(ctx, normalised.UserID); err != nil {
		return nil, err
	}

	var permission *models.Permission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		permission, txErr = s.applyGrant(tx, actorID, normalised)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "permission.grant",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(normalised.UserID),
		ResourceType:  normalised.ResourceType,
		ResourceID:    normalised.ResourceID,
		Details: map[string]any{
			"action":      normalised.Action,
			"disposition": normalised.Disposition,
			"expires_at":  normalised.ExpiresAt,
			"reason":      normalised.Reason,
		},
	})

	return permission, nil
}

// applyGrant performs the transactional upsert shared by Grant and the
// access-request approval path. Callers supply the surrounding transaction
// and audit entry.
func (s *PermissionService) applyGrant(tx *gorm.DB, actorID string, input GrantInput) (*models.Permission, error) {
	now := s.now().UTC()

	existing, err := findPermissionRow(tx, input.UserID, input.ResourceType, input.Action, input.ResourceID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		updates := map[string]any{
			"disposition":   input.Disposition,
			"granted_by_id": strPtr(actorID),
			"granted_at":    now,
			"expires_at":    input.ExpiresAt,
			"reason":        input.Reason,
			"is_active":     true,
		}
		if err := tx.Model(existing).Updates(updates).Error; err != nil {
			return nil, storeError("permission service: update grant", err)
		}
		return existing, nil
	}

	record := models.Permission{
		UserID:       input.UserID,
		ResourceType: input.ResourceType,
		ResourceID:   input.ResourceID,
		Action:       input.Action,
		Disposition:  input.Disposition,
		GrantedByID:  strPtr(actorID),
		GrantedAt:    now,
		ExpiresAt:    input.ExpiresAt,
		Reason:       input.Reason,
		IsActive:     true,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, storeError("permission service: create grant", err)
	}
	return &record, nil
}

// Revoke deactivates the matching explicit grant. The row is kept for audit
// history; it reports whether a row was found.
func (s *PermissionService) Revoke(ctx context.Context, actorID string, input RevokeInput) (bool, error) {
	ctx = ensureContext(ctx)

	resourceType, err := authz.ParseResourceType(input.ResourceType)
	if err != nil {
		return false, newValidationError(err.Error())
	}
	action, err := authz.ParseAction(input.Action)
	if err != nil {
		return false, newValidationError(err.Error())
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return false, newValidationError("user id is required")
	}

	query := s.db.WithContext(ctx).
		Model(&models.Permission{}).
		Where("user_id = ? AND resource_type = ? AND action = ? AND is_active = ?", userID, string(resourceType), string(action), true)
	if input.ResourceID != nil {
		query = query.Where("resource_id = ?", *input.ResourceID)
	} else {
		query = query.Where("resource_id IS NULL")
	}

	result := query.Update("is_active", false)
	if result.Error != nil {
		return false, storeError("permission service: revoke", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "permission.revoke",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  string(resourceType),
		ResourceID:    input.ResourceID,
		Details: map[string]any{
			"action": string(action),
		},
	})

	return true, nil
}

// DeactivateExpired flips is_active off for permissions whose expiry has
// passed. Readers already filter on expiry, so this is housekeeping and safe
// to run concurrently with traffic.
func (s *PermissionService) DeactivateExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.Permission{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("is_active", false)
	if result.Error != nil {
		return 0, storeError("permission service: deactivate expired", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ExpiredPermissionsSwept.Add(float64(result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// GetUserPermissions returns the full grant snapshot for a user: explicit
// permissions, scoped roles, folder delegations and the UI visibility map.
func (s *PermissionService) GetUserPermissions(ctx context.Context, userID string) (*UserPermissionSnapshot, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newValidationError("user id is required")
	}

	now := s.now().UTC()
	snapshot := &UserPermissionSnapshot{UserID: userID}

	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at ASC").
		Find(&snapshot.Permissions).Error; err != nil {
		return nil, storeError("permission service: load permissions", err)
	}

	if err := s.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at ASC").
		Find(&snapshot.Roles).Error; err != nil {
		return nil, storeError("permission service: load roles", err)
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at ASC").
		Find(&snapshot.FolderAdmins).Error; err != nil {
		return nil, storeError("permission service: load folder admins", err)
	}

	if s.ui != nil {
		uiMap, err := s.ui.GetUIPermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		snapshot.UIPermissions = uiMap
	}

	return snapshot, nil
}

func (s *PermissionService) normaliseGrant(input GrantInput) (GrantInput, error) {
	resourceType, err := authz.ParseResourceType(input.ResourceType)
	if err != nil {
		return GrantInput{}, newValidationError(err.Error())
	}
	action, err := authz.ParseAction(input.Action)
	if err != nil {
		return GrantInput{}, newValidationError(err.Error())
	}
	disposition, err := authz.ParseDisposition(input.Disposition)
	if err != nil {
		return GrantInput{}, newValidationError(err.Error())
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return GrantInput{}, newValidationError("user id is required")
	}

	var expiresAt *time.Time
	if input.ExpiresAt != nil {
		exp := input.ExpiresAt.UTC().Truncate(time.Second)
		if exp.Before(s.now().UTC()) {
			return GrantInput{}, newValidationError("expiration must be in the future")
		}
		expiresAt = &exp
	}

	var resourceID *string
	if input.ResourceID != nil && strings.TrimSpace(*input.ResourceID) != "" {
		id := strings.TrimSpace(*input.ResourceID)
		resourceID = &id
	}

	return GrantInput{
		UserID:       userID,
		ResourceType: string(resourceType),
		Action:       string(action),
		Disposition:  string(disposition),
		ResourceID:   resourceID,
		ExpiresAt:    expiresAt,
		Reason:       strings.TrimSpace(input.Reason),
	}, nil
}

func (s *PermissionService) ensureUserExists(ctx context.Context, userID string) error {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newValidationError("user not found")
		}
		return storeError("permission service: load user", err)
	}
	return nil
}

func findPermissionRow(tx *gorm.DB, userID, resourceType, action string, resourceID *string) (*models.Permission, error) {
	query := tx.Where("user_id = ? AND resource_type = ? AND action = ?", userID, resourceType, action)
	if resourceID != nil {
		query = query.Where("resource_id = ?", *resourceID)
	} else {
		query = query.Where("resource_id IS NULL")
	}

	var row models.Permission
	err := query.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission service: load grant: %w", err)
	}
	return &row, nil
}
