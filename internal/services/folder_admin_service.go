package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/models"
)

// FolderAdminCapabilities toggles what a folder admin may do inside the
// folder. Each flag stands alone.
type FolderAdminCapabilities struct {
	CanGrantAccess    bool
	CanRevokeAccess   bool
	CanManageRequests bool
	CanDeleteFiles    bool
}

// AddFolderAdminInput defines a folder delegation for a user.
type AddFolderAdminInput struct {
	FolderID     string
	UserID       string
	Capabilities FolderAdminCapabilities
	ExpiresAt    *time.Time
}

// FolderAdminService manages folder-scoped admin delegations.
type FolderAdminService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// FolderAdminServiceOption customises FolderAdminService behaviour.
type FolderAdminServiceOption func(*FolderAdminService)

// WithFolderAdminClock injects a custom clock primarily for testing.
func WithFolderAdminClock(clock func() time.Time) FolderAdminServiceOption {
	return func(s *FolderAdminService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewFolderAdminService constructs a FolderAdminService.
func NewFolderAdminService(db *gorm.DB, audit *AuditService, opts ...FolderAdminServiceOption) (*FolderAdminService, error) {
	if db == nil {
		return nil, errors.New("folder admin service: db is required")
	}

	service := &FolderAdminService{
		db:    db,
		audit: audit,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// AddFolderAdmin delegates folder administration to a user. Re-adding an
// existing admin replaces the capability set and expiry on the current row.
func (s *FolderAdminService) AddFolderAdmin(ctx context.Context, actorID string, input AddFolderAdminInput) (*models.FolderAdmin, error) {
	ctx = ensureContext(ctx)

	folderID := strings.TrimSpace(input.FolderID)
	if folderID == "" {
		return nil, newValidationError("folder id is required")
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, newValidationError("user id is required")
	}

	var expiresAt *time.Time
	if input.ExpiresAt != nil {
		exp := input.ExpiresAt.UTC().Truncate(time.Second)
		if exp.Before(s.now().UTC()) {
			return nil, newValidationError("expiration must be in the future")
		}
		expiresAt = &exp
	}

	if err := s.ensureFolderExists(ctx, folderID); err != nil {
		return nil, err
	}

	var admin *models.FolderAdmin
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.FolderAdmin
		txErr := tx.Where("folder_id = ? AND user_id = ?", folderID, userID).First(&existing).Error

		now := s.now().UTC()
		if txErr == nil {
			updates := map[string]any{
				"can_grant_access":    input.Capabilities.CanGrantAccess,
				"can_revoke_access":   input.Capabilities.CanRevokeAccess,
				"can_manage_requests": input.Capabilities.CanManageRequests,
				"can_delete_files":    input.Capabilities.CanDeleteFiles,
				"assigned_by_id":      strPtr(actorID),
				"assigned_at":         now,
				"expires_at":          expiresAt,
				"is_active":           true,
			}
			if txErr := tx.Model(&existing).Updates(updates).Error; txErr != nil {
				return storeError("folder admin service: update delegation", txErr)
			}
			admin = &existing
			return nil
		}
		if !errors.Is(txErr, gorm.ErrRecordNotFound) {
			return storeError("folder admin service: load delegation", txErr)
		}

		record := models.FolderAdmin{
			FolderID:          folderID,
			UserID:            userID,
			CanGrantAccess:    input.Capabilities.CanGrantAccess,
			CanRevokeAccess:   input.Capabilities.CanRevokeAccess,
			CanManageRequests: input.Capabilities.CanManageRequests,
			CanDeleteFiles:    input.Capabilities.CanDeleteFiles,
			AssignedByID:      strPtr(actorID),
			AssignedAt:        now,
			ExpiresAt:         expiresAt,
			IsActive:          true,
		}
		if txErr := tx.Create(&record).Error; txErr != nil {
			return storeError("folder admin service: create delegation", txErr)
		}
		admin = &record
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "folder_admin.add",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  "folder",
		ResourceID:    strPtr(folderID),
		Details: map[string]any{
			"can_grant_access":    input.Capabilities.CanGrantAccess,
			"can_revoke_access":   input.Capabilities.CanRevokeAccess,
			"can_manage_requests": input.Capabilities.CanManageRequests,
			"can_delete_files":    input.Capabilities.CanDeleteFiles,
			"expires_at":          expiresAt,
		},
	})

	return admin, nil
}

// RemoveFolderAdmin deactivates the user's delegation for the folder.
func (s *FolderAdminService) RemoveFolderAdmin(ctx context.Context, actorID, folderID, userID string) (bool, error) {
	ctx = ensureContext(ctx)

	folderID = strings.TrimSpace(folderID)
	userID = strings.TrimSpace(userID)
	if folderID == "" || userID == "" {
		return false, newValidationError("folder id and user id are required")
	}

	result := s.db.WithContext(ctx).
		Model(&models.FolderAdmin{}).
		Where("folder_id = ? AND user_id = ? AND is_active = ?", folderID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, storeError("folder admin service: remove delegation", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "folder_admin.remove",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  "folder",
		ResourceID:    strPtr(folderID),
	})

	return true, nil
}

// ListFolderAdmins returns the folder's active, unexpired delegations.
func (s *FolderAdminService) ListFolderAdmins(ctx context.Context, folderID string) ([]models.FolderAdmin, error) {
	ctx = ensureContext(ctx)

	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return nil, newValidationError("folder id is required")
	}

	var rows []models.FolderAdmin
	if err := s.db.WithContext(ctx).
		Where("folder_id = ? AND is_active = ?", folderID, true).
		Where("expires_at IS NULL OR expires_at > ?", s.now().UTC()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("folder admin service: list delegations", err)
	}

	return rows, nil
}

// DeactivateExpired flips is_active off for delegations past expiry.
func (s *FolderAdminService) DeactivateExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.FolderAdmin{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, s.now().UTC()).
		Update("is_active", false)
	if result.Error != nil {
		return 0, storeError("folder admin service: deactivate expired", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *FolderAdminService) ensureFolderExists(ctx context.Context, folderID string) error {
	var folder models.Folder
	if err := s.db.WithContext(ctx).Select("id").First(&folder, "id = ?", folderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newValidationError("folder not found")
		}
		return storeError("folder admin service: load folder", err)
	}
	return nil
}
