package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/models"
)

// AssignRoleInput defines a role assignment for a user at a given scope.
type AssignRoleInput struct {
	UserID    string
	RoleID    string
	ScopeType string
	ScopeID   *string
	ExpiresAt *time.Time
}

// RemoveRoleInput identifies the exact assignment tuple to remove.
type RemoveRoleInput struct {
	UserID    string
	RoleID    string
	ScopeType string
	ScopeID   *string
}

// RoleService manages scoped role assignments.
type RoleService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// RoleServiceOption customises RoleService behaviour.
type RoleServiceOption func(*RoleService)

// WithRoleClock injects a custom clock primarily for testing.
func WithRoleClock(clock func() time.Time) RoleServiceOption {
	return func(s *RoleService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewRoleService constructs a RoleService.
func NewRoleService(db *gorm.DB, audit *AuditService, opts ...RoleServiceOption) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}

	service := &RoleService{
		db:    db,
		audit: audit,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// AssignRole grants a role to a user at the requested scope. Assigning a role
// the user already holds at the same scope reactivates and refreshes the
// existing row.
func (s *RoleService) AssignRole(ctx context.Context, actorID string, input AssignRoleInput) (*models.UserRole, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, newValidationError("user id is required")
	}

	scopeType, scopeID, err := normaliseScope(input.ScopeType, input.ScopeID)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if input.ExpiresAt != nil {
		exp := input.ExpiresAt.UTC().Truncate(time.Second)
		if exp.Before(s.now().UTC()) {
			return nil, newValidationError("expiration must be in the future")
		}
		expiresAt = &exp
	}

	role, err := s.loadRole(ctx, input.RoleID)
	if err != nil {
		return nil, err
	}

	var assignment *models.UserRole
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, txErr := findUserRoleRow(tx, userID, role.ID, scopeType, scopeID)
		if txErr != nil {
			return txErr
		}

		now := s.now().UTC()
		if existing != nil {
			updates := map[string]any{
				"granted_by_id": strPtr(actorID),
				"granted_at":    now,
				"expires_at":    expiresAt,
				"is_active":     true,
			}
			if txErr := tx.Model(existing).Updates(updates).Error; txErr != nil {
				return storeError("role service: update assignment", txErr)
			}
			assignment = existing
			return nil
		}

		record := models.UserRole{
			UserID:      userID,
			RoleID:      role.ID,
			ScopeType:   scopeType,
			ScopeID:     scopeID,
			GrantedByID: strPtr(actorID),
			GrantedAt:   now,
			ExpiresAt:   expiresAt,
			IsActive:    true,
		}
		if txErr := tx.Create(&record).Error; txErr != nil {
			if isUniqueConstraintError(txErr) {
				return storeError("role service: concurrent assignment", txErr)
			}
			return storeError("role service: create assignment", txErr)
		}
		assignment = &record
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "role.assign",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  scopeType,
		ResourceID:    scopeID,
		Details: map[string]any{
			"role_id":    role.ID,
			"role_name":  role.Name,
			"expires_at": expiresAt,
		},
	})

	assignment.Role = role
	return assignment, nil
}

// RemoveRole deactivates exactly the matching (user, role, scope) tuple.
// A global assignment of the same role is never touched by a scoped removal
// and vice versa.
func (s *RoleService) RemoveRole(ctx context.Context, actorID string, input RemoveRoleInput) (bool, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return false, newValidationError("user id is required")
	}
	role, err := s.loadRole(ctx, input.RoleID)
	if err != nil {
		return false, err
	}

	scopeType, scopeID, err := normaliseScope(input.ScopeType, input.ScopeID)
	if err != nil {
		return false, err
	}

	query := s.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("user_id = ? AND role_id = ? AND scope_type = ? AND is_active = ?", userID, role.ID, scopeType, true)
	if scopeID != nil {
		query = query.Where("scope_id = ?", *scopeID)
	} else {
		query = query.Where("scope_id IS NULL")
	}

	result := query.Update("is_active", false)
	if result.Error != nil {
		return false, storeError("role service: remove assignment", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "role.remove",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  scopeType,
		ResourceID:    scopeID,
		Details: map[string]any{
			"role_id":   role.ID,
			"role_name": role.Name,
		},
	})

	return true, nil
}

// ListUserRoles returns the user's active, unexpired role assignments.
func (s *RoleService) ListUserRoles(ctx context.Context, userID string) ([]models.UserRole, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newValidationError("user id is required")
	}

	var rows []models.UserRole
	if err := s.db.WithContext(ctx).
		Preload("Role").
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", s.now().UTC()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("role service: list assignments", err)
	}

	return rows, nil
}

// ListRoles returns the role catalog.
func (s *RoleService) ListRoles(ctx context.Context) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	var roles []models.Role
	if err := s.db.WithContext(ctx).
		Preload("DefaultPermissions").
		Order("name ASC").
		Find(&roles).Error; err != nil {
		return nil, storeError("role service: list roles", err)
	}
	return roles, nil
}

// DeactivateExpired flips is_active off for role assignments past expiry.
func (s *RoleService) DeactivateExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, s.now().UTC()).
		Update("is_active", false)
	if result.Error != nil {
		return 0, storeError("role service: deactivate expired", result.Error)
	}

	return result.RowsAffected, nil
}

// loadRole resolves a role by id or by name.
func (s *RoleService) loadRole(ctx context.Context, roleID string) (*models.Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, newValidationError("role id is required")
	}

	var role models.Role
	if err := s.db.WithContext(ctx).First(&role, "id = ? OR name = ?", roleID, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, storeError("role service: load role", err)
	}
	return &role, nil
}

// normaliseScope validates the scope tuple. Global assignments carry no scope
// id; folder and request assignments require one.
func normaliseScope(scopeType string, scopeID *string) (string, *string, error) {
	scopeType = strings.ToLower(strings.TrimSpace(scopeType))
	if scopeType == "" {
		scopeType = models.ScopeGlobal
	}

	switch scopeType {
	case models.ScopeGlobal:
		if scopeID != nil && strings.TrimSpace(*scopeID) != "" {
			return "", nil, newValidationError("global assignments must not carry a scope id")
		}
		return models.ScopeGlobal, nil, nil
	case models.ScopeFolder, models.ScopeRequest:
		if scopeID == nil || strings.TrimSpace(*scopeID) == "" {
			return "", nil, newValidationError("scoped assignments require a scope id")
		}
		id := strings.TrimSpace(*scopeID)
		return scopeType, &id, nil
	default:
		return "", nil, newValidationError("unknown scope type: " + scopeType)
	}
}

func findUserRoleRow(tx *gorm.DB, userID, roleID, scopeType string, scopeID *string) (*models.UserRole, error) {
	query := tx.Where("user_id = ? AND role_id = ? AND scope_type = ?", userID, roleID, scopeType)
	if scopeID != nil {
		query = query.Where("scope_id = ?", *scopeID)
	} else {
		query = query.Where("scope_id IS NULL")
	}

	var row models.UserRole
	err := query.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("role service: load assignment", err)
	}
	return &row, nil
}
