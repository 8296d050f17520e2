package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/internal/models"
)

// UI element identifiers used across the web application.
const (
	UIElementDashboard    = "dashboard"
	UIElementMediaLibrary = "media-library"
	UIElementRequests     = "requests"
	UIElementCanvas       = "canvas"
	UIElementAnalytics    = "analytics"
	UIElementAdminPanel   = "admin-panel"
)

// UIPermissionState describes how one UI element renders for a user.
type UIPermissionState struct {
	Visible     bool   `json:"visible"`
	Enabled     bool   `json:"enabled"`
	CustomLabel string `json:"custom_label,omitempty"`
}

// SetUIPermissionInput defines an explicit per-user element override.
type SetUIPermissionInput struct {
	UserID      string
	UIElement   string
	IsVisible   bool
	IsEnabled   bool
	CustomLabel string
}

// UIPermissionService derives the per-user element visibility map. The map is
// a presentation hint only; authorization decisions never consult it.
type UIPermissionService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// UIPermissionServiceOption customises UIPermissionService behaviour.
type UIPermissionServiceOption func(*UIPermissionService)

// WithUIPermissionClock injects a custom clock primarily for testing.
func WithUIPermissionClock(clock func() time.Time) UIPermissionServiceOption {
	return func(s *UIPermissionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewUIPermissionService constructs a UIPermissionService.
func NewUIPermissionService(db *gorm.DB, audit *AuditService, opts ...UIPermissionServiceOption) (*UIPermissionService, error) {
	if db == nil {
		return nil, errors.New("ui permission service: db is required")
	}

	service := &UIPermissionService{
		db:    db,
		audit: audit,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

func allUIElements() []string {
	return []string{
		UIElementDashboard,
		UIElementMediaLibrary,
		UIElementRequests,
		UIElementCanvas,
		UIElementAnalytics,
		UIElementAdminPanel,
	}
}

// roleUIDefaults maps role names to the elements visible by default. Roles
// absent from the table fall back to the dashboard alone.
var roleUIDefaults = map[string][]string{
	authz.RoleAdmin:  allUIElements(),
	authz.RoleBuyer:  {UIElementDashboard, UIElementRequests, UIElementCanvas, UIElementAnalytics},
	authz.RoleEditor: {UIElementDashboard, UIElementMediaLibrary, UIElementRequests},
	authz.RoleViewer: {UIElementDashboard, UIElementRequests, UIElementMediaLibrary},
}

// GetUIPermissions computes the element map for a user: role-derived defaults
// overlaid with the user's explicit override rows. Explicit rows always win.
func (s *UIPermissionService) GetUIPermissions(ctx context.Context, userID string) (map[string]UIPermissionState, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newValidationError("user id is required")
	}

	roleNames, isSuperAdmin, err := s.activeRoleNames(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]UIPermissionState, len(allUIElements()))
	for _, element := range allUIElements() {
		result[element] = UIPermissionState{Visible: false, Enabled: false}
	}

	if isSuperAdmin {
		for _, element := range allUIElements() {
			result[element] = UIPermissionState{Visible: true, Enabled: true}
		}
		return result, nil
	}

	matched := false
	for _, name := range roleNames {
		elements, ok := roleUIDefaults[name]
		if !ok {
			continue
		}
		matched = true
		for _, element := range elements {
			result[element] = UIPermissionState{Visible: true, Enabled: true}
		}
	}
	if !matched {
		result[UIElementDashboard] = UIPermissionState{Visible: true, Enabled: true}
	}

	var overrides []models.UIPermission
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&overrides).Error; err != nil {
		return nil, storeError("ui permission service: load overrides", err)
	}

	for _, row := range overrides {
		result[row.UIElement] = UIPermissionState{
			Visible:     row.IsVisible,
			Enabled:     row.IsEnabled,
			CustomLabel: row.CustomLabel,
		}
	}

	return result, nil
}

// SetUIPermission upserts an explicit override for one (user, element) pair.
func (s *UIPermissionService) SetUIPermission(ctx context.Context, actorID string, input SetUIPermissionInput) (*models.UIPermission, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, newValidationError("user id is required")
	}
	element := strings.TrimSpace(input.UIElement)
	if element == "" {
		return nil, newValidationError("ui element is required")
	}

	var override *models.UIPermission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.UIPermission
		txErr := tx.Where("user_id = ? AND ui_element = ?", userID, element).First(&existing).Error

		now := s.now().UTC()
		if txErr == nil {
			updates := map[string]any{
				"is_visible":    input.IsVisible,
				"is_enabled":    input.IsEnabled,
				"custom_label":  strings.TrimSpace(input.CustomLabel),
				"granted_by_id": strPtr(actorID),
				"granted_at":    now,
			}
			if txErr := tx.Model(&existing).Updates(updates).Error; txErr != nil {
				return storeError("ui permission service: update override", txErr)
			}
			override = &existing
			return nil
		}
		if !errors.Is(txErr, gorm.ErrRecordNotFound) {
			return storeError("ui permission service: load override", txErr)
		}

		record := models.UIPermission{
			UserID:      userID,
			UIElement:   element,
			IsVisible:   input.IsVisible,
			IsEnabled:   input.IsEnabled,
			CustomLabel: strings.TrimSpace(input.CustomLabel),
			GrantedByID: strPtr(actorID),
			GrantedAt:   now,
		}
		if txErr := tx.Create(&record).Error; txErr != nil {
			return storeError("ui permission service: create override", txErr)
		}
		override = &record
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "ui_permission.set",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  "ui_element",
		ResourceID:    strPtr(element),
		Details: map[string]any{
			"is_visible": input.IsVisible,
			"is_enabled": input.IsEnabled,
		},
	})

	return override, nil
}

// RemoveUIPermission deletes the explicit override, restoring role defaults.
func (s *UIPermissionService) RemoveUIPermission(ctx context.Context, actorID, userID, element string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	element = strings.TrimSpace(element)
	if userID == "" || element == "" {
		return false, newValidationError("user id and ui element are required")
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND ui_element = ?", userID, element).
		Delete(&models.UIPermission{})
	if result.Error != nil {
		return false, storeError("ui permission service: remove override", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "ui_permission.remove",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  "ui_element",
		ResourceID:    strPtr(element),
	})

	return true, nil
}

// activeRoleNames returns the names of the user's active global roles along
// with whether one of them is Super Admin. UI defaults derive from global
// roles only; folder and request scoped roles do not widen navigation.
func (s *UIPermissionService) activeRoleNames(ctx context.Context, userID string) ([]string, bool, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Table("user_roles").
		Select("roles.name").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND user_roles.is_active = ? AND user_roles.scope_type = ?", userID, true, models.ScopeGlobal).
		Where("user_roles.expires_at IS NULL OR user_roles.expires_at > ?", s.now().UTC()).
		Scan(&names).Error
	if err != nil {
		return nil, false, storeError("ui permission service: load roles", err)
	}

	for _, name := range names {
		if name == authz.RoleSuperAdmin {
			return names, true, nil
		}
	}
	return names, false, nil
}
