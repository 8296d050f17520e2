package models

import "time"

// UIPermission overrides the role-derived default visibility of one UI
// element for one user. Presentation hint only; the resolver never reads it.
type UIPermission struct {
	BaseModel

	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_ui_perm,priority:1" json:"user_id"`
	UIElement   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_ui_perm,priority:2" json:"ui_element"`
	IsVisible   bool      `gorm:"default:true" json:"is_visible"`
	IsEnabled   bool      `gorm:"default:true" json:"is_enabled"`
	CustomLabel string    `json:"custom_label"`
	GrantedByID *string   `gorm:"type:uuid" json:"granted_by_id"`
	GrantedAt   time.Time `json:"granted_at"`
}
