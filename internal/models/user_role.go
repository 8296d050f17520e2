package models

import "time"

// Role assignment scopes.
const (
	ScopeGlobal  = "global"
	ScopeFolder  = "folder"
	ScopeRequest = "request"
)

// UserRole assigns a role to a user, either globally or scoped to a single
// folder or file request. Expired or inactive rows are ignored by the
// resolver at query time.
type UserRole struct {
	BaseModel

	UserID      string     `gorm:"type:uuid;not null;uniqueIndex:idx_user_role_scope,priority:1" json:"user_id"`
	RoleID      string     `gorm:"type:uuid;not null;uniqueIndex:idx_user_role_scope,priority:2" json:"role_id"`
	Role        *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	ScopeType   string     `gorm:"type:varchar(16);not null;default:'global';uniqueIndex:idx_user_role_scope,priority:3" json:"scope_type"`
	ScopeID     *string    `gorm:"type:uuid;uniqueIndex:idx_user_role_scope,priority:4" json:"scope_id"`
	GrantedByID *string    `gorm:"type:uuid" json:"granted_by_id"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IsActive    bool       `gorm:"default:true;index" json:"is_active"`
}
