package models

import "time"

// Permission stores a single explicit allow or deny grant. A null ResourceID
// applies the grant to every resource of the type. At most one active row may
// exist per (user, resource_type, resource_id, action) tuple; writers upsert
// rather than insert.
type Permission struct {
	BaseModel

	UserID       string     `gorm:"type:uuid;not null;index:idx_perm_tuple,priority:1" json:"user_id"`
	ResourceType string     `gorm:"type:varchar(32);not null;index:idx_perm_tuple,priority:2" json:"resource_type"`
	ResourceID   *string    `gorm:"type:uuid;index:idx_perm_tuple,priority:3" json:"resource_id"`
	Action       string     `gorm:"type:varchar(32);not null;index:idx_perm_tuple,priority:4" json:"action"`
	Disposition  string     `gorm:"type:varchar(8);not null" json:"disposition"`
	GrantedByID  *string    `gorm:"type:uuid;index" json:"granted_by_id"`
	GrantedAt    time.Time  `json:"granted_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Reason       string     `gorm:"type:text" json:"reason"`
	IsActive     bool       `gorm:"default:true;index" json:"is_active"`
}
