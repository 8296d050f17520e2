package models

// RoleDefaultPermission is one row of the static table defining what a role
// allows by default. Seeded from the built-in catalog at startup.
type RoleDefaultPermission struct {
	BaseModel

	RoleID       string `gorm:"type:uuid;not null;uniqueIndex:idx_role_default,priority:1" json:"role_id"`
	ResourceType string `gorm:"type:varchar(32);not null;uniqueIndex:idx_role_default,priority:2" json:"resource_type"`
	Action       string `gorm:"type:varchar(32);not null;uniqueIndex:idx_role_default,priority:3" json:"action"`
	Disposition  string `gorm:"type:varchar(8);not null" json:"disposition"`
}
