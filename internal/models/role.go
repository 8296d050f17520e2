package models

type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `gorm:"default:false" json:"is_system"`

	DefaultPermissions []RoleDefaultPermission `gorm:"foreignKey:RoleID" json:"default_permissions,omitempty"`
}
