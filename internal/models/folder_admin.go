package models

import "time"

// FolderAdmin delegates folder-scoped administration to a user. The four
// capability flags toggle independently; none of them implies another.
// One active row per (folder, user).
type FolderAdmin struct {
	BaseModel

	FolderID          string     `gorm:"type:uuid;not null;uniqueIndex:idx_folder_admin,priority:1" json:"folder_id"`
	UserID            string     `gorm:"type:uuid;not null;uniqueIndex:idx_folder_admin,priority:2" json:"user_id"`
	CanGrantAccess    bool       `gorm:"default:false" json:"can_grant_access"`
	CanRevokeAccess   bool       `gorm:"default:false" json:"can_revoke_access"`
	CanManageRequests bool       `gorm:"default:false" json:"can_manage_requests"`
	CanDeleteFiles    bool       `gorm:"default:false" json:"can_delete_files"`
	AssignedByID      *string    `gorm:"type:uuid" json:"assigned_by_id"`
	AssignedAt        time.Time  `json:"assigned_at"`
	ExpiresAt         *time.Time `json:"expires_at"`
	IsActive          bool       `gorm:"default:true;index" json:"is_active"`
}
