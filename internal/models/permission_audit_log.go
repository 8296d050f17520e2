package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PermissionAuditLog is the append-only record of authorization mutations.
// Rows are never updated or deleted outside of retention cleanup.
type PermissionAuditLog struct {
	ID            string         `gorm:"primaryKey;type:uuid" json:"id"`
	ActionType    string         `gorm:"type:varchar(64);not null;index" json:"action_type"`
	PerformedByID *string        `gorm:"type:uuid;index" json:"performed_by_id"`
	PerformedBy   *User          `gorm:"foreignKey:PerformedByID" json:"performed_by,omitempty"`
	TargetUserID  *string        `gorm:"type:uuid;index" json:"target_user_id"`
	ResourceType  string         `gorm:"type:varchar(32);index" json:"resource_type"`
	ResourceID    *string        `gorm:"type:uuid" json:"resource_id"`
	Details       datatypes.JSON `json:"details"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}

func (l *PermissionAuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
