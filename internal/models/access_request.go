package models

import "time"

// Access request lifecycle states. A request leaves pending exactly once and
// never transitions again.
const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusDenied    = "denied"
	RequestStatusCancelled = "cancelled"
)

// AccessRequest is a pending ask for an explicit permission grant, reviewed
// by the watchers of the target resource.
type AccessRequest struct {
	BaseModel

	RequesterID         string     `gorm:"type:uuid;not null;index" json:"requester_id"`
	ResourceType        string     `gorm:"type:varchar(32);not null;index" json:"resource_type"`
	ResourceID          string     `gorm:"type:uuid;not null;index" json:"resource_id"`
	RequestedPermission string     `gorm:"type:varchar(32);not null" json:"requested_permission"`
	Reason              string     `gorm:"type:text" json:"reason"`
	Status              string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ReviewedByID        *string    `gorm:"type:uuid" json:"reviewed_by_id"`
	ReviewedAt          *time.Time `json:"reviewed_at"`
	ReviewNotes         string     `gorm:"type:text" json:"review_notes"`
	PermissionGranted   bool       `gorm:"default:false" json:"permission_granted"`
	GrantedPermissionID *string    `gorm:"type:uuid" json:"granted_permission_id"`
	ExpiresAt           *time.Time `json:"expires_at"`
}
