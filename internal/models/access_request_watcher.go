package models

// AccessRequestWatcher registers a reviewer for access requests targeting a
// resource. Watchers without approve rights still receive notifications.
type AccessRequestWatcher struct {
	BaseModel

	ResourceType    string  `gorm:"type:varchar(32);not null;uniqueIndex:idx_watcher,priority:1" json:"resource_type"`
	ResourceID      string  `gorm:"type:uuid;not null;uniqueIndex:idx_watcher,priority:2" json:"resource_id"`
	UserID          string  `gorm:"type:uuid;not null;uniqueIndex:idx_watcher,priority:3" json:"user_id"`
	CanApprove      bool    `gorm:"default:false" json:"can_approve"`
	NotifyOnRequest bool    `gorm:"default:true" json:"notify_on_request"`
	AddedByID       *string `gorm:"type:uuid" json:"added_by_id"`
}
