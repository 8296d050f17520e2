package models

// FileRequest is a brief inside a folder asking collaborators to upload media.
type FileRequest struct {
	BaseModel

	FolderID    string  `gorm:"type:uuid;not null;index" json:"folder_id"`
	Folder      *Folder `gorm:"foreignKey:FolderID" json:"folder,omitempty"`
	Title       string  `gorm:"not null" json:"title"`
	Description string  `json:"description"`
	CreatedByID *string `gorm:"type:uuid;index" json:"created_by_id"`
	Status      string  `gorm:"type:varchar(32);default:'open';index" json:"status"`
}
