package models

// Folder groups file requests and their uploaded media. It is the scoping
// unit for delegated administration.
type Folder struct {
	BaseModel

	Name        string  `gorm:"not null;index" json:"name"`
	Description string  `json:"description"`
	OwnerID     *string `gorm:"type:uuid;index" json:"owner_id"`
	IsArchived  bool    `gorm:"default:false" json:"is_archived"`
}
