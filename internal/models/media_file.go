package models

// MediaFile is an uploaded asset. A file belongs to at most one file request;
// files detached from any request have no owning folder and are therefore
// outside the reach of folder-scoped delegation.
type MediaFile struct {
	BaseModel

	FileRequestID *string      `gorm:"type:uuid;index" json:"file_request_id"`
	FileRequest   *FileRequest `gorm:"foreignKey:FileRequestID" json:"file_request,omitempty"`
	FileName      string       `gorm:"not null" json:"file_name"`
	ContentType   string       `gorm:"type:varchar(128)" json:"content_type"`
	SizeBytes     int64        `json:"size_bytes"`
	UploadedByID  *string      `gorm:"type:uuid;index" json:"uploaded_by_id"`
}
