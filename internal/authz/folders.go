package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/models"
)

// FolderResolver resolves the folder that owns a resource. An empty folder id
// with a nil error means the resource has no owning folder; folder-scoped
// rules then simply do not apply.
type FolderResolver interface {
	OwningFolder(ctx context.Context, resource ResourceType, resourceID string) (string, error)
}

type storeFolderResolver struct {
	db *gorm.DB
}

// NewFolderResolver builds the database-backed FolderResolver used in
// production. Folders own themselves; file requests point at their folder;
// media files reach the folder through their file request.
func NewFolderResolver(db *gorm.DB) (FolderResolver, error) {
	if db == nil {
		return nil, errors.New("authz: folder resolver: db is required")
	}
	return &storeFolderResolver{db: db}, nil
}

func (r *storeFolderResolver) OwningFolder(ctx context.Context, resource ResourceType, resourceID string) (string, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return "", nil
	}

	switch resource {
	case ResourceFolder:
		return resourceID, nil

	case ResourceFileRequest:
		var request models.FileRequest
		err := r.db.WithContext(ctx).
			Select("id", "folder_id").
			First(&request, "id = ?", resourceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("authz: load file request: %w", err)
		}
		return request.FolderID, nil

	case ResourceMediaFile:
		var file models.MediaFile
		err := r.db.WithContext(ctx).
			Select("id", "file_request_id").
			First(&file, "id = ?", resourceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("authz: load media file: %w", err)
		}
		if file.FileRequestID == nil || *file.FileRequestID == "" {
			return "", nil
		}
		return r.OwningFolder(ctx, ResourceFileRequest, *file.FileRequestID)

	default:
		return "", nil
	}
}
