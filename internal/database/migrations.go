package database

import (
	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.FileRequest{},
		&models.MediaFile{},
		&models.Role{},
		&models.RoleDefaultPermission{},
		&models.UserRole{},
		&models.Permission{},
		&models.FolderAdmin{},
		&models.AccessRequest{},
		&models.AccessRequestWatcher{},
		&models.PermissionAuditLog{},
		&models.UIPermission{},
		&models.Notification{},
	); err != nil {
		return err
	}

	return createPartialIndexes(db)
}

// createPartialIndexes adds constraints GORM's tag syntax cannot express. The
// pending-request index makes the one-pending-request rule hold under
// concurrent inserts; MySQL lacks partial indexes, so there the application
// level guard remains the only enforcement.
func createPartialIndexes(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_access_requests_pending
			ON access_requests (requester_id, resource_type, resource_id, requested_permission)
			WHERE status = 'pending'`).Error
	}
	return nil
}
