package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/database/testutil"
	"github.com/mediadesk/mediadesk/internal/models"
)

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithCatalog())
}

func createTestUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()

	user := models.User{
		BaseModel:    models.BaseModel{ID: id},
		Username:     id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestFolder(t *testing.T, db *gorm.DB, id string) models.Folder {
	t.Helper()

	folder := models.Folder{
		BaseModel: models.BaseModel{ID: id},
		Name:      id,
	}
	require.NoError(t, db.Create(&folder).Error)
	return folder
}

func createTestFileRequest(t *testing.T, db *gorm.DB, id, folderID string) models.FileRequest {
	t.Helper()

	request := models.FileRequest{
		BaseModel: models.BaseModel{ID: id},
		FolderID:  folderID,
		Title:     id,
	}
	require.NoError(t, db.Create(&request).Error)
	return request
}

func futureTime(d time.Duration) *time.Time {
	ts := time.Now().Add(d).UTC().Truncate(time.Second)
	return &ts
}

func auditActionTypes(t *testing.T, db *gorm.DB) []string {
	t.Helper()

	var types []string
	require.NoError(t, db.Model(&models.PermissionAuditLog{}).
		Order("created_at ASC").
		Pluck("action_type", &types).Error)
	return types
}
