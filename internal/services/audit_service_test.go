package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediadesk/mediadesk/internal/models"
)

func TestAuditServiceRecord(t *testing.T) {
	db := newServiceTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	actor := createTestUser(t, db, "actor")
	target := createTestUser(t, db, "target")
	ctx := context.Background()

	folderID := "folder-1"
	err = svc.Record(ctx, AuditEntry{
		ActionType:    "permission.grant",
		PerformedByID: &actor.ID,
		TargetUserID:  &target.ID,
		ResourceType:  "folder",
		ResourceID:    &folderID,
		Details:       map[string]any{"action": "view", "disposition": "allow"},
	})
	require.NoError(t, err)

	err = svc.Record(ctx, AuditEntry{ActionType: "   "})
	require.Error(t, err)

	var stored models.PermissionAuditLog
	require.NoError(t, db.First(&stored, "action_type = ?", "permission.grant").Error)
	require.Equal(t, actor.ID, *stored.PerformedByID)
	require.Equal(t, target.ID, *stored.TargetUserID)

	var details map[string]any
	require.NoError(t, json.Unmarshal(stored.Details, &details))
	require.Equal(t, "view", details["action"])
	require.Equal(t, "allow", details["disposition"])
}

func TestAuditServiceListFilters(t *testing.T) {
	db := newServiceTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	actor := createTestUser(t, db, "actor")
	first := createTestUser(t, db, "first")
	second := createTestUser(t, db, "second")
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, AuditEntry{
		ActionType:    "permission.grant",
		PerformedByID: &actor.ID,
		TargetUserID:  &first.ID,
		ResourceType:  "folder",
	}))
	require.NoError(t, svc.Record(ctx, AuditEntry{
		ActionType:    "permission.revoke",
		PerformedByID: &actor.ID,
		TargetUserID:  &first.ID,
		ResourceType:  "folder",
	}))
	require.NoError(t, svc.Record(ctx, AuditEntry{
		ActionType:    "role.assign",
		PerformedByID: &actor.ID,
		TargetUserID:  &second.ID,
		ResourceType:  "role",
	}))

	entries, total, err := svc.List(ctx, AuditListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, entries, 3)
	require.NotNil(t, entries[0].PerformedBy)
	require.Equal(t, actor.ID, entries[0].PerformedBy.ID)

	entries, total, err = svc.List(ctx, AuditListOptions{
		Filters: AuditFilters{ActionType: "role.assign"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, second.ID, *entries[0].TargetUserID)

	entries, total, err = svc.List(ctx, AuditListOptions{
		Filters: AuditFilters{TargetUserID: first.ID},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, entries, 2)

	future := time.Now().Add(time.Hour)
	_, total, err = svc.List(ctx, AuditListOptions{
		Filters: AuditFilters{Since: &future},
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
}

func TestAuditServiceListPagination(t *testing.T) {
	db := newServiceTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, AuditEntry{
			ActionType:   "permission.grant",
			ResourceType: "folder",
		}))
	}

	entries, total, err := svc.List(ctx, AuditListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, entries, 2)

	entries, _, err = svc.List(ctx, AuditListOptions{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	db := newServiceTestDB(t)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)

	old := models.PermissionAuditLog{
		ActionType:   "permission.grant",
		ResourceType: "folder",
	}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Model(&models.PermissionAuditLog{}).
		Where("id = ?", old.ID).
		Update("created_at", time.Now().AddDate(0, 0, -400)).Error)

	require.NoError(t, svc.Record(ctx, AuditEntry{
		ActionType:   "permission.revoke",
		ResourceType: "folder",
	}))

	removed, err := svc.CleanupOlderThan(ctx, 365)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining int64
	require.NoError(t, db.Model(&models.PermissionAuditLog{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}
