package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediadesk/mediadesk/internal/models"
)

func TestPermissionServiceGrantUpsert(t *testing.T) {
	db := newServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewPermissionService(db, audit, nil)
	require.NoError(t, err)

	actor := createTestUser(t, db, "actor")
	target := createTestUser(t, db, "target")
	createTestFolder(t, db, "folder-1")

	ctx := context.Background()
	folderID := "folder-1"

	first, err := svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "folder",
		Action:       "view",
		Disposition:  "allow",
		ResourceID:   &folderID,
	})
	require.NoError(t, err)
	require.True(t, first.IsActive)
	require.Equal(t, "allow", first.Disposition)

	// Granting the same tuple again refreshes the row instead of duplicating it.
	second, err := svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "folder",
		Action:       "view",
		Disposition:  "deny",
		ResourceID:   &folderID,
		Reason:       "revisited",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Permission{}).
		Where("user_id = ?", target.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)

	var stored models.Permission
	require.NoError(t, db.First(&stored, "id = ?", first.ID).Error)
	require.Equal(t, "deny", stored.Disposition)
	require.Equal(t, "revisited", stored.Reason)
	require.True(t, stored.IsActive)

	require.Contains(t, auditActionTypes(t, db), "permission.grant")
}

func TestPermissionServiceGrantValidation(t *testing.T) {
	db := newServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewPermissionService(db, audit, nil)
	require.NoError(t, err)

	actor := createTestUser(t, db, "actor")
	target := createTestUser(t, db, "target")
	ctx := context.Background()

	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "widget",
		Action:       "view",
		Disposition:  "allow",
	})
	require.Error(t, err)

	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "folder",
		Action:       "fly",
		Disposition:  "allow",
	})
	require.Error(t, err)

	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       "ghost",
		ResourceType: "folder",
		Action:       "view",
		Disposition:  "allow",
	})
	require.Error(t, err)

	past := time.Now().Add(-time.Hour).UTC()
	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "folder",
		Action:       "view",
		Disposition:  "allow",
		ExpiresAt:    &past,
	})
	require.Error(t, err)
}

func TestPermissionServiceRevoke(t *testing.T) {
	db := newServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewPermissionService(db, audit, nil)
	require.NoError(t, err)

	actor := createTestUser(t, db, "actor")
	target := createTestUser(t, db, "target")
	ctx := context.Background()

	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "media_file",
		Action:       "view",
		Disposition:  "allow",
	})
	require.NoError(t, err)

	found, err := svc.Revoke(ctx, actor.ID, RevokeInput{
		UserID:       target.ID,
		ResourceType: "media_file",
		Action:       "view",
	})
	require.NoError(t, err)
	require.True(t, found)

	var stored models.Permission
	require.NoError(t, db.First(&stored, "user_id = ?", target.ID).Error)
	require.False(t, stored.IsActive)

	// Row already inactive: revoke reports no match.
	found, err = svc.Revoke(ctx, actor.ID, RevokeInput{
		UserID:       target.ID,
		ResourceType: "media_file",
		Action:       "view",
	})
	require.NoError(t, err)
	require.False(t, found)

	require.Contains(t, auditActionTypes(t, db), "permission.revoke")
}

func TestPermissionServiceDeactivateExpired(t *testing.T) {
	db := newServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	base := time.Now().UTC()
	clock := base
	svc, err := NewPermissionService(db, audit, nil, WithPermissionClock(func() time.Time { return clock }))
	require.NoError(t, err)

	actor := createTestUser(t, db, "actor")
	target := createTestUser(t, db, "target")
	ctx := context.Background()

	soon := base.Add(time.Minute)
	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "folder",
		Action:       "view",
		Disposition:  "allow",
		ExpiresAt:    &soon,
	})
	require.NoError(t, err)
	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "folder",
		Action:       "edit",
		Disposition:  "allow",
	})
	require.NoError(t, err)

	// Nothing has expired yet.
	swept, err := svc.DeactivateExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, swept)

	clock = base.Add(2 * time.Minute)
	swept, err = svc.DeactivateExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	var active int64
	require.NoError(t, db.Model(&models.Permission{}).
		Where("user_id = ? AND is_active = ?", target.ID, true).
		Count(&active).Error)
	require.EqualValues(t, 1, active)
}

func TestPermissionServiceGetUserPermissions(t *testing.T) {
	db := newServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	ui, err := NewUIPermissionService(db, audit)
	require.NoError(t, err)
	svc, err := NewPermissionService(db, audit, ui)
	require.NoError(t, err)

	actor := createTestUser(t, db, "actor")
	target := createTestUser(t, db, "target")
	ctx := context.Background()

	_, err = svc.Grant(ctx, actor.ID, GrantInput{
		UserID:       target.ID,
		ResourceType: "folder",
		Action:       "view",
		Disposition:  "allow",
	})
	require.NoError(t, err)

	roleSvc, err := NewRoleService(db, audit)
	require.NoError(t, err)
	_, err = roleSvc.AssignRole(ctx, actor.ID, AssignRoleInput{
		UserID: target.ID,
		RoleID: "viewer",
	})
	require.NoError(t, err)

	snapshot, err := svc.GetUserPermissions(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, target.ID, snapshot.UserID)
	require.Len(t, snapshot.Permissions, 1)
	require.Len(t, snapshot.Roles, 1)
	require.NotNil(t, snapshot.Roles[0].Role)
	require.Equal(t, "Viewer", snapshot.Roles[0].Role.Name)
	require.NotEmpty(t, snapshot.UIPermissions)
	require.True(t, snapshot.UIPermissions[UIElementDashboard].Visible)
}
