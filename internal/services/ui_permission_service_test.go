package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediadesk/mediadesk/internal/models"
)

func setupUIPermissionTest(t *testing.T) (*UIPermissionService, *RoleService, func(t *testing.T, id string) models.User) {
	t.Helper()

	db := newServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	ui, err := NewUIPermissionService(db, audit)
	require.NoError(t, err)

	roles, err := NewRoleService(db, audit)
	require.NoError(t, err)

	return ui, roles, func(t *testing.T, id string) models.User {
		return createTestUser(t, db, id)
	}
}

func TestUIPermissionsSuperAdminFullyVisible(t *testing.T) {
	ui, roles, newUser := setupUIPermissionTest(t)

	root := newUser(t, "root")
	ctx := context.Background()

	_, err := roles.AssignRole(ctx, "system", AssignRoleInput{UserID: root.ID, RoleID: "super-admin"})
	require.NoError(t, err)

	elements, err := ui.GetUIPermissions(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, elements, len(allUIElements()))
	for element, state := range elements {
		require.True(t, state.Visible, "element %s should be visible", element)
		require.True(t, state.Enabled, "element %s should be enabled", element)
	}
}

func TestUIPermissionsRoleDefaults(t *testing.T) {
	ui, roles, newUser := setupUIPermissionTest(t)

	buyer := newUser(t, "buyer-user")
	nobody := newUser(t, "nobody")
	ctx := context.Background()

	_, err := roles.AssignRole(ctx, "system", AssignRoleInput{UserID: buyer.ID, RoleID: "buyer"})
	require.NoError(t, err)

	elements, err := ui.GetUIPermissions(ctx, buyer.ID)
	require.NoError(t, err)
	require.True(t, elements[UIElementDashboard].Visible)
	require.True(t, elements[UIElementRequests].Visible)
	require.True(t, elements[UIElementCanvas].Visible)
	require.True(t, elements[UIElementAnalytics].Visible)
	require.False(t, elements[UIElementMediaLibrary].Visible)
	require.False(t, elements[UIElementAdminPanel].Visible)

	// No matching role: only the dashboard shows.
	elements, err = ui.GetUIPermissions(ctx, nobody.ID)
	require.NoError(t, err)
	require.True(t, elements[UIElementDashboard].Visible)
	require.False(t, elements[UIElementRequests].Visible)
	require.False(t, elements[UIElementMediaLibrary].Visible)
}

func TestUIPermissionsExplicitOverrideWins(t *testing.T) {
	ui, roles, newUser := setupUIPermissionTest(t)

	editor := newUser(t, "editor-user")
	ctx := context.Background()

	_, err := roles.AssignRole(ctx, "system", AssignRoleInput{UserID: editor.ID, RoleID: "editor"})
	require.NoError(t, err)

	// Hide an element the role would show, and surface one it would not.
	_, err = ui.SetUIPermission(ctx, "system", SetUIPermissionInput{
		UserID:    editor.ID,
		UIElement: UIElementMediaLibrary,
		IsVisible: false,
		IsEnabled: false,
	})
	require.NoError(t, err)
	_, err = ui.SetUIPermission(ctx, "system", SetUIPermissionInput{
		UserID:      editor.ID,
		UIElement:   UIElementAnalytics,
		IsVisible:   true,
		IsEnabled:   true,
		CustomLabel: "Reports",
	})
	require.NoError(t, err)

	elements, err := ui.GetUIPermissions(ctx, editor.ID)
	require.NoError(t, err)
	require.False(t, elements[UIElementMediaLibrary].Visible)
	require.True(t, elements[UIElementAnalytics].Visible)
	require.Equal(t, "Reports", elements[UIElementAnalytics].CustomLabel)
	// Untouched role defaults stay intact.
	require.True(t, elements[UIElementRequests].Visible)

	// Removing the override restores the role default.
	found, err := ui.RemoveUIPermission(ctx, "system", editor.ID, UIElementMediaLibrary)
	require.NoError(t, err)
	require.True(t, found)

	elements, err = ui.GetUIPermissions(ctx, editor.ID)
	require.NoError(t, err)
	require.True(t, elements[UIElementMediaLibrary].Visible)
}

func TestUIPermissionsSetUpsert(t *testing.T) {
	ui, _, newUser := setupUIPermissionTest(t)

	user := newUser(t, "user-a")
	ctx := context.Background()

	first, err := ui.SetUIPermission(ctx, "system", SetUIPermissionInput{
		UserID:    user.ID,
		UIElement: UIElementCanvas,
		IsVisible: true,
		IsEnabled: true,
	})
	require.NoError(t, err)

	second, err := ui.SetUIPermission(ctx, "system", SetUIPermissionInput{
		UserID:    user.ID,
		UIElement: UIElementCanvas,
		IsVisible: true,
		IsEnabled: false,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	elements, err := ui.GetUIPermissions(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, elements[UIElementCanvas].Visible)
	require.False(t, elements[UIElementCanvas].Enabled)
}
