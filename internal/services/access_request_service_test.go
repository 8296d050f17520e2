package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/internal/models"
)

func setupAccessRequestTest(t *testing.T) (*gorm.DB, *AccessRequestService, *PermissionService) {
	t.Helper()

	db := newServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	notifications, err := NewNotificationService(db)
	require.NoError(t, err)

	permissions, err := NewPermissionService(db, audit, nil)
	require.NoError(t, err)

	svc, err := NewAccessRequestService(db, permissions, notifications, audit)
	require.NoError(t, err)

	return db, svc, permissions
}

func addApprover(t *testing.T, db *gorm.DB, svc *AccessRequestService, resourceType, resourceID, userID string) {
	t.Helper()

	_, err := svc.AddWatcher(context.Background(), "system", AddWatcherInput{
		ResourceType:    resourceType,
		ResourceID:      resourceID,
		UserID:          userID,
		CanApprove:      true,
		NotifyOnRequest: true,
	})
	require.NoError(t, err)
}

func TestAccessRequestCreateAndDuplicate(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	request, err := svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "view",
		Reason:       "need the brief",
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)

	// Same tuple while pending is rejected.
	_, err = svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "view",
	})
	require.ErrorIs(t, err, ErrDuplicateRequest)

	// A different action is a different request.
	_, err = svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "edit",
	})
	require.NoError(t, err)

	// Once cancelled the tuple opens up again.
	_, err = svc.Cancel(ctx, request.ID, requester.ID)
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "view",
	})
	require.NoError(t, err)
}

func TestAccessRequestPendingUniqueIndex(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	_, err := svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "view",
	})
	require.NoError(t, err)

	// A concurrent insert that slipped past the pending count is rejected by
	// the database itself, and the violation maps to the duplicate sentinel.
	racer := models.AccessRequest{
		RequesterID:         requester.ID,
		ResourceType:        "folder",
		ResourceID:          "folder-1",
		RequestedPermission: "view",
		Status:              models.RequestStatusPending,
	}
	err = db.Create(&racer).Error
	require.Error(t, err)
	require.True(t, isUniqueConstraintError(err))

	// The index only covers pending rows; settled requests do not collide.
	settled := models.AccessRequest{
		RequesterID:         requester.ID,
		ResourceType:        "folder",
		ResourceID:          "folder-1",
		RequestedPermission: "view",
		Status:              models.RequestStatusDenied,
	}
	require.NoError(t, db.Create(&settled).Error)
}

func TestAccessRequestApprove(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	reviewer := createTestUser(t, db, "reviewer")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	expiry := futureTime(24 * time.Hour)
	request, err := svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "edit",
		ExpiresAt:    expiry,
	})
	require.NoError(t, err)

	addApprover(t, db, svc, "folder", "folder-1", reviewer.ID)

	approved, err := svc.Approve(ctx, request.ID, reviewer.ID, "looks fine")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, approved.Status)
	require.True(t, approved.PermissionGranted)
	require.NotNil(t, approved.GrantedPermissionID)
	require.Equal(t, reviewer.ID, *approved.ReviewedByID)
	require.Equal(t, "looks fine", approved.ReviewNotes)

	// The granted permission carries the request's resource, action and expiry.
	var permission models.Permission
	require.NoError(t, db.First(&permission, "id = ?", *approved.GrantedPermissionID).Error)
	require.Equal(t, requester.ID, permission.UserID)
	require.Equal(t, "folder", permission.ResourceType)
	require.Equal(t, "edit", permission.Action)
	require.Equal(t, "allow", permission.Disposition)
	require.NotNil(t, permission.ExpiresAt)

	// The resolver now allows the requested action.
	folders, err := authz.NewFolderResolver(db)
	require.NoError(t, err)
	resolver, err := authz.NewResolver(db, folders)
	require.NoError(t, err)
	folderID := "folder-1"
	require.True(t, resolver.Check(ctx, requester.ID, authz.ResourceFolder, authz.ActionEdit, &folderID))

	// Terminal states reject further review.
	_, err = svc.Approve(ctx, request.ID, reviewer.ID, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
	_, err = svc.Deny(ctx, request.ID, reviewer.ID, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestAccessRequestApproveAuthorization(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	stranger := createTestUser(t, db, "stranger")
	observer := createTestUser(t, db, "observer")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	request, err := svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "view",
	})
	require.NoError(t, err)

	// Not a watcher at all.
	_, err = svc.Approve(ctx, request.ID, stranger.ID, "")
	require.ErrorIs(t, err, ErrNotAuthorizedReviewer)

	// A watcher without approve rights observes but cannot review.
	_, err = svc.AddWatcher(ctx, "system", AddWatcherInput{
		ResourceType:    "folder",
		ResourceID:      "folder-1",
		UserID:          observer.ID,
		CanApprove:      false,
		NotifyOnRequest: true,
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, request.ID, observer.ID, "")
	require.ErrorIs(t, err, ErrNotAuthorizedReviewer)
	_, err = svc.Deny(ctx, request.ID, observer.ID, "")
	require.ErrorIs(t, err, ErrNotAuthorizedReviewer)

	_, err = svc.Approve(ctx, "no-such-request", observer.ID, "")
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestAccessRequestDeny(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	reviewer := createTestUser(t, db, "reviewer")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	request, err := svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "delete",
	})
	require.NoError(t, err)

	addApprover(t, db, svc, "folder", "folder-1", reviewer.ID)

	denied, err := svc.Deny(ctx, request.ID, reviewer.ID, "not yet")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusDenied, denied.Status)
	require.False(t, denied.PermissionGranted)
	require.Nil(t, denied.GrantedPermissionID)

	// Denial writes nothing to the permission store.
	var count int64
	require.NoError(t, db.Model(&models.Permission{}).
		Where("user_id = ?", requester.ID).
		Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestAccessRequestCancelRules(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	reviewer := createTestUser(t, db, "reviewer")
	other := createTestUser(t, db, "other")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	request, err := svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "view",
	})
	require.NoError(t, err)

	// Only the requester may cancel.
	_, err = svc.Cancel(ctx, request.ID, other.ID)
	require.ErrorIs(t, err, ErrNotCancellable)

	cancelled, err := svc.Cancel(ctx, request.ID, requester.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusCancelled, cancelled.Status)

	// Cancelled is terminal.
	_, err = svc.Cancel(ctx, request.ID, requester.ID)
	require.ErrorIs(t, err, ErrNotCancellable)

	addApprover(t, db, svc, "folder", "folder-1", reviewer.ID)
	_, err = svc.Approve(ctx, request.ID, reviewer.ID, "")
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestAccessRequestWatcherNotifications(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	watcherA := createTestUser(t, db, "watcher-a")
	watcherB := createTestUser(t, db, "watcher-b")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	addApprover(t, db, svc, "folder", "folder-1", watcherA.ID)
	_, err := svc.AddWatcher(ctx, "system", AddWatcherInput{
		ResourceType:    "folder",
		ResourceID:      "folder-1",
		UserID:          watcherB.ID,
		NotifyOnRequest: false,
	})
	require.NoError(t, err)

	_, err = svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID:  requester.ID,
		ResourceType: "folder",
		ResourceID:   "folder-1",
		Action:       "view",
	})
	require.NoError(t, err)

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, watcherA.ID, notifications[0].UserID)
	require.Equal(t, "access_request.created", notifications[0].Type)
}

func TestAccessRequestWatcherRoster(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	watcher := createTestUser(t, db, "watcher")
	createTestFolder(t, db, "folder-1")
	ctx := context.Background()

	first, err := svc.AddWatcher(ctx, "system", AddWatcherInput{
		ResourceType: "folder",
		ResourceID:   "folder-1",
		UserID:       watcher.ID,
		CanApprove:   false,
	})
	require.NoError(t, err)

	// Re-adding updates the flags on the existing row.
	second, err := svc.AddWatcher(ctx, "system", AddWatcherInput{
		ResourceType: "folder",
		ResourceID:   "folder-1",
		UserID:       watcher.ID,
		CanApprove:   true,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.CanApprove)

	watchers, err := svc.GetWatchers(ctx, "folder", "folder-1")
	require.NoError(t, err)
	require.Len(t, watchers, 1)

	found, err := svc.RemoveWatcher(ctx, "system", "folder", "folder-1", watcher.ID)
	require.NoError(t, err)
	require.True(t, found)

	watchers, err = svc.GetWatchers(ctx, "folder", "folder-1")
	require.NoError(t, err)
	require.Empty(t, watchers)
}

func TestAccessRequestList(t *testing.T) {
	db, svc, _ := setupAccessRequestTest(t)

	requester := createTestUser(t, db, "requester")
	otherUser := createTestUser(t, db, "other")
	createTestFolder(t, db, "folder-1")
	createTestFolder(t, db, "folder-2")
	ctx := context.Background()

	_, err := svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID: requester.ID, ResourceType: "folder", ResourceID: "folder-1", Action: "view",
	})
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID: requester.ID, ResourceType: "folder", ResourceID: "folder-2", Action: "view",
	})
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, CreateRequestInput{
		RequesterID: otherUser.ID, ResourceType: "folder", ResourceID: "folder-1", Action: "edit",
	})
	require.NoError(t, err)

	all, total, err := svc.ListRequests(ctx, RequestListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, all, 3)

	mine, total, err := svc.ListRequests(ctx, RequestListOptions{
		Filters: RequestFilters{RequesterID: requester.ID},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, mine, 2)

	pending, _, err := svc.ListRequests(ctx, RequestListOptions{
		Filters: RequestFilters{Status: models.RequestStatusPending, ResourceID: "folder-1"},
	})
	require.NoError(t, err)
	require.Len(t, pending, 2)
}
