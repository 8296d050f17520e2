package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediadesk/mediadesk/internal/models"
)

func TestNotificationServiceCreateAndList(t *testing.T) {
	db := newServiceTestDB(t)
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "user-1")
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   user.ID,
		Type:     "access_request.approved",
		Title:    "Request approved",
		Message:  "Your access request was approved.",
		Metadata: map[string]any{"request_id": "req-1"},
	})
	require.NoError(t, err)
	require.False(t, created.IsRead)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(created.Metadata, &metadata))
	require.Equal(t, "req-1", metadata["request_id"])

	_, err = svc.Create(ctx, CreateNotificationInput{UserID: user.ID})
	require.Error(t, err)

	listed, err := svc.ListForUser(ctx, user.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Other users see nothing.
	other := createTestUser(t, db, "user-2")
	listed, err = svc.ListForUser(ctx, other.ID, 0, 0)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestNotificationServiceMarkRead(t *testing.T) {
	db := newServiceTestDB(t)
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "user-1")
	stranger := createTestUser(t, db, "user-2")
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateNotificationInput{
		UserID: user.ID,
		Type:   "access_request.created",
		Title:  "New request",
	})
	require.NoError(t, err)

	// Only the owner can mark a notification read.
	require.NoError(t, svc.MarkRead(ctx, stranger.ID, created.ID))
	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	require.False(t, stored.IsRead)

	require.NoError(t, svc.MarkRead(ctx, user.ID, created.ID))
	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	require.True(t, stored.IsRead)
	require.NotNil(t, stored.ReadAt)
}
