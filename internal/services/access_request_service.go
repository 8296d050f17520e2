package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/internal/models"
	"github.com/mediadesk/mediadesk/pkg/logger"
	"github.com/mediadesk/mediadesk/pkg/metrics"
)

// CreateRequestInput defines a new access request.
type CreateRequestInput struct {
	RequesterID  string
	ResourceType string
	ResourceID   string
	Action       string
	Reason       string
	ExpiresAt    *time.Time
}

// AddWatcherInput registers a reviewer for a resource's access requests.
type AddWatcherInput struct {
	ResourceType    string
	ResourceID      string
	UserID          string
	CanApprove      bool
	NotifyOnRequest bool
}

// RequestFilters narrows access request listings.
type RequestFilters struct {
	RequesterID  string
	ResourceType string
	ResourceID   string
	Status       string
}

// RequestListOptions controls pagination and filtering for request listings.
type RequestListOptions struct {
	Page     int
	PageSize int
	Filters  RequestFilters
}

// AccessRequestService drives the request/approve workflow. Approval writes
// the granted permission and the status flip in one transaction.
type AccessRequestService struct {
	db            *gorm.DB
	permissions   *PermissionService
	notifications *NotificationService
	audit         *AuditService
	now           func() time.Time
}

// AccessRequestServiceOption customises AccessRequestService behaviour.
type AccessRequestServiceOption func(*AccessRequestService)

// WithAccessRequestClock injects a custom clock primarily for testing.
func WithAccessRequestClock(clock func() time.Time) AccessRequestServiceOption {
	return func(s *AccessRequestService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewAccessRequestService constructs an AccessRequestService. The
// notification service is optional; without it watcher notifications are
// skipped.
func NewAccessRequestService(db *gorm.DB, permissions *PermissionService, notifications *NotificationService, audit *AuditService, opts ...AccessRequestServiceOption) (*AccessRequestService, error) {
	if db == nil {
		return nil, errors.New("access request service: db is required")
	}
	if permissions == nil {
		return nil, errors.New("access request service: permission service is required")
	}

	service := &AccessRequestService{
		db:            db,
		permissions:   permissions,
		notifications: notifications,
		audit:         audit,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateRequest opens a pending access request. At most one pending request
// may exist per (requester, resource, action) tuple.
func (s *AccessRequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	requesterID := strings.TrimSpace(input.RequesterID)
	if requesterID == "" {
		return nil, newValidationError("requester id is required")
	}
	resourceType, err := authz.ParseResourceType(input.ResourceType)
	if err != nil {
		return nil, newValidationError(err.Error())
	}
	resourceID := strings.TrimSpace(input.ResourceID)
	if resourceID == "" {
		return nil, newValidationError("resource id is required")
	}
	action, err := authz.ParseAction(input.Action)
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	var expiresAt *time.Time
	if input.ExpiresAt != nil {
		exp := input.ExpiresAt.UTC().Truncate(time.Second)
		if exp.Before(s.now().UTC()) {
			return nil, newValidationError("expiration must be in the future")
		}
		expiresAt = &exp
	}

	var request *models.AccessRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if txErr := tx.Model(&models.AccessRequest{}).
			Where("requester_id = ? AND resource_type = ? AND resource_id = ? AND requested_permission = ? AND status = ?",
				requesterID, string(resourceType), resourceID, string(action), models.RequestStatusPending).
			Count(&count).Error; txErr != nil {
			return storeError("access request service: check pending", txErr)
		}
		if count > 0 {
			return ErrDuplicateRequest
		}

		record := models.AccessRequest{
			RequesterID:         requesterID,
			ResourceType:        string(resourceType),
			ResourceID:          resourceID,
			RequestedPermission: string(action),
			Reason:              strings.TrimSpace(input.Reason),
			Status:              models.RequestStatusPending,
			ExpiresAt:           expiresAt,
		}
		if txErr := tx.Create(&record).Error; txErr != nil {
			// A concurrent request can slip past the count under read
			// committed isolation; the partial unique index catches it.
			if isUniqueConstraintError(txErr) {
				return ErrDuplicateRequest
			}
			return storeError("access request service: create request", txErr)
		}
		request = &record
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AccessRequests.WithLabelValues("created").Inc()

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "access_request.create",
		PerformedByID: strPtr(requesterID),
		TargetUserID:  strPtr(requesterID),
		ResourceType:  string(resourceType),
		ResourceID:    strPtr(resourceID),
		Details: map[string]any{
			"request_id": request.ID,
			"action":     string(action),
		},
	})

	s.notifyWatchers(ctx, request)

	return request, nil
}

// Approve grants the requested permission and marks the request approved in
// one transaction. Only a watcher with approve rights for the exact resource
// may call it; a second reviewer racing on the same request loses with
// ErrAlreadyReviewed.
func (s *AccessRequestService) Approve(ctx context.Context, requestID, reviewerID, notes string) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, ErrAlreadyReviewed
	}
	if err := s.ensureReviewer(ctx, request, reviewerID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permission, txErr := s.permissions.applyGrant(tx, reviewerID, GrantInput{
			UserID:       request.RequesterID,
			ResourceType: request.ResourceType,
			Action:       request.RequestedPermission,
			Disposition:  string(authz.DispositionAllow),
			ResourceID:   strPtr(request.ResourceID),
			ExpiresAt:    request.ExpiresAt,
			Reason:       fmt.Sprintf("approved access request %s", request.ID),
		})
		if txErr != nil {
			return txErr
		}

		result := tx.Model(&models.AccessRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
			Updates(map[string]any{
				"status":                models.RequestStatusApproved,
				"reviewed_by_id":        strPtr(reviewerID),
				"reviewed_at":           now,
				"review_notes":          strings.TrimSpace(notes),
				"permission_granted":    true,
				"granted_permission_id": permission.ID,
			})
		if result.Error != nil {
			return storeError("access request service: approve", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyReviewed
		}

		request.Status = models.RequestStatusApproved
		request.ReviewedByID = strPtr(reviewerID)
		request.ReviewedAt = &now
		request.ReviewNotes = strings.TrimSpace(notes)
		request.PermissionGranted = true
		request.GrantedPermissionID = strPtr(permission.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AccessRequests.WithLabelValues("approved").Inc()

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "access_request.approve",
		PerformedByID: strPtr(reviewerID),
		TargetUserID:  strPtr(request.RequesterID),
		ResourceType:  request.ResourceType,
		ResourceID:    strPtr(request.ResourceID),
		Details: map[string]any{
			"request_id": request.ID,
			"action":     request.RequestedPermission,
		},
	})

	s.notifyRequester(ctx, request, "access_request.approved", "Access request approved")

	return request, nil
}

// Deny rejects the request without touching the permission store.
func (s *AccessRequestService) Deny(ctx context.Context, requestID, reviewerID, notes string) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, ErrAlreadyReviewed
	}
	if err := s.ensureReviewer(ctx, request, reviewerID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&models.AccessRequest{}).
		Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
		Updates(map[string]any{
			"status":         models.RequestStatusDenied,
			"reviewed_by_id": strPtr(reviewerID),
			"reviewed_at":    now,
			"review_notes":   strings.TrimSpace(notes),
		})
	if result.Error != nil {
		return nil, storeError("access request service: deny", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyReviewed
	}

	request.Status = models.RequestStatusDenied
	request.ReviewedByID = strPtr(reviewerID)
	request.ReviewedAt = &now
	request.ReviewNotes = strings.TrimSpace(notes)

	metrics.AccessRequests.WithLabelValues("denied").Inc()

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "access_request.deny",
		PerformedByID: strPtr(reviewerID),
		TargetUserID:  strPtr(request.RequesterID),
		ResourceType:  request.ResourceType,
		ResourceID:    strPtr(request.ResourceID),
		Details: map[string]any{
			"request_id": request.ID,
			"action":     request.RequestedPermission,
		},
	})

	s.notifyRequester(ctx, request, "access_request.denied", "Access request denied")

	return request, nil
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (s *AccessRequestService) Cancel(ctx context.Context, requestID, requesterID string) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != strings.TrimSpace(requesterID) {
		return nil, ErrNotCancellable
	}
	if request.Status != models.RequestStatusPending {
		return nil, ErrNotCancellable
	}

	now := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&models.AccessRequest{}).
		Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
		Updates(map[string]any{
			"status":      models.RequestStatusCancelled,
			"reviewed_at": now,
		})
	if result.Error != nil {
		return nil, storeError("access request service: cancel", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotCancellable
	}

	request.Status = models.RequestStatusCancelled
	request.ReviewedAt = &now

	metrics.AccessRequests.WithLabelValues("cancelled").Inc()

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "access_request.cancel",
		PerformedByID: strPtr(requesterID),
		TargetUserID:  strPtr(request.RequesterID),
		ResourceType:  request.ResourceType,
		ResourceID:    strPtr(request.ResourceID),
		Details: map[string]any{
			"request_id": request.ID,
		},
	})

	return request, nil
}

// GetRequest fetches one request by id.
func (s *AccessRequestService) GetRequest(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)
	return s.loadRequest(ctx, requestID)
}

// ListRequests returns paginated requests newest first.
func (s *AccessRequestService) ListRequests(ctx context.Context, opts RequestListOptions) ([]models.AccessRequest, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.AccessRequest{})
	if opts.Filters.RequesterID != "" {
		query = query.Where("requester_id = ?", opts.Filters.RequesterID)
	}
	if opts.Filters.ResourceType != "" {
		query = query.Where("resource_type = ?", opts.Filters.ResourceType)
	}
	if opts.Filters.ResourceID != "" {
		query = query.Where("resource_id = ?", opts.Filters.ResourceID)
	}
	if opts.Filters.Status != "" {
		query = query.Where("status = ?", opts.Filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeError("access request service: count requests", err)
	}

	var rows []models.AccessRequest
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error; err != nil {
		return nil, 0, storeError("access request service: list requests", err)
	}

	return rows, total, nil
}

// AddWatcher registers a reviewer for a resource. Re-adding updates the
// existing row's flags.
func (s *AccessRequestService) AddWatcher(ctx context.Context, actorID string, input AddWatcherInput) (*models.AccessRequestWatcher, error) {
	ctx = ensureContext(ctx)

	resourceType, err := authz.ParseResourceType(input.ResourceType)
	if err != nil {
		return nil, newValidationError(err.Error())
	}
	resourceID := strings.TrimSpace(input.ResourceID)
	if resourceID == "" {
		return nil, newValidationError("resource id is required")
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, newValidationError("user id is required")
	}

	var watcher *models.AccessRequestWatcher
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AccessRequestWatcher
		txErr := tx.Where("resource_type = ? AND resource_id = ? AND user_id = ?",
			string(resourceType), resourceID, userID).First(&existing).Error

		if txErr == nil {
			updates := map[string]any{
				"can_approve":       input.CanApprove,
				"notify_on_request": input.NotifyOnRequest,
				"added_by_id":       strPtr(actorID),
			}
			if txErr := tx.Model(&existing).Updates(updates).Error; txErr != nil {
				return storeError("access request service: update watcher", txErr)
			}
			watcher = &existing
			return nil
		}
		if !errors.Is(txErr, gorm.ErrRecordNotFound) {
			return storeError("access request service: load watcher", txErr)
		}

		record := models.AccessRequestWatcher{
			ResourceType:    string(resourceType),
			ResourceID:      resourceID,
			UserID:          userID,
			CanApprove:      input.CanApprove,
			NotifyOnRequest: input.NotifyOnRequest,
			AddedByID:       strPtr(actorID),
		}
		if txErr := tx.Create(&record).Error; txErr != nil {
			return storeError("access request service: create watcher", txErr)
		}
		watcher = &record
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "access_request.watcher.add",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  string(resourceType),
		ResourceID:    strPtr(resourceID),
		Details: map[string]any{
			"can_approve": input.CanApprove,
		},
	})

	return watcher, nil
}

// RemoveWatcher drops a reviewer from the resource's roster.
func (s *AccessRequestService) RemoveWatcher(ctx context.Context, actorID, resourceType, resourceID, userID string) (bool, error) {
	ctx = ensureContext(ctx)

	parsed, err := authz.ParseResourceType(resourceType)
	if err != nil {
		return false, newValidationError(err.Error())
	}
	resourceID = strings.TrimSpace(resourceID)
	userID = strings.TrimSpace(userID)
	if resourceID == "" || userID == "" {
		return false, newValidationError("resource id and user id are required")
	}

	result := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND user_id = ?", string(parsed), resourceID, userID).
		Delete(&models.AccessRequestWatcher{})
	if result.Error != nil {
		return false, storeError("access request service: remove watcher", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActionType:    "access_request.watcher.remove",
		PerformedByID: strPtr(actorID),
		TargetUserID:  strPtr(userID),
		ResourceType:  string(parsed),
		ResourceID:    strPtr(resourceID),
	})

	return true, nil
}

// GetWatchers returns the reviewer roster for a resource.
func (s *AccessRequestService) GetWatchers(ctx context.Context, resourceType, resourceID string) ([]models.AccessRequestWatcher, error) {
	ctx = ensureContext(ctx)

	parsed, err := authz.ParseResourceType(resourceType)
	if err != nil {
		return nil, newValidationError(err.Error())
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil, newValidationError("resource id is required")
	}

	var rows []models.AccessRequestWatcher
	if err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", string(parsed), resourceID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("access request service: list watchers", err)
	}

	return rows, nil
}

func (s *AccessRequestService) loadRequest(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, newValidationError("request id is required")
	}

	var request models.AccessRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, storeError("access request service: load request", err)
	}
	return &request, nil
}

// ensureReviewer verifies the reviewer is a watcher with approve rights for
// the request's exact resource.
func (s *AccessRequestService) ensureReviewer(ctx context.Context, request *models.AccessRequest, reviewerID string) error {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return newValidationError("reviewer id is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.AccessRequestWatcher{}).
		Where("resource_type = ? AND resource_id = ? AND user_id = ? AND can_approve = ?",
			request.ResourceType, request.ResourceID, reviewerID, true).
		Count(&count).Error; err != nil {
		return storeError("access request service: load reviewer", err)
	}
	if count == 0 {
		return ErrNotAuthorizedReviewer
	}
	return nil
}

// notifyWatchers fans out a notification to every watcher subscribed to the
// request's resource. Delivery is best effort.
func (s *AccessRequestService) notifyWatchers(ctx context.Context, request *models.AccessRequest) {
	if s.notifications == nil {
		return
	}

	var watchers []models.AccessRequestWatcher
	if err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND notify_on_request = ?",
			request.ResourceType, request.ResourceID, true).
		Find(&watchers).Error; err != nil {
		logger.WithModule("access_requests").Warn("failed to load watchers for notification",
			zap.String("request_id", request.ID),
			zap.Error(err),
		)
		return
	}

	for _, watcher := range watchers {
		_, err := s.notifications.Create(ctx, CreateNotificationInput{
			UserID:  watcher.UserID,
			Type:    "access_request.created",
			Title:   "New access request",
			Message: fmt.Sprintf("A request for %s access on %s is awaiting review", request.RequestedPermission, request.ResourceType),
			Metadata: map[string]any{
				"request_id":    request.ID,
				"resource_type": request.ResourceType,
				"resource_id":   request.ResourceID,
				"action":        request.RequestedPermission,
			},
		})
		if err != nil {
			logger.WithModule("access_requests").Warn("failed to notify watcher",
				zap.String("request_id", request.ID),
				zap.String("watcher_id", watcher.UserID),
				zap.Error(err),
			)
		}
	}
}

func (s *AccessRequestService) notifyRequester(ctx context.Context, request *models.AccessRequest, notificationType, title string) {
	if s.notifications == nil {
		return
	}

	_, err := s.notifications.Create(ctx, CreateNotificationInput{
		UserID:  request.RequesterID,
		Type:    notificationType,
		Title:   title,
		Message: fmt.Sprintf("Your request for %s access on %s was reviewed", request.RequestedPermission, request.ResourceType),
		Metadata: map[string]any{
			"request_id": request.ID,
			"status":     request.Status,
		},
	})
	if err != nil {
		logger.WithModule("access_requests").Warn("failed to notify requester",
			zap.String("request_id", request.ID),
			zap.Error(err),
		)
	}
}
