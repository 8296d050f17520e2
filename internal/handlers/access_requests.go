package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediadesk/mediadesk/internal/middleware"
	"github.com/mediadesk/mediadesk/internal/services"
	"github.com/mediadesk/mediadesk/pkg/response"
)

type AccessRequestHandler struct {
	svc *services.AccessRequestService
}

func NewAccessRequestHandler(svc *services.AccessRequestService) (*AccessRequestHandler, error) {
	if svc == nil {
		return nil, errors.New("access request handler: service is required")
	}
	return &AccessRequestHandler{svc: svc}, nil
}

type createRequestBody struct {
	ResourceType string     `json:"resource_type" validate:"required"`
	ResourceID   string     `json:"resource_id" validate:"required"`
	Action       string     `json:"action" validate:"required"`
	Reason       string     `json:"reason"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// POST /api/access-requests
func (h *AccessRequestHandler) Create(c *gin.Context) {
	var body createRequestBody
	if !bindAndValidate(c, &body) {
		return
	}

	request, err := h.svc.CreateRequest(requestContext(c), services.CreateRequestInput{
		RequesterID:  c.GetString(middleware.CtxUserIDKey),
		ResourceType: body.ResourceType,
		ResourceID:   body.ResourceID,
		Action:       body.Action,
		Reason:       body.Reason,
		ExpiresAt:    body.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, request)
}

type reviewRequestBody struct {
	Notes string `json:"notes"`
}

// POST /api/access-requests/:id/approve
func (h *AccessRequestHandler) Approve(c *gin.Context) {
	var body reviewRequestBody
	_ = c.ShouldBindJSON(&body)

	request, err := h.svc.Approve(requestContext(c), c.Param("id"), c.GetString(middleware.CtxUserIDKey), body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// POST /api/access-requests/:id/deny
func (h *AccessRequestHandler) Deny(c *gin.Context) {
	var body reviewRequestBody
	_ = c.ShouldBindJSON(&body)

	request, err := h.svc.Deny(requestContext(c), c.Param("id"), c.GetString(middleware.CtxUserIDKey), body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// POST /api/access-requests/:id/cancel
func (h *AccessRequestHandler) Cancel(c *gin.Context) {
	request, err := h.svc.Cancel(requestContext(c), c.Param("id"), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// GET /api/access-requests/:id
func (h *AccessRequestHandler) Get(c *gin.Context) {
	request, err := h.svc.GetRequest(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// GET /api/access-requests
func (h *AccessRequestHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	requests, total, err := h.svc.ListRequests(requestContext(c), services.RequestListOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.RequestFilters{
			RequesterID:  c.Query("requester_id"),
			ResourceType: c.Query("resource_type"),
			ResourceID:   c.Query("resource_id"),
			Status:       c.Query("status"),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	response.SuccessWithMeta(c, http.StatusOK, requests, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

type addWatcherBody struct {
	ResourceType    string `json:"resource_type" validate:"required"`
	ResourceID      string `json:"resource_id" validate:"required"`
	UserID          string `json:"user_id" validate:"required"`
	CanApprove      bool   `json:"can_approve"`
	NotifyOnRequest *bool  `json:"notify_on_request"`
}

// POST /api/access-requests/watchers
func (h *AccessRequestHandler) AddWatcher(c *gin.Context) {
	var body addWatcherBody
	if !bindAndValidate(c, &body) {
		return
	}

	notify := true
	if body.NotifyOnRequest != nil {
		notify = *body.NotifyOnRequest
	}

	watcher, err := h.svc.AddWatcher(requestContext(c), c.GetString(middleware.CtxUserIDKey), services.AddWatcherInput{
		ResourceType:    body.ResourceType,
		ResourceID:      body.ResourceID,
		UserID:          body.UserID,
		CanApprove:      body.CanApprove,
		NotifyOnRequest: notify,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, watcher)
}

// DELETE /api/access-requests/watchers/:resourceType/:resourceId/:userId
func (h *AccessRequestHandler) RemoveWatcher(c *gin.Context) {
	found, err := h.svc.RemoveWatcher(requestContext(c), c.GetString(middleware.CtxUserIDKey),
		c.Param("resourceType"), c.Param("resourceId"), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": found})
}

// GET /api/access-requests/watchers/:resourceType/:resourceId
func (h *AccessRequestHandler) GetWatchers(c *gin.Context) {
	watchers, err := h.svc.GetWatchers(requestContext(c), c.Param("resourceType"), c.Param("resourceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, watchers)
}
