package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/internal/middleware"
	"github.com/mediadesk/mediadesk/internal/services"
	apperrors "github.com/mediadesk/mediadesk/pkg/errors"
	"github.com/mediadesk/mediadesk/pkg/response"
)

type PermissionHandler struct {
	svc      *services.PermissionService
	resolver *authz.Resolver
}

func NewPermissionHandler(svc *services.PermissionService, resolver *authz.Resolver) (*PermissionHandler, error) {
	if svc == nil {
		return nil, errors.New("permission handler: service is required")
	}
	if resolver == nil {
		return nil, errors.New("permission handler: resolver is required")
	}
	return &PermissionHandler{svc: svc, resolver: resolver}, nil
}

type grantRequest struct {
	UserID       string     `json:"user_id" validate:"required"`
	ResourceType string     `json:"resource_type" validate:"required"`
	Action       string     `json:"action" validate:"required"`
	Disposition  string     `json:"disposition" validate:"required"`
	ResourceID   *string    `json:"resource_id"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Reason       string     `json:"reason"`
}

// POST /api/permissions/grants
func (h *PermissionHandler) Grant(c *gin.Context) {
	var body grantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	actorID := c.GetString(middleware.CtxUserIDKey)
	permission, err := h.svc.Grant(requestContext(c), actorID, services.GrantInput{
		UserID:       body.UserID,
		ResourceType: body.ResourceType,
		Action:       body.Action,
		Disposition:  body.Disposition,
		ResourceID:   body.ResourceID,
		ExpiresAt:    body.ExpiresAt,
		Reason:       body.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, permission)
}

type revokeRequest struct {
	UserID       string  `json:"user_id" validate:"required"`
	ResourceType string  `json:"resource_type" validate:"required"`
	Action       string  `json:"action" validate:"required"`
	ResourceID   *string `json:"resource_id"`
}

// POST /api/permissions/revocations
func (h *PermissionHandler) Revoke(c *gin.Context) {
	var body revokeRequest
	if !bindAndValidate(c, &body) {
		return
	}

	actorID := c.GetString(middleware.CtxUserIDKey)
	found, err := h.svc.Revoke(requestContext(c), actorID, services.RevokeInput{
		UserID:       body.UserID,
		ResourceType: body.ResourceType,
		Action:       body.Action,
		ResourceID:   body.ResourceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": found})
}

// GET /api/permissions/my
func (h *PermissionHandler) MyPermissions(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	snapshot, err := h.svc.GetUserPermissions(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, snapshot)
}

// GET /api/permissions/users/:id
func (h *PermissionHandler) UserPermissions(c *gin.Context) {
	snapshot, err := h.svc.GetUserPermissions(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, snapshot)
}

type checkRequest struct {
	ResourceType string   `json:"resource_type" validate:"required"`
	Actions      []string `json:"actions" validate:"required,min=1,dive,required"`
	ResourceID   *string  `json:"resource_id"`
}

// POST /api/permissions/check
//
// Evaluates the caller's own access. Each action resolves independently.
func (h *PermissionHandler) Check(c *gin.Context) {
	var body checkRequest
	if !bindAndValidate(c, &body) {
		return
	}

	resourceType, err := authz.ParseResourceType(body.ResourceType)
	if err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	actions := make([]authz.Action, 0, len(body.Actions))
	for _, raw := range body.Actions {
		action, err := authz.ParseAction(raw)
		if err != nil {
			response.Error(c, apperrors.NewBadRequest(err.Error()))
			return
		}
		actions = append(actions, action)
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	results := h.resolver.CheckMany(requestContext(c), userID, resourceType, actions, body.ResourceID)

	payload := make(map[string]bool, len(results))
	for action, allowed := range results {
		payload[string(action)] = allowed
	}
	response.Success(c, http.StatusOK, gin.H{"results": payload})
}
