package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediadesk/mediadesk/internal/middleware"
	"github.com/mediadesk/mediadesk/internal/services"
	"github.com/mediadesk/mediadesk/pkg/response"
)

type RoleHandler struct {
	svc *services.RoleService
}

func NewRoleHandler(svc *services.RoleService) (*RoleHandler, error) {
	if svc == nil {
		return nil, errors.New("role handler: service is required")
	}
	return &RoleHandler{svc: svc}, nil
}

// GET /api/roles
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.svc.ListRoles(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

type assignRoleRequest struct {
	UserID    string     `json:"user_id" validate:"required"`
	Role      string     `json:"role" validate:"required"`
	ScopeType string     `json:"scope_type"`
	ScopeID   *string    `json:"scope_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// POST /api/roles/assignments
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var body assignRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	actorID := c.GetString(middleware.CtxUserIDKey)
	assignment, err := h.svc.AssignRole(requestContext(c), actorID, services.AssignRoleInput{
		UserID:    body.UserID,
		RoleID:    body.Role,
		ScopeType: body.ScopeType,
		ScopeID:   body.ScopeID,
		ExpiresAt: body.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, assignment)
}

type removeRoleRequest struct {
	UserID    string  `json:"user_id" validate:"required"`
	Role      string  `json:"role" validate:"required"`
	ScopeType string  `json:"scope_type"`
	ScopeID   *string `json:"scope_id"`
}

// POST /api/roles/removals
func (h *RoleHandler) RemoveRole(c *gin.Context) {
	var body removeRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	actorID := c.GetString(middleware.CtxUserIDKey)
	found, err := h.svc.RemoveRole(requestContext(c), actorID, services.RemoveRoleInput{
		UserID:    body.UserID,
		RoleID:    body.Role,
		ScopeType: body.ScopeType,
		ScopeID:   body.ScopeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": found})
}

// GET /api/roles/users/:id
func (h *RoleHandler) ListUserRoles(c *gin.Context) {
	assignments, err := h.svc.ListUserRoles(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignments)
}
