package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediadesk/mediadesk/internal/middleware"
	"github.com/mediadesk/mediadesk/internal/services"
	apperrors "github.com/mediadesk/mediadesk/pkg/errors"
	"github.com/mediadesk/mediadesk/pkg/response"
)

type UIPermissionHandler struct {
	svc *services.UIPermissionService
}

func NewUIPermissionHandler(svc *services.UIPermissionService) (*UIPermissionHandler, error) {
	if svc == nil {
		return nil, errors.New("ui permission handler: service is required")
	}
	return &UIPermissionHandler{svc: svc}, nil
}

// GET /api/ui-permissions/my
func (h *UIPermissionHandler) MyUIPermissions(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	elements, err := h.svc.GetUIPermissions(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, elements)
}

// GET /api/ui-permissions/users/:id
func (h *UIPermissionHandler) UserUIPermissions(c *gin.Context) {
	elements, err := h.svc.GetUIPermissions(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, elements)
}

type setUIPermissionBody struct {
	UserID      string `json:"user_id" validate:"required"`
	UIElement   string `json:"ui_element" validate:"required"`
	IsVisible   bool   `json:"is_visible"`
	IsEnabled   bool   `json:"is_enabled"`
	CustomLabel string `json:"custom_label"`
}

// PUT /api/ui-permissions
func (h *UIPermissionHandler) SetUIPermission(c *gin.Context) {
	var body setUIPermissionBody
	if !bindAndValidate(c, &body) {
		return
	}

	override, err := h.svc.SetUIPermission(requestContext(c), c.GetString(middleware.CtxUserIDKey), services.SetUIPermissionInput{
		UserID:      body.UserID,
		UIElement:   body.UIElement,
		IsVisible:   body.IsVisible,
		IsEnabled:   body.IsEnabled,
		CustomLabel: body.CustomLabel,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, override)
}

// DELETE /api/ui-permissions/users/:id/elements/:element
func (h *UIPermissionHandler) RemoveUIPermission(c *gin.Context) {
	found, err := h.svc.RemoveUIPermission(requestContext(c), c.GetString(middleware.CtxUserIDKey),
		c.Param("id"), c.Param("element"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": found})
}
