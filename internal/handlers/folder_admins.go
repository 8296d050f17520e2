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

type FolderAdminHandler struct {
	svc *services.FolderAdminService
}

func NewFolderAdminHandler(svc *services.FolderAdminService) (*FolderAdminHandler, error) {
	if svc == nil {
		return nil, errors.New("folder admin handler: service is required")
	}
	return &FolderAdminHandler{svc: svc}, nil
}

type addFolderAdminRequest struct {
	UserID            string     `json:"user_id" validate:"required"`
	CanGrantAccess    bool       `json:"can_grant_access"`
	CanRevokeAccess   bool       `json:"can_revoke_access"`
	CanManageRequests bool       `json:"can_manage_requests"`
	CanDeleteFiles    bool       `json:"can_delete_files"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

// POST /api/folders/:id/admins
func (h *FolderAdminHandler) AddFolderAdmin(c *gin.Context) {
	var body addFolderAdminRequest
	if !bindAndValidate(c, &body) {
		return
	}

	actorID := c.GetString(middleware.CtxUserIDKey)
	admin, err := h.svc.AddFolderAdmin(requestContext(c), actorID, services.AddFolderAdminInput{
		FolderID: c.Param("id"),
		UserID:   body.UserID,
		Capabilities: services.FolderAdminCapabilities{
			CanGrantAccess:    body.CanGrantAccess,
			CanRevokeAccess:   body.CanRevokeAccess,
			CanManageRequests: body.CanManageRequests,
			CanDeleteFiles:    body.CanDeleteFiles,
		},
		ExpiresAt: body.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, admin)
}

// DELETE /api/folders/:id/admins/:userId
func (h *FolderAdminHandler) RemoveFolderAdmin(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	found, err := h.svc.RemoveFolderAdmin(requestContext(c), actorID, c.Param("id"), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": found})
}

// GET /api/folders/:id/admins
func (h *FolderAdminHandler) ListFolderAdmins(c *gin.Context) {
	admins, err := h.svc.ListFolderAdmins(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, admins)
}
