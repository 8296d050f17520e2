package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediadesk/mediadesk/internal/services"
	"github.com/mediadesk/mediadesk/pkg/response"
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) (*AuditHandler, error) {
	if svc == nil {
		return nil, errors.New("audit handler: service is required")
	}
	return &AuditHandler{svc: svc}, nil
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	filters := services.AuditFilters{
		ActionType:    c.Query("action_type"),
		PerformedByID: c.Query("performed_by"),
		TargetUserID:  c.Query("target_user"),
		ResourceType:  c.Query("resource_type"),
		ResourceID:    c.Query("resource_id"),
	}
	if raw := c.Query("since"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.Since = &ts
		}
	}
	if raw := c.Query("until"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.Until = &ts
		}
	}

	entries, total, err := h.svc.List(requestContext(c), services.AuditListOptions{
		Page:     page,
		PageSize: perPage,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	response.SuccessWithMeta(c, http.StatusOK, entries, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}
