package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/mediadesk/mediadesk/internal/auditctx"
	"github.com/mediadesk/mediadesk/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures. A lost
// audit entry must never roll back the mutation it describes, so failures are
// logged for operators and otherwise swallowed.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}

	if entry.PerformedByID == nil {
		if actor, ok := auditctx.FromContext(ctx); ok && actor.UserID != "" {
			id := actor.UserID
			entry.PerformedByID = &id
		}
	}

	if err := audit.Record(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("audit write failed",
			zap.String("action_type", entry.ActionType),
			zap.Error(err),
		)
	}
}
