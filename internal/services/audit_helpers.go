package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ecohubkosova/ecohub/pkg/logger"
)

// recordAudit writes entry, defaulting the result to success. A failed audit write is
// logged and never fails the operation that produced it.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if entry.Result == "" {
		entry.Result = "success"
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WithOrganization("audit", entry.OrganizationID).Warn("audit write failed",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err),
		)
	}
}
