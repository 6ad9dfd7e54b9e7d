package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditRetentionJobName is the name of the audit log purge job
const AuditRetentionJobName = "audit_retention"

// AuditPurger deletes audit entries older than a number of days
type AuditPurger interface {
	Purge(ctx context.Context, retentionDays int) (int64, error)
}

// RegisterAuditRetentionJob schedules the purge. Zero retention registers nothing.
func RegisterAuditRetentionJob(s *Scheduler, audit AuditPurger, logger *zap.Logger, cronExpr string, retentionDays int, timeout time.Duration) error {
	if retentionDays <= 0 {
		logger.Info("audit retention disabled, entries are kept forever")
		return nil
	}
	return s.AddJob(AuditRetentionJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := audit.Purge(ctx, retentionDays); err != nil {
			logger.Error("audit retention run failed", zap.Int("retention_days", retentionDays), zap.Error(err))
		}
	})
}
